package pptx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// SlideKind selects the title extraction heuristic.
type SlideKind int

const (
	SlideKindExisting SlideKind = iota
	SlideKindTitle
	SlideKindParticipants
	SlideKindQuestion
)

// SlideRef is a final slide and the phase that produced it.
type SlideRef struct {
	Part string
	Kind SlideKind
}

// Statistics is what docProps/app.xml reports about the presentation.
type Statistics struct {
	Slides     int
	Words      int
	Paragraphs int
	Titles     []string
	Fonts      []string
	Themes     []string
}

// ComputeStatistics scans the final slides and theme parts.
func ComputeStatistics(pkg *Package, slides []SlideRef) Statistics {
	stats := Statistics{Slides: len(slides)}
	for _, ref := range slides {
		doc, err := pkg.ReadXML(ref.Part)
		if err != nil || doc.Root() == nil {
			stats.Titles = append(stats.Titles, "")
			continue
		}
		for _, p := range findAll(doc.Root(), "a", "p") {
			text := strings.TrimSpace(paragraphText(p))
			if text == "" {
				continue
			}
			stats.Paragraphs++
			stats.Words += len(strings.Fields(text))
		}
		stats.Titles = append(stats.Titles, slideTitle(doc.Root(), ref.Kind))
	}

	seenFont := make(map[string]bool)
	seenTheme := make(map[string]bool)
	for _, part := range pkg.Find(themePrefix, xmlSuffix) {
		doc, err := pkg.ReadXML(part)
		if err != nil || doc.Root() == nil {
			continue
		}
		if name := doc.Root().SelectAttrValue("name", ""); name != "" && !seenTheme[name] {
			seenTheme[name] = true
			stats.Themes = append(stats.Themes, name)
		}
		for _, group := range []string{"majorFont", "minorFont"} {
			latin := childElement(findFirst(doc.Root(), "a", group), "a", "latin")
			if latin == nil {
				continue
			}
			if face := latin.SelectAttrValue("typeface", ""); face != "" && !seenFont[face] {
				seenFont[face] = true
				stats.Fonts = append(stats.Fonts, face)
			}
		}
	}
	return stats
}

// slideTitle applies the per-kind heuristics: question slides are recognised by the
// title placeholder or the "Question" shape, intro slides prefer the centred title, the
// roster slide falls back to its fixed caption and template slides to their first text.
func slideTitle(root *etree.Element, kind SlideKind) string {
	shapes := findAll(root, "p", "sp")

	byPlaceholder := func(types ...string) string {
		for _, sp := range shapes {
			ph := findFirst(sp, "p", "ph")
			if ph == nil {
				continue
			}
			for _, t := range types {
				if ph.SelectAttrValue("type", "") == t {
					if text := shapeText(sp); text != "" {
						return text
					}
				}
			}
		}
		return ""
	}
	byName := func(prefixes ...string) string {
		for _, sp := range shapes {
			cNvPr := findFirst(sp, "p", "cNvPr")
			if cNvPr == nil {
				continue
			}
			name := strings.ToLower(cNvPr.SelectAttrValue("name", ""))
			for _, prefix := range prefixes {
				if strings.HasPrefix(name, prefix) {
					if text := shapeText(sp); text != "" {
						return text
					}
				}
			}
		}
		return ""
	}

	switch kind {
	case SlideKindQuestion:
		if t := byName("question"); t != "" {
			return t
		}
		return byPlaceholder("title", "ctrTitle")
	case SlideKindTitle:
		return byPlaceholder("ctrTitle", "title")
	case SlideKindParticipants:
		if t := byPlaceholder("title"); t != "" {
			return t
		}
		return participantsName
	default:
		if t := byPlaceholder("title", "ctrTitle"); t != "" {
			return t
		}
		if t := byName("title", "titre"); t != "" {
			return t
		}
		for _, sp := range shapes {
			if text := shapeText(sp); text != "" {
				return text
			}
		}
		return ""
	}
}

// schema order of the extended properties children this package touches
var appPropertiesOrder = []string{
	"Template", "TotalTime", "Words", "Application", "PresentationFormat", "Paragraphs",
	"Slides", "Notes", "HiddenSlides", "MMClips", "ScaleCrop", "HeadingPairs", "TitlesOfParts",
	"Company", "LinksUpToDate", "SharedDoc", "HyperlinksChanged", "AppVersion",
}

type headingGroup struct {
	kind   string
	label  string
	values []string
}

// UpdateAppProperties writes counters and the heading/title inventory into docProps/app.xml.
// A missing properties part is skipped with a warning.
func UpdateAppProperties(pkg *Package, stats Statistics, logger zerolog.Logger) ([]string, error) {
	if !pkg.Has(AppPropertiesPart) {
		logger.Warn().Str("part", AppPropertiesPart).Msg("document properties missing, statistics skipped")
		return []string{"document properties part missing; statistics not updated"}, nil
	}
	doc, err := pkg.ReadXML(AppPropertiesPart)
	if err != nil || doc.Root() == nil {
		logger.Warn().Err(err).Str("part", AppPropertiesPart).Msg("document properties unreadable, statistics skipped")
		return []string{"document properties part unreadable; statistics not updated"}, nil
	}
	root := doc.Root()

	setAppProperty(root, "Words", strconv.Itoa(stats.Words))
	setAppProperty(root, "Paragraphs", strconv.Itoa(stats.Paragraphs))
	setAppProperty(root, "Slides", strconv.Itoa(stats.Slides))

	groups := []headingGroup{
		{kind: "fonts", label: "Fonts Used", values: stats.Fonts},
		{kind: "theme", label: "Theme", values: stats.Themes},
		{kind: "titles", label: "Slide Titles", values: stats.Titles},
	}
	for _, label := range existingHeadingLabels(root) {
		for i := range groups {
			if headingKind(label) == groups[i].kind {
				groups[i].label = label
			}
		}
	}

	pairs := appPropertyElement(root, "HeadingPairs")
	titles := appPropertyElement(root, "TitlesOfParts")
	for _, el := range []*etree.Element{pairs, titles} {
		for _, child := range el.ChildElements() {
			el.RemoveChild(child)
		}
	}

	pairVector := pairs.CreateElement("vt:vector")
	pairVector.CreateAttr("baseType", "variant")
	titleVector := titles.CreateElement("vt:vector")
	titleVector.CreateAttr("baseType", "lpstr")

	pairCount, titleCount := 0, 0
	for _, g := range groups {
		if len(g.values) == 0 {
			continue
		}
		pairVector.CreateElement("vt:variant").CreateElement("vt:lpstr").SetText(g.label)
		pairVector.CreateElement("vt:variant").CreateElement("vt:i4").SetText(strconv.Itoa(len(g.values)))
		pairCount += 2
		for _, v := range g.values {
			titleVector.CreateElement("vt:lpstr").SetText(v)
			titleCount++
		}
	}
	pairVector.CreateAttr("size", strconv.Itoa(pairCount))
	titleVector.CreateAttr("size", strconv.Itoa(titleCount))

	if root.SelectAttr("xmlns:vt") == nil {
		root.CreateAttr("xmlns:vt", nsVTypes)
	}
	return nil, pkg.WriteXML(AppPropertiesPart, doc)
}

func headingKind(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "font") || strings.Contains(l, "police"):
		return "fonts"
	case strings.Contains(l, "them") || strings.Contains(l, "thèm") || strings.Contains(l, "design"):
		return "theme"
	case strings.Contains(l, "titl") || strings.Contains(l, "titre"):
		return "titles"
	}
	return ""
}

func existingHeadingLabels(root *etree.Element) []string {
	pairs := childElement(root, "", "HeadingPairs")
	if pairs == nil {
		return nil
	}
	var out []string
	for _, el := range findAll(pairs, "vt", "lpstr") {
		out = append(out, el.Text())
	}
	return out
}

func setAppProperty(root *etree.Element, tag, value string) {
	appPropertyElement(root, tag).SetText(value)
}

// appPropertyElement returns the direct child named tag, creating it at its schema position.
func appPropertyElement(root *etree.Element, tag string) *etree.Element {
	if el := childElement(root, "", tag); el != nil {
		return el
	}
	el := etree.NewElement(tag)
	for _, existing := range root.ChildElements() {
		if existing.Space == "" && indexOf(appPropertiesOrder, existing.Tag) > indexOf(appPropertiesOrder, tag) {
			root.InsertChildAt(existing.Index(), el)
			return el
		}
	}
	root.AddChild(el)
	return el
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return len(list)
}
