package pptx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// TagSlideGUID names the metadata entry carrying a question slide's unique identifier.
const TagSlideGUID = "OR_SLIDE_GUID"

// LayoutInfo describes one slide layout definition of the template.
type LayoutInfo struct {
	Part        string
	Name        string
	MasterPart  string
	MasterRelID string
}

// SlideSize is the slide canvas in EMU.
type SlideSize struct {
	CX int64
	CY int64
}

// Inventory is what the introspector learned about a template.
type Inventory struct {
	// Slides lists existing slide parts in presentation order.
	Slides          []string
	MaxTagNumber    int
	MaxLayoutNumber int
	MaxMediaNumber  int
	// RelMax maps each .rels part to its highest numeric relationship identifier.
	RelMax  map[string]int
	Masters []string
	Layouts []LayoutInfo
	Size    SlideSize
	// SlideGUIDs maps slide part to the unique identifier found in its metadata.
	SlideGUIDs map[string]string
	Warnings   []string
}

// SlideCount is the number of existing slides.
func (inv *Inventory) SlideCount() int { return len(inv.Slides) }

// ExistingSlideGUIDs returns the identifiers of pre-existing question slides in slide order.
func (inv *Inventory) ExistingSlideGUIDs() []string {
	var out []string
	for _, part := range inv.Slides {
		if guid, ok := inv.SlideGUIDs[part]; ok {
			out = append(out, guid)
		}
	}
	return out
}

// NextRelID reserves the next relationship identifier of a .rels part.
func (inv *Inventory) NextRelID(relsPart string) string {
	inv.RelMax[relsPart]++
	return relID(inv.RelMax[relsPart])
}

// PrimaryMaster is the master new layouts are attached to.
func (inv *Inventory) PrimaryMaster() string {
	if len(inv.Masters) > 0 {
		return inv.Masters[0]
	}
	return ""
}

func (inv *Inventory) warn(logger zerolog.Logger, msg string, part string) {
	logger.Warn().Str("part", part).Msg(msg)
	inv.Warnings = append(inv.Warnings, fmt.Sprintf("%s: %s", msg, part))
}

// Inspect surveys a template. Only a missing main document part is fatal.
func Inspect(pkg *Package, logger zerolog.Logger) (*Inventory, error) {
	logger = logger.With().Str("component", "pptx_introspector").Logger()

	if !pkg.Has(PresentationPart) {
		return nil, ErrMainDocumentMissing
	}
	presentation, err := pkg.ReadXML(PresentationPart)
	if err != nil {
		return nil, fmt.Errorf("inspect template: %w", err)
	}

	inv := &Inventory{
		RelMax:     make(map[string]int),
		SlideGUIDs: make(map[string]string),
		Size:       SlideSize{CX: 9144000, CY: 6858000},
	}

	for _, name := range pkg.Names() {
		switch {
		case strings.HasSuffix(name, relsSuffix):
			data, _ := pkg.Part(name)
			rels, err := ParseRelationships(data)
			if err != nil {
				inv.warn(logger, "unreadable relationship part skipped", name)
				continue
			}
			inv.RelMax[name] = rels.MaxID()
		case strings.HasPrefix(name, tagPrefix):
			if n, ok := partNumber(name, tagPrefix, xmlSuffix); ok && n > inv.MaxTagNumber {
				inv.MaxTagNumber = n
			}
		case strings.HasPrefix(name, layoutPrefix):
			if n, ok := partNumber(name, layoutPrefix, xmlSuffix); ok && n > inv.MaxLayoutNumber {
				inv.MaxLayoutNumber = n
			}
		case strings.HasPrefix(name, mediaPrefix):
			if n, ok := mediaNumber(name); ok && n > inv.MaxMediaNumber {
				inv.MaxMediaNumber = n
			}
		}
	}

	if root := presentation.Root(); root != nil {
		if sz := childElement(root, "p", "sldSz"); sz != nil {
			cx, okX := attrInt(sz, "cx")
			cy, okY := attrInt(sz, "cy")
			if okX && okY && cx > 0 && cy > 0 {
				inv.Size = SlideSize{CX: cx, CY: cy}
			}
		}
	}

	presRels, found, err := pkg.Relationships(PresentationPart)
	if err != nil {
		return nil, fmt.Errorf("inspect template: %w", err)
	}
	if !found {
		inv.warn(logger, "main document relationships missing", PresentationRelsPart)
	}

	inv.Slides = orderedSlides(pkg, presentation.Root(), presRels, found)
	inv.Masters = masterParts(pkg, presRels)
	inv.Layouts = collectLayouts(pkg, inv, logger)

	for _, slide := range inv.Slides {
		guid, err := slideGUID(pkg, slide)
		switch {
		case errors.Is(err, errNoRelationships):
			inv.warn(logger, "slide relationships missing", RelsPartFor(slide))
		case err != nil:
			inv.warn(logger, "slide metadata unreadable", slide)
		case guid != "":
			inv.SlideGUIDs[slide] = guid
		}
	}

	logger.Debug().
		Int("slides", len(inv.Slides)).
		Int("max_tag", inv.MaxTagNumber).
		Int("layouts", len(inv.Layouts)).
		Int("existing_questions", len(inv.SlideGUIDs)).
		Msg("template inspected")

	return inv, nil
}

// orderedSlides follows the master slide list. Without it the slide parts are taken in
// numeric order.
func orderedSlides(pkg *Package, root *etree.Element, rels *Relationships, haveRels bool) []string {
	var out []string
	seen := make(map[string]bool)
	if haveRels && root != nil {
		if list := childElement(root, "p", "sldIdLst"); list != nil {
			for _, sldID := range list.ChildElements() {
				rel, ok := rels.Get(sldID.SelectAttrValue("r:id", ""))
				if !ok || rel.Type != RelTypeSlide {
					continue
				}
				part := ResolveTarget(PresentationPart, rel.Target)
				if pkg.Has(part) && !seen[part] {
					out = append(out, part)
					seen[part] = true
				}
			}
		}
	}
	for _, part := range pkg.Find(slidePrefix, xmlSuffix) {
		if _, ok := partNumber(part, slidePrefix, xmlSuffix); ok && !seen[part] {
			out = append(out, part)
			seen[part] = true
		}
	}
	return out
}

func masterParts(pkg *Package, rels *Relationships) []string {
	var out []string
	for _, rel := range rels.ByType(RelTypeSlideMaster) {
		part := ResolveTarget(PresentationPart, rel.Target)
		if pkg.Has(part) {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		out = pkg.Find(masterPrefix, xmlSuffix)
	}
	return out
}

func collectLayouts(pkg *Package, inv *Inventory, logger zerolog.Logger) []LayoutInfo {
	var out []LayoutInfo
	seen := make(map[string]bool)
	for _, master := range inv.Masters {
		rels, found, err := pkg.Relationships(master)
		if err != nil || !found {
			inv.warn(logger, "master relationships missing", RelsPartFor(master))
			continue
		}
		for _, rel := range rels.ByType(RelTypeSlideLayout) {
			part := ResolveTarget(master, rel.Target)
			if seen[part] || !pkg.Has(part) {
				continue
			}
			seen[part] = true
			out = append(out, LayoutInfo{
				Part:        part,
				Name:        layoutName(pkg, part),
				MasterPart:  master,
				MasterRelID: rel.ID,
			})
		}
	}
	for _, part := range pkg.Find(layoutPrefix, xmlSuffix) {
		if !seen[part] {
			seen[part] = true
			out = append(out, LayoutInfo{Part: part, Name: layoutName(pkg, part)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, _ := partNumber(out[i].Part, layoutPrefix, xmlSuffix)
		nj, _ := partNumber(out[j].Part, layoutPrefix, xmlSuffix)
		return ni < nj
	})
	return out
}

func layoutName(pkg *Package, part string) string {
	doc, err := pkg.ReadXML(part)
	if err != nil || doc.Root() == nil {
		return ""
	}
	if cSld := childElement(doc.Root(), "p", "cSld"); cSld != nil {
		return cSld.SelectAttrValue("name", "")
	}
	return ""
}

var errNoRelationships = errors.New("no relationships")

// slideGUID follows a slide's tag relationships looking for the unique slide identifier.
func slideGUID(pkg *Package, slide string) (string, error) {
	rels, found, err := pkg.Relationships(slide)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errNoRelationships
	}
	for _, rel := range rels.ByType(RelTypeTags) {
		values, err := ReadTags(pkg, ResolveTarget(slide, rel.Target))
		if err != nil {
			continue
		}
		if guid := values[TagSlideGUID]; guid != "" {
			return guid, nil
		}
	}
	return "", nil
}

// ReadTags returns the name/value pairs of a metadata fragment.
func ReadTags(pkg *Package, part string) (map[string]string, error) {
	doc, err := pkg.ReadXML(part)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if doc.Root() == nil {
		return out, nil
	}
	for _, tag := range findAll(doc.Root(), "p", "tag") {
		out[tag.SelectAttrValue("name", "")] = tag.SelectAttrValue("val", "")
	}
	return out, nil
}
