package pptx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

const masterRelID = "rId1"

// RenumberExistingSlides moves the template's slides, in presentation order, to positions
// offset+1..offset+len(slides) and retargets every relationship that pointed at them.
// It returns the old to new part name map.
func RenumberExistingSlides(pkg *Package, slides []string, offset int) (map[string]string, error) {
	renames := make(map[string]string, len(slides))
	for i, old := range slides {
		renames[old] = SlidePart(offset + i + 1)
	}
	if offset == 0 {
		identity := true
		for old, next := range renames {
			if old != next {
				identity = false
				break
			}
		}
		if identity {
			return renames, nil
		}
	}

	// Two phases so that slide3 -> slide5 never clobbers a slide5 still waiting to move.
	staged := make(map[string]string, len(slides))
	for i, old := range slides {
		tmp := fmt.Sprintf("%s_renumber%d%s", slidePrefix, i, xmlSuffix)
		if err := movePartWithRels(pkg, old, tmp); err != nil {
			return nil, err
		}
		staged[tmp] = renames[old]
	}
	for tmp, final := range staged {
		if err := movePartWithRels(pkg, tmp, final); err != nil {
			return nil, err
		}
	}

	if err := retargetRelationships(pkg, renames); err != nil {
		return nil, err
	}
	return renames, nil
}

func movePartWithRels(pkg *Package, from, to string) error {
	if err := pkg.Rename(from, to); err != nil {
		return fmt.Errorf("renumber slide: %w", err)
	}
	if pkg.Has(RelsPartFor(from)) {
		if err := pkg.Rename(RelsPartFor(from), RelsPartFor(to)); err != nil {
			return fmt.Errorf("renumber slide: %w", err)
		}
	}
	return nil
}

// retargetRelationships rewrites internal relationship targets naming a renamed part.
// Renamed slides stay in the same folder, so targets are resolved against that folder.
func retargetRelationships(pkg *Package, renames map[string]string) error {
	for _, relsPart := range pkg.Names() {
		if !strings.HasSuffix(relsPart, relsSuffix) {
			continue
		}
		rels, found, err := pkg.Relationships(SourcePartFor(relsPart))
		if err != nil || !found {
			continue
		}
		source := SourcePartFor(relsPart)
		changed := false
		for i, rel := range rels.Items() {
			if rel.External() {
				continue
			}
			if next, ok := renames[ResolveTarget(source, rel.Target)]; ok {
				rels.SetTarget(i, RelativeTarget(source, next))
				changed = true
			}
		}
		if changed {
			if err := pkg.PutRelationships(source, rels); err != nil {
				return err
			}
		}
	}
	return nil
}

// SlideOrder lists the final slide parts by phase.
type SlideOrder struct {
	Intro     []string
	Existing  []string
	Questions []string
}

// All returns every slide in final order.
func (o SlideOrder) All() []string {
	out := make([]string, 0, len(o.Intro)+len(o.Existing)+len(o.Questions))
	out = append(out, o.Intro...)
	out = append(out, o.Existing...)
	return append(out, o.Questions...)
}

// SlideEntry is one element of the rebuilt ordered slide list.
type SlideEntry struct {
	ListID   int64
	RelID    string
	Target   string
	Position int
}

// RelationshipMapping is the outcome of rewriting the main document relationships.
type RelationshipMapping struct {
	// Lookup maps each carried-over old identifier to its new identifier.
	Lookup  map[string]string
	Entries []Relationship
	Slides  []SlideEntry
}

// RewritePresentation renumbers the main document relationships as master, then slides in
// final order, then everything else, and rebuilds the ordered slide list to match.
func RewritePresentation(pkg *Package, order SlideOrder, logger zerolog.Logger) (*RelationshipMapping, []string, error) {
	logger = logger.With().Str("component", "pptx_rewriter").Logger()
	var warnings []string
	warn := func(msg string, evt func(*zerolog.Event) *zerolog.Event) {
		evt(logger.Warn()).Msg(msg)
		warnings = append(warnings, msg)
	}

	old, _, err := pkg.Relationships(PresentationPart)
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite presentation: %w", err)
	}

	mapping := &RelationshipMapping{Lookup: make(map[string]string)}
	next := &Relationships{}
	handled := make(map[int]bool)

	masterTarget := ""
	for i, rel := range old.Items() {
		if rel.Type == RelTypeSlideMaster {
			masterTarget = rel.Target
			mapping.Lookup[rel.ID] = masterRelID
			handled[i] = true
			break
		}
	}
	if masterTarget == "" {
		if !pkg.Has(defaultMasterPart) {
			return nil, nil, fmt.Errorf("rewrite presentation: template has no slide master")
		}
		masterTarget = RelativeTarget(PresentationPart, defaultMasterPart)
		warn("slide master relationship synthesized", func(e *zerolog.Event) *zerolog.Event {
			return e.Str("part", defaultMasterPart)
		})
	}
	next.Append(Relationship{ID: masterRelID, Type: RelTypeSlideMaster, Target: masterTarget})

	oldSlides := make(map[string]int)
	for i, rel := range old.Items() {
		if rel.Type == RelTypeSlide {
			oldSlides[ResolveTarget(PresentationPart, rel.Target)] = i
		}
	}

	final := order.All()
	inFinal := make(map[string]bool, len(final))
	for pos, slide := range final {
		inFinal[slide] = true
		id := relID(next.MaxID() + 1)
		if i, ok := oldSlides[slide]; ok {
			mapping.Lookup[old.Items()[i].ID] = id
			handled[i] = true
		}
		target := RelativeTarget(PresentationPart, slide)
		next.Append(Relationship{ID: id, Type: RelTypeSlide, Target: target})
		mapping.Slides = append(mapping.Slides, SlideEntry{
			ListID:   int64(firstSlideListID + pos),
			RelID:    id,
			Target:   target,
			Position: pos + 1,
		})
	}

	for i, rel := range old.Items() {
		if handled[i] {
			continue
		}
		if rel.Type == RelTypeSlide && !inFinal[ResolveTarget(PresentationPart, rel.Target)] {
			warn("stale slide relationship dropped", func(e *zerolog.Event) *zerolog.Event {
				return e.Str("rel_id", rel.ID).Str("target", rel.Target)
			})
			continue
		}
		if _, ok := mapping.Lookup[rel.ID]; ok {
			// duplicate declaration; references already point at the carried-over entry
			continue
		}
		id := relID(next.MaxID() + 1)
		mapping.Lookup[rel.ID] = id
		rel.ID = id
		next.Append(rel)
	}

	if err := pkg.PutRelationships(PresentationPart, next); err != nil {
		return nil, nil, err
	}
	mapping.Entries = next.Items()

	doc, err := pkg.ReadXML(PresentationPart)
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite presentation: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, ErrMainDocumentMissing
	}

	list := childElement(root, "p", "sldIdLst")
	walk(root, func(el *etree.Element) {
		if list != nil && (el == list || el.Parent() == list) {
			return
		}
		for i := range el.Attr {
			attr := &el.Attr[i]
			if attr.NamespaceURI() != nsR {
				continue
			}
			if id, ok := mapping.Lookup[attr.Value]; ok {
				attr.Value = id
				continue
			}
			warn("unmapped relationship reference left untouched", func(e *zerolog.Event) *zerolog.Event {
				return e.Str("element", el.Tag).Str("rel_id", attr.Value)
			})
		}
	})

	if list == nil {
		list = etree.NewElement("p:sldIdLst")
		insertAfter(root, list, []string{"sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst"})
	}
	for _, child := range list.ChildElements() {
		list.RemoveChild(child)
	}
	for _, entry := range mapping.Slides {
		sldID := list.CreateElement("p:sldId")
		sldID.CreateAttr("id", itoa64(entry.ListID))
		sldID.CreateAttr("r:id", entry.RelID)
	}

	if err := pkg.WriteXML(PresentationPart, doc); err != nil {
		return nil, nil, err
	}

	logger.Debug().
		Int("slides", len(mapping.Slides)).
		Int("relationships", len(mapping.Entries)).
		Msg("main document relationships rewritten")
	return mapping, warnings, nil
}
