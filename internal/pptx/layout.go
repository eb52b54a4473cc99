package pptx

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LayoutCategory selects the alias list used when a requested layout name is not found.
type LayoutCategory string

const (
	LayoutCategoryTitle        LayoutCategory = "title"
	LayoutCategoryParticipants LayoutCategory = "participants"
)

// DefaultPollingLayoutName is the layout question slides are attached to.
const DefaultPollingLayoutName = "Polling Question"

var layoutAliases = map[LayoutCategory][]string{
	LayoutCategoryTitle: {
		"title slide", "diapositive de titre", "titre", "title", "title only", "titre seul",
	},
	LayoutCategoryParticipants: {
		"participants", "liste des participants", "participant list",
		"title and content", "titre et contenu", "title only", "titre seul",
	},
}

// NormalizeLayoutName folds case, accents and separators so "Diapositive de Titre" and
// "diapositive_de_titre" compare equal.
func NormalizeLayoutName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindLayout resolves a requested layout name, then the category aliases in order.
func (inv *Inventory) FindLayout(requested string, category LayoutCategory) (LayoutInfo, bool) {
	candidates := make([]string, 0, 1+len(layoutAliases[category]))
	if strings.TrimSpace(requested) != "" {
		candidates = append(candidates, requested)
	}
	candidates = append(candidates, layoutAliases[category]...)

	for _, candidate := range candidates {
		want := NormalizeLayoutName(candidate)
		for _, layout := range inv.Layouts {
			if NormalizeLayoutName(layout.Name) == want {
				return layout, true
			}
		}
	}
	return LayoutInfo{}, false
}

// EnsurePollingLayout returns the dedicated polling layout, synthesizing and registering one
// on the primary master when the template has none. created reports a synthesis.
func EnsurePollingLayout(pkg *Package, inv *Inventory, name string, logger zerolog.Logger) (LayoutInfo, bool, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultPollingLayoutName
	}
	want := NormalizeLayoutName(name)
	for _, layout := range inv.Layouts {
		if NormalizeLayoutName(layout.Name) == want {
			return layout, false, nil
		}
	}

	master := inv.PrimaryMaster()
	if master == "" || !pkg.Has(master) {
		return LayoutInfo{}, false, fmt.Errorf("synthesize layout %q: template has no slide master", name)
	}

	inv.MaxLayoutNumber++
	part := LayoutPart(inv.MaxLayoutNumber)

	if err := pkg.WriteXML(part, pollingLayoutDocument(name)); err != nil {
		return LayoutInfo{}, false, err
	}
	layoutRels := &Relationships{}
	layoutRels.Append(Relationship{ID: relID(1), Type: RelTypeSlideMaster, Target: RelativeTarget(part, master)})
	if err := pkg.PutRelationships(part, layoutRels); err != nil {
		return LayoutInfo{}, false, err
	}
	inv.RelMax[RelsPartFor(part)] = 1

	masterRels, _, err := pkg.Relationships(master)
	if err != nil {
		return LayoutInfo{}, false, fmt.Errorf("synthesize layout: %w", err)
	}
	relsPart := RelsPartFor(master)
	if masterRels.MaxID() > inv.RelMax[relsPart] {
		inv.RelMax[relsPart] = masterRels.MaxID()
	}
	rid := inv.NextRelID(relsPart)
	masterRels.Append(Relationship{ID: rid, Type: RelTypeSlideLayout, Target: RelativeTarget(master, part)})
	if err := pkg.PutRelationships(master, masterRels); err != nil {
		return LayoutInfo{}, false, err
	}

	if err := registerLayoutOnMaster(pkg, master, rid); err != nil {
		return LayoutInfo{}, false, err
	}

	layout := LayoutInfo{Part: part, Name: name, MasterPart: master, MasterRelID: rid}
	inv.Layouts = append(inv.Layouts, layout)
	logger.Info().Str("part", part).Str("layout", name).Msg("polling layout synthesized")
	return layout, true, nil
}

// registerLayoutOnMaster appends a p:sldLayoutId entry. Layout list ids share one number
// space with master ids and must stay above 2^31.
func registerLayoutOnMaster(pkg *Package, master, rid string) error {
	doc, err := pkg.ReadXML(master)
	if err != nil {
		return fmt.Errorf("register layout: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("register layout: empty master %s", master)
	}

	maxID := int64(firstLayoutListIDBase)
	for _, part := range append(pkg.Find(masterPrefix, xmlSuffix), PresentationPart) {
		other := doc
		if part != master {
			if other, err = pkg.ReadXML(part); err != nil || other.Root() == nil {
				continue
			}
		}
		walk(other.Root(), func(el *etree.Element) {
			if el.Tag == "sldLayoutId" || el.Tag == "sldMasterId" {
				if id, ok := attrInt(el, "id"); ok && id > maxID {
					maxID = id
				}
			}
		})
	}

	list := childElement(root, "p", "sldLayoutIdLst")
	if list == nil {
		list = etree.NewElement("p:sldLayoutIdLst")
		insertAfter(root, list, []string{"clrMap", "cSld"})
	}
	entry := list.CreateElement("p:sldLayoutId")
	entry.CreateAttr("id", itoa64(maxID+1))
	entry.CreateAttr("r:id", rid)

	return pkg.WriteXML(master, doc)
}

// insertAfter places child right after the last direct child whose local name is listed,
// or at the end when none is present.
func insertAfter(parent, child *etree.Element, after []string) {
	idx := -1
	for _, name := range after {
		for _, existing := range parent.ChildElements() {
			if existing.Tag == name && existing.Index() > idx {
				idx = existing.Index()
			}
		}
	}
	if idx < 0 {
		parent.AddChild(child)
		return
	}
	parent.InsertChildAt(idx+1, child)
}

func pollingLayoutDocument(name string) *etree.Document {
	doc := newXMLDocument()
	root := newPresentationRoot(doc, "sldLayout")
	root.CreateAttr("preserve", "1")
	root.CreateAttr("userDrawn", "1")

	cSld := root.CreateElement("p:cSld")
	cSld.CreateAttr("name", name)
	tree := cSld.CreateElement("p:spTree")
	addGroupProperties(tree)

	title := shape{ID: 2, Name: "Title 1", PhType: "title"}.addTo(tree)
	addParagraph(title, "", paragraphStyle{})

	body := shape{ID: 3, Name: "Text Placeholder 2", PhType: "body", PhIndex: "1"}.addTo(tree)
	addParagraph(body, "", paragraphStyle{})

	root.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")
	return doc
}
