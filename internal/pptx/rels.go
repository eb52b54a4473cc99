package pptx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships is an ordered relationship table.
type Relationships struct {
	items []Relationship
}

// ParseRelationships decodes the body of a .rels part.
func ParseRelationships(data []byte) (*Relationships, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse relationships: %w", err)
	}
	rels := &Relationships{}
	root := doc.Root()
	if root == nil {
		return rels, nil
	}
	for _, el := range root.ChildElements() {
		if el.Tag != "Relationship" {
			continue
		}
		rels.items = append(rels.items, Relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		})
	}
	return rels, nil
}

// Relationships loads the relationship table of part. A missing .rels part yields an empty
// table and ok=false.
func (p *Package) Relationships(part string) (*Relationships, bool, error) {
	data, ok := p.Part(RelsPartFor(part))
	if !ok {
		return &Relationships{}, false, nil
	}
	rels, err := ParseRelationships(data)
	if err != nil {
		return nil, true, err
	}
	return rels, true, nil
}

// PutRelationships writes the relationship table of part.
func (p *Package) PutRelationships(part string, rels *Relationships) error {
	data, err := rels.Bytes()
	if err != nil {
		return err
	}
	p.Put(RelsPartFor(part), data)
	return nil
}

// Items returns a copy of the entries in declaration order.
func (r *Relationships) Items() []Relationship {
	out := make([]Relationship, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the entry count.
func (r *Relationships) Len() int { return len(r.items) }

// Get finds an entry by identifier.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// ByType returns the entries of one relationship type.
func (r *Relationships) ByType(typ string) []Relationship {
	var out []Relationship
	for _, rel := range r.items {
		if rel.Type == typ {
			out = append(out, rel)
		}
	}
	return out
}

// MaxID returns the highest numeric rId suffix in use, 0 when none.
func (r *Relationships) MaxID() int {
	max := 0
	for _, rel := range r.items {
		if n, ok := relIDNumber(rel.ID); ok && n > max {
			max = n
		}
	}
	return max
}

// Add appends an entry with the next free identifier and returns that identifier.
func (r *Relationships) Add(typ, target string) string {
	id := relID(r.MaxID() + 1)
	r.items = append(r.items, Relationship{ID: id, Type: typ, Target: target})
	return id
}

// Append adds a fully specified entry.
func (r *Relationships) Append(rel Relationship) {
	r.items = append(r.items, rel)
}

// SetTarget rewrites the target of the entry at index i.
func (r *Relationships) SetTarget(i int, target string) {
	r.items[i].Target = target
}

// Bytes serializes the table.
func (r *Relationships) Bytes() ([]byte, error) {
	doc := newXMLDocument()
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", nsPackageRels)
	for _, rel := range r.items {
		el := root.CreateElement("Relationship")
		el.CreateAttr("Id", rel.ID)
		el.CreateAttr("Type", rel.Type)
		el.CreateAttr("Target", rel.Target)
		if rel.TargetMode != "" {
			el.CreateAttr("TargetMode", rel.TargetMode)
		}
	}
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize relationships: %w", err)
	}
	return data, nil
}

func relID(n int) string {
	return "rId" + strconv.Itoa(n)
}

func relIDNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "rId"))
	if err != nil {
		return 0, false
	}
	return n, true
}
