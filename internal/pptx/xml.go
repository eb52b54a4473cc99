package pptx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

func newXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return doc
}

// newPresentationRoot creates a p: root element declaring the a/r/p namespaces.
func newPresentationRoot(doc *etree.Document, tag string) *etree.Element {
	root := doc.CreateElement("p:" + tag)
	root.CreateAttr("xmlns:a", nsA)
	root.CreateAttr("xmlns:r", nsR)
	root.CreateAttr("xmlns:p", nsP)
	return root
}

// walk visits el and all its descendants depth-first.
func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}

// findAll returns every descendant (or el itself) with the given prefix and local name.
func findAll(el *etree.Element, space, tag string) []*etree.Element {
	var out []*etree.Element
	walk(el, func(e *etree.Element) {
		if e.Space == space && e.Tag == tag {
			out = append(out, e)
		}
	})
	return out
}

// findFirst returns the first descendant matching prefix and local name.
func findFirst(el *etree.Element, space, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Space == space && el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findFirst(child, space, tag); found != nil {
			return found
		}
	}
	return nil
}

// childElement returns the first direct child with the given prefix and local name.
func childElement(el *etree.Element, space, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if child.Space == space && child.Tag == tag {
			return child
		}
	}
	return nil
}

// paragraphText concatenates the a:t runs of one a:p.
func paragraphText(p *etree.Element) string {
	var b strings.Builder
	for _, t := range findAll(p, "a", "t") {
		b.WriteString(t.Text())
	}
	return b.String()
}

// shapeText joins the paragraphs of a shape with spaces.
func shapeText(sp *etree.Element) string {
	var parts []string
	for _, p := range findAll(sp, "a", "p") {
		if txt := strings.TrimSpace(paragraphText(p)); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

func attrInt(el *etree.Element, key string) (int64, bool) {
	if el == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(el.SelectAttrValue(key, ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
