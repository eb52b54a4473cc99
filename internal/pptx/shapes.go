package pptx

import (
	"strconv"

	"github.com/beevik/etree"
)

const defaultLang = "fr-FR"

// shape describes one p:sp element of a slide or layout tree.
type shape struct {
	ID      int
	Name    string
	PhType  string
	PhIndex string
	// TagRelID links the shape to its metadata fragment when set.
	TagRelID string
	Box      *Rect
	// Geometry is a preset shape name for free-standing shapes such as "ellipse".
	Geometry string
}

// addTo appends the shape to tree and returns its text body.
func (s shape) addTo(tree *etree.Element) *etree.Element {
	sp := tree.CreateElement("p:sp")

	nv := sp.CreateElement("p:nvSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(s.ID))
	cNvPr.CreateAttr("name", s.Name)
	cNvSpPr := nv.CreateElement("p:cNvSpPr")
	if s.placeholder() {
		cNvSpPr.CreateElement("a:spLocks").CreateAttr("noGrp", "1")
	}

	nvPr := nv.CreateElement("p:nvPr")
	if s.placeholder() {
		ph := nvPr.CreateElement("p:ph")
		if s.PhType != "" {
			ph.CreateAttr("type", s.PhType)
		}
		if s.PhIndex != "" {
			ph.CreateAttr("idx", s.PhIndex)
		}
	}
	if s.TagRelID != "" {
		addTagReference(nvPr, s.TagRelID)
	}

	spPr := sp.CreateElement("p:spPr")
	if s.Box != nil {
		addTransform(spPr, *s.Box)
	}
	if s.Geometry != "" {
		addPresetGeometry(spPr, s.Geometry)
	}

	body := sp.CreateElement("p:txBody")
	body.CreateElement("a:bodyPr")
	body.CreateElement("a:lstStyle")
	return body
}

func (s shape) placeholder() bool { return s.PhType != "" || s.PhIndex != "" }

func addPresetGeometry(spPr *etree.Element, preset string) {
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", preset)
	geom.CreateElement("a:avLst")
}

// addTagReference appends <p:custDataLst><p:tags r:id=".."/></p:custDataLst>.
func addTagReference(parent *etree.Element, rid string) {
	parent.CreateElement("p:custDataLst").CreateElement("p:tags").CreateAttr("r:id", rid)
}

func addTransform(parent *etree.Element, box Rect) {
	xfrm := parent.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", itoa64(box.X))
	off.CreateAttr("y", itoa64(box.Y))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", itoa64(box.CX))
	ext.CreateAttr("cy", itoa64(box.CY))
}

func addGroupProperties(tree *etree.Element) {
	nv := tree.CreateElement("p:nvGrpSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", "1")
	cNvPr.CreateAttr("name", "")
	nv.CreateElement("p:cNvGrpSpPr")
	nv.CreateElement("p:nvPr")

	xfrm := tree.CreateElement("p:grpSpPr").CreateElement("a:xfrm")
	for _, pair := range [][3]string{{"a:off", "x", "y"}, {"a:ext", "cx", "cy"}, {"a:chOff", "x", "y"}, {"a:chExt", "cx", "cy"}} {
		el := xfrm.CreateElement(pair[0])
		el.CreateAttr(pair[1], "0")
		el.CreateAttr(pair[2], "0")
	}
}

// paragraphStyle holds the few paragraph properties slides need. The zero value is plain text.
type paragraphStyle struct {
	// AutoNumber is a DrawingML auto-number scheme such as "alphaUcParenR".
	AutoNumber string
	Align      string
}

// addParagraph appends an a:p holding text. An empty text yields an empty paragraph.
func addParagraph(body *etree.Element, text string, style paragraphStyle) *etree.Element {
	p := body.CreateElement("a:p")
	if style.AutoNumber != "" || style.Align != "" {
		pPr := p.CreateElement("a:pPr")
		if style.AutoNumber != "" {
			pPr.CreateAttr("marL", "514350")
			pPr.CreateAttr("indent", "-514350")
		}
		if style.Align != "" {
			pPr.CreateAttr("algn", style.Align)
		}
		if style.AutoNumber != "" {
			pPr.CreateElement("a:buFont").CreateAttr("typeface", "+mj-lt")
			pPr.CreateElement("a:buAutoNum").CreateAttr("type", style.AutoNumber)
		}
	}
	if text == "" {
		p.CreateElement("a:endParaRPr").CreateAttr("lang", defaultLang)
		return p
	}
	r := p.CreateElement("a:r")
	rPr := r.CreateElement("a:rPr")
	rPr.CreateAttr("lang", defaultLang)
	rPr.CreateAttr("dirty", "0")
	r.CreateElement("a:t").SetText(text)
	return p
}

// bulletScheme maps a polling bullet style onto a DrawingML auto-number scheme.
func bulletScheme(style string) string {
	switch style {
	case "ppBulletAlphaUCPeriod":
		return "alphaUcPeriod"
	case "ppBulletAlphaLCParenRight":
		return "alphaLcParenR"
	case "ppBulletAlphaLCPeriod":
		return "alphaLcPeriod"
	case "ppBulletArabicParenRight":
		return "arabicParenR"
	case "ppBulletArabicPeriod":
		return "arabicPeriod"
	default:
		return "alphaUcParenR"
	}
}
