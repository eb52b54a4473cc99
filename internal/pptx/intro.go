package pptx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

const (
	introLayoutRel   = "rId1"
	participantsName = "Participants"
	tableURI         = "http://schemas.openxmlformats.org/drawingml/2006/table"
	tableRowHeight   = 370840
)

// participantColumns are the roster table headers.
var participantColumns = []string{"Nom", "Prénom", "Boîtier"}

// WriteTitleSlide writes the session title slide at slide position number.
func WriteTitleSlide(pkg *Package, number int, layoutPart string, info session.Info) (string, error) {
	part := SlidePart(number)

	doc := newXMLDocument()
	root := newPresentationRoot(doc, "sld")
	cSld := root.CreateElement("p:cSld")
	tree := cSld.CreateElement("p:spTree")
	addGroupProperties(tree)

	title := shape{ID: 2, Name: "Title 1", PhType: "ctrTitle"}.addTo(tree)
	addParagraph(title, SanitizeText(info.Title), paragraphStyle{})

	subtitle := shape{ID: 3, Name: "Subtitle 2", PhType: "subTitle", PhIndex: "1"}.addTo(tree)
	lines := titleLines(info)
	if len(lines) == 0 {
		addParagraph(subtitle, "", paragraphStyle{})
	}
	for _, line := range lines {
		addParagraph(subtitle, SanitizeText(line), paragraphStyle{})
	}
	root.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")

	return part, writeIntroParts(pkg, part, layoutPart, doc)
}

func titleLines(info session.Info) []string {
	var lines []string
	if info.Reference != "" {
		lines = append(lines, info.Reference)
	}
	var when []string
	if !info.Date.IsZero() {
		when = append(when, info.Date.Format("02/01/2006"))
	}
	if info.Location != "" {
		when = append(when, info.Location)
	}
	if len(when) > 0 {
		lines = append(lines, strings.Join(when, " - "))
	}
	if info.Trainer != "" {
		lines = append(lines, "Formateur : "+info.Trainer)
	}
	return lines
}

// WriteParticipantsSlide writes the roster table slide at slide position number.
func WriteParticipantsSlide(pkg *Package, number int, layoutPart string, participants []session.Participant, size SlideSize) (string, error) {
	part := SlidePart(number)

	doc := newXMLDocument()
	root := newPresentationRoot(doc, "sld")
	cSld := root.CreateElement("p:cSld")
	tree := cSld.CreateElement("p:spTree")
	addGroupProperties(tree)

	title := shape{ID: 2, Name: "Title 1", PhType: "title"}.addTo(tree)
	addParagraph(title, participantsName, paragraphStyle{})

	g := questionGeometry(size, false)
	box := Rect{X: g.answers.X, Y: g.answers.Y, CX: g.answers.CX, CY: int64(len(participants)+1) * tableRowHeight}
	rows := make([][]string, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, []string{p.LastName, p.FirstName, session.NormalizeSerial(p.DeviceSerial)})
	}
	addTable(tree, 3, participantsName, box, participantColumns, rows)

	root.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")
	return part, writeIntroParts(pkg, part, layoutPart, doc)
}

func addTable(tree *etree.Element, id int, name string, box Rect, headers []string, rows [][]string) {
	frame := tree.CreateElement("p:graphicFrame")
	nv := frame.CreateElement("p:nvGraphicFramePr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(id))
	cNvPr.CreateAttr("name", name)
	nv.CreateElement("p:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks").CreateAttr("noGrp", "1")
	nv.CreateElement("p:nvPr")

	xfrm := frame.CreateElement("p:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", itoa64(box.X))
	off.CreateAttr("y", itoa64(box.Y))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", itoa64(box.CX))
	ext.CreateAttr("cy", itoa64(box.CY))

	data := frame.CreateElement("a:graphic").CreateElement("a:graphicData")
	data.CreateAttr("uri", tableURI)
	tbl := data.CreateElement("a:tbl")
	tblPr := tbl.CreateElement("a:tblPr")
	tblPr.CreateAttr("firstRow", "1")
	tblPr.CreateAttr("bandRow", "1")

	grid := tbl.CreateElement("a:tblGrid")
	width := box.CX / int64(len(headers))
	for range headers {
		grid.CreateElement("a:gridCol").CreateAttr("w", itoa64(width))
	}

	addTableRow(tbl, headers)
	for _, row := range rows {
		addTableRow(tbl, row)
	}
}

func addTableRow(tbl *etree.Element, cells []string) {
	tr := tbl.CreateElement("a:tr")
	tr.CreateAttr("h", strconv.Itoa(tableRowHeight))
	for _, cell := range cells {
		tc := tr.CreateElement("a:tc")
		body := tc.CreateElement("a:txBody")
		body.CreateElement("a:bodyPr")
		body.CreateElement("a:lstStyle")
		addParagraph(body, SanitizeText(cell), paragraphStyle{})
		tc.CreateElement("a:tcPr")
	}
}

func writeIntroParts(pkg *Package, part, layoutPart string, doc *etree.Document) error {
	if err := pkg.WriteXML(part, doc); err != nil {
		return err
	}
	rels := &Relationships{}
	rels.Append(Relationship{ID: introLayoutRel, Type: RelTypeSlideLayout, Target: RelativeTarget(part, layoutPart)})
	return pkg.PutRelationships(part, rels)
}
