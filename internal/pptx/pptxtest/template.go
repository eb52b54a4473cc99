// Package pptxtest builds small presentation packages for tests.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	nsP   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRel = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	ExistingGUID = "0F3A9C1E5B7D4E2A8C6B1D3F5E7A9C0B"
	xmlHeader    = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`
)

// Template returns a two-slide presentation whose first slide is an earlier polling
// question tagged with ExistingGUID. layouts names the slide layouts of the single master
// and defaults to "Title Slide" and "Title and Content".
func Template(t testing.TB, layouts ...string) []byte {
	t.Helper()
	if len(layouts) == 0 {
		layouts = []string{"Title Slide", "Title and Content"}
	}
	rel := func(id, typ, target string) string {
		return fmt.Sprintf(`<Relationship Id="%s" Type="%s/%s" Target="%s"/>`, id, nsR, typ, target)
	}
	rels := func(entries ...string) string {
		return xmlHeader + `<Relationships xmlns="` + nsRel + `">` + strings.Join(entries, "") + `</Relationships>`
	}
	root := `xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"`

	var overrides strings.Builder
	override := func(part, ct string) {
		fmt.Fprintf(&overrides, `<Override PartName="/%s" ContentType="application/vnd.openxmlformats-officedocument.%s"/>`, part, ct)
	}
	override("ppt/presentation.xml", "presentationml.presentation.main+xml")
	override("ppt/slideMasters/slideMaster1.xml", "presentationml.slideMaster+xml")
	override("ppt/theme/theme1.xml", "theme+xml")
	override("ppt/tags/tag1.xml", "presentationml.tags+xml")
	override("docProps/app.xml", "extended-properties+xml")
	for i := range layouts {
		override(fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1), "presentationml.slideLayout+xml")
	}
	for i := 1; i <= 2; i++ {
		override(fmt.Sprintf("ppt/slides/slide%d.xml", i), "presentationml.slide+xml")
	}

	var layoutIDs strings.Builder
	var masterRels []string
	for i := range layouts {
		fmt.Fprintf(&layoutIDs, `<p:sldLayoutId id="%d" r:id="rId%d"/>`, 2147483649+i, i+1)
		masterRels = append(masterRels, rel(fmt.Sprintf("rId%d", i+1), "slideLayout", fmt.Sprintf("../slideLayouts/slideLayout%d.xml", i+1)))
	}
	masterRels = append(masterRels, rel(fmt.Sprintf("rId%d", len(layouts)+1), "theme", "../theme/theme1.xml"))

	parts := [][2]string{
		{"[Content_Types].xml", xmlHeader + `<Types xmlns="` + nsCT + `">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` + overrides.String() + `</Types>`},
		{"_rels/.rels", rels(rel("rId1", "officeDocument", "ppt/presentation.xml"), rel("rId2", "extended-properties", "docProps/app.xml"))},
		{"docProps/app.xml", xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" ` +
			`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"><Slides>2</Slides><Application>Microsoft Office PowerPoint</Application></Properties>`},
		{"ppt/presentation.xml", xmlHeader + `<p:presentation ` + root + `>` +
			`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
			`<p:sldIdLst><p:sldId id="256" r:id="rId2"/><p:sldId id="257" r:id="rId3"/></p:sldIdLst>` +
			`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>`},
		{"ppt/_rels/presentation.xml.rels", rels(
			rel("rId1", "slideMaster", "slideMasters/slideMaster1.xml"),
			rel("rId2", "slide", "slides/slide1.xml"),
			rel("rId3", "slide", "slides/slide2.xml"),
			rel("rId4", "theme", "theme/theme1.xml"),
		)},
		{"ppt/slideMasters/slideMaster1.xml", xmlHeader + `<p:sldMaster ` + root + `><p:cSld><p:spTree/></p:cSld>` +
			`<p:clrMap bg1="lt1" tx1="dk1"/><p:sldLayoutIdLst>` + layoutIDs.String() + `</p:sldLayoutIdLst></p:sldMaster>`},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", rels(masterRels...)},
		{"ppt/theme/theme1.xml", xmlHeader + `<a:theme xmlns:a="` + nsA + `" name="Office"><a:themeElements><a:fontScheme name="Office">` +
			`<a:majorFont><a:latin typeface="Calibri Light"/></a:majorFont><a:minorFont><a:latin typeface="Calibri"/></a:minorFont>` +
			`</a:fontScheme></a:themeElements></a:theme>`},
		{"ppt/tags/tag1.xml", xmlHeader + `<p:tagLst ` + root + `><p:tag name="OR_SLIDE_GUID" val="` + ExistingGUID + `"/></p:tagLst>`},
	}
	for i, name := range layouts {
		part := fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1)
		parts = append(parts,
			[2]string{part, xmlHeader + `<p:sldLayout ` + root + `><p:cSld name="` + name + `"><p:spTree/></p:cSld></p:sldLayout>`},
			[2]string{fmt.Sprintf("ppt/slideLayouts/_rels/slideLayout%d.xml.rels", i+1), rels(rel("rId1", "slideMaster", "../slideMasters/slideMaster1.xml"))},
		)
	}
	for i := 1; i <= 2; i++ {
		custData := ""
		slideRels := []string{rel("rId1", "slideLayout", "../slideLayouts/slideLayout1.xml")}
		if i == 1 {
			custData = `<p:custDataLst><p:tags r:id="rId2"/></p:custDataLst>`
			slideRels = append(slideRels, rel("rId2", "tags", "../tags/tag1.xml"))
		}
		parts = append(parts,
			[2]string{fmt.Sprintf("ppt/slides/slide%d.xml", i), xmlHeader + `<p:sld ` + root + `><p:cSld><p:spTree>` +
				`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>` +
				`<p:spPr/><p:txBody><a:bodyPr/><a:p><a:r><a:t>` + fmt.Sprintf("Existing slide %d", i) + `</a:t></a:r></a:p></p:txBody></p:sp>` +
				`</p:spTree>` + custData + `</p:cSld></p:sld>`},
			[2]string{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i), rels(slideRels...)},
		)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(p[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// PNG encodes a w x h picture.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
