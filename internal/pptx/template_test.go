package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testExistingGUID = "0F3A9C1E5B7D4E2A8C6B1D3F5E7A9C0B"

type templateOptions struct {
	slides       int
	questionTag  bool
	withoutApp   bool
	layoutNames  []string
	dropMainPart bool
}

// buildTemplate assembles a small but complete presentation package. When questionTag is
// set the first slide carries a polling GUID in ppt/tags/tag1.xml.
func buildTemplate(t *testing.T, opts templateOptions) []byte {
	t.Helper()
	if opts.layoutNames == nil {
		opts.layoutNames = []string{"Title Slide", "Title and Content"}
	}

	parts := map[string]string{}
	var order []string
	put := func(name, body string) {
		order = append(order, name)
		parts[name] = body
	}

	var overrides strings.Builder
	override := func(part, ct string) {
		fmt.Fprintf(&overrides, `<Override PartName="/%s" ContentType="%s"/>`, part, ct)
	}
	override(PresentationPart, "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml")
	override("ppt/slideMasters/slideMaster1.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml")
	override("ppt/theme/theme1.xml", "application/vnd.openxmlformats-officedocument.theme+xml")
	for i := range opts.layoutNames {
		override(LayoutPart(i+1), ContentTypeSlideLayout)
	}
	for i := 1; i <= opts.slides; i++ {
		override(SlidePart(i), ContentTypeSlide)
	}
	if opts.questionTag {
		override(TagPart(1), ContentTypeTags)
	}
	if !opts.withoutApp {
		override(AppPropertiesPart, "application/vnd.openxmlformats-officedocument.extended-properties+xml")
	}

	put(ContentTypesPart, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Types xmlns="`+nsContentTypes+`">`+
		`<Default Extension="rels" ContentType="`+ContentTypeRels+`"/>`+
		`<Default Extension="xml" ContentType="`+ContentTypeXML+`"/>`+
		overrides.String()+`</Types>`)

	put("_rels/.rels", rels(
		rel("rId1", nsR+"/officeDocument", PresentationPart),
		rel("rId2", nsR+"/extended-properties", AppPropertiesPart),
	))

	if !opts.withoutApp {
		put(AppPropertiesPart, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<Properties xmlns="`+nsExtended+`" xmlns:vt="`+nsVTypes+`">`+
			`<TotalTime>3</TotalTime><Words>4</Words><Application>Microsoft Office PowerPoint</Application>`+
			`<Paragraphs>2</Paragraphs><Slides>2</Slides>`+
			`<HeadingPairs><vt:vector size="4" baseType="variant">`+
			`<vt:variant><vt:lpstr>Polices utilisées</vt:lpstr></vt:variant><vt:variant><vt:i4>1</vt:i4></vt:variant>`+
			`<vt:variant><vt:lpstr>Titres des diapositives</vt:lpstr></vt:variant><vt:variant><vt:i4>1</vt:i4></vt:variant>`+
			`</vt:vector></HeadingPairs>`+
			`<TitlesOfParts><vt:vector size="2" baseType="lpstr"><vt:lpstr>Arial</vt:lpstr><vt:lpstr>Old</vt:lpstr></vt:vector></TitlesOfParts>`+
			`<AppVersion>16.0000</AppVersion></Properties>`)
	}

	if !opts.dropMainPart {
		var sldIDs strings.Builder
		for i := 1; i <= opts.slides; i++ {
			fmt.Fprintf(&sldIDs, `<p:sldId id="%d" r:id="rId%d"/>`, 255+i, i+1)
		}
		put(PresentationPart, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<p:presentation xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`">`+
			`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
			`<p:sldIdLst>`+sldIDs.String()+`</p:sldIdLst>`+
			`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/>`+
			`</p:presentation>`)
	}

	presRels := []string{rel("rId1", RelTypeSlideMaster, "slideMasters/slideMaster1.xml")}
	for i := 1; i <= opts.slides; i++ {
		presRels = append(presRels, rel(fmt.Sprintf("rId%d", i+1), RelTypeSlide, fmt.Sprintf("slides/slide%d.xml", i)))
	}
	presRels = append(presRels, rel(fmt.Sprintf("rId%d", opts.slides+2), RelTypeTheme, "theme/theme1.xml"))
	put(PresentationRelsPart, rels(presRels...))

	var layoutIDs strings.Builder
	masterRels := []string{}
	for i := range opts.layoutNames {
		fmt.Fprintf(&layoutIDs, `<p:sldLayoutId id="%d" r:id="rId%d"/>`, 2147483649+i, i+1)
		masterRels = append(masterRels, rel(fmt.Sprintf("rId%d", i+1), RelTypeSlideLayout, fmt.Sprintf("../slideLayouts/slideLayout%d.xml", i+1)))
	}
	masterRels = append(masterRels, rel(fmt.Sprintf("rId%d", len(opts.layoutNames)+1), RelTypeTheme, "../theme/theme1.xml"))
	put("ppt/slideMasters/slideMaster1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<p:sldMaster xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`">`+
		`<p:cSld><p:spTree/></p:cSld><p:clrMap bg1="lt1" tx1="dk1"/>`+
		`<p:sldLayoutIdLst>`+layoutIDs.String()+`</p:sldLayoutIdLst></p:sldMaster>`)
	put("ppt/slideMasters/_rels/slideMaster1.xml.rels", rels(masterRels...))

	for i, name := range opts.layoutNames {
		part := LayoutPart(i + 1)
		put(part, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<p:sldLayout xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`">`+
			`<p:cSld name="`+name+`"><p:spTree/></p:cSld></p:sldLayout>`)
		put(RelsPartFor(part), rels(rel("rId1", RelTypeSlideMaster, "../slideMasters/slideMaster1.xml")))
	}

	put("ppt/theme/theme1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<a:theme xmlns:a="`+nsA+`" name="Thème Office"><a:themeElements><a:fontScheme name="Office">`+
		`<a:majorFont><a:latin typeface="Calibri Light"/></a:majorFont>`+
		`<a:minorFont><a:latin typeface="Calibri"/></a:minorFont>`+
		`</a:fontScheme></a:themeElements></a:theme>`)

	for i := 1; i <= opts.slides; i++ {
		part := SlidePart(i)
		custData := ""
		slideRels := []string{rel("rId1", RelTypeSlideLayout, "../slideLayouts/slideLayout1.xml")}
		if opts.questionTag && i == 1 {
			custData = `<p:custDataLst><p:tags r:id="rId2"/></p:custDataLst>`
			slideRels = append(slideRels, rel("rId2", RelTypeTags, "../tags/tag1.xml"))
		}
		put(part, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<p:sld xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`"><p:cSld><p:spTree>`+
			`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>`+
			`<p:spPr/><p:txBody><a:bodyPr/><a:p><a:r><a:t>`+fmt.Sprintf("Existing slide %d", i)+`</a:t></a:r></a:p></p:txBody></p:sp>`+
			`</p:spTree>`+custData+`</p:cSld></p:sld>`)
		put(RelsPartFor(part), rels(slideRels...))
	}
	if opts.questionTag {
		put(TagPart(1), `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<p:tagLst xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`">`+
			`<p:tag name="`+TagSlideGUID+`" val="`+testExistingGUID+`"/></p:tagLst>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openTemplate(t *testing.T, opts templateOptions) *Package {
	t.Helper()
	pkg, err := Open(buildTemplate(t, opts))
	require.NoError(t, err)
	return pkg
}

func rel(id, typ, target string) string {
	return fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"/>`, id, typ, target)
}

func rels(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="` + nsPackageRels + `">` + strings.Join(entries, "") + `</Relationships>`
}
