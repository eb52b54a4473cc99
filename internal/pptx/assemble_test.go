package pptx

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type assembled struct {
	inv       *Inventory
	order     SlideOrder
	questions []*QuestionSlide
	mapping   *RelationshipMapping
	warnings  []string
}

// assemble runs the pipeline steps the assembly service chains together.
func assemble(t *testing.T, pkg *Package, questions []session.Question, images map[int]*PreparedImage, intro bool) assembled {
	t.Helper()
	logger := zerolog.Nop()

	inv, err := Inspect(pkg, logger)
	require.NoError(t, err)
	polling, created, err := EnsurePollingLayout(pkg, inv, "", logger)
	require.NoError(t, err)

	var order SlideOrder
	offset := 0
	if intro {
		offset = 1
	}
	renames, err := RenumberExistingSlides(pkg, inv.Slides, offset)
	require.NoError(t, err)
	for _, old := range inv.Slides {
		order.Existing = append(order.Existing, renames[old])
	}
	if intro {
		titleLayout, ok := inv.FindLayout("", LayoutCategoryTitle)
		require.True(t, ok)
		part, err := WriteTitleSlide(pkg, 1, titleLayout.Part, session.Info{
			Title:    "CACES R489 & recyclage",
			Date:     time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			Location: "Lyon",
			Trainer:  "M. Durand",
		})
		require.NoError(t, err)
		order.Intro = append(order.Intro, part)
	}

	var out assembled
	var mediaExts []string
	tag := inv.MaxTagNumber + 1
	for i, q := range questions {
		in := QuestionSlideInput{
			Question:   q,
			Number:     offset + len(order.Existing) + i + 1,
			TagBase:    tag + TagsPerQuestion*i,
			LayoutPart: polling.Part,
			Polling:    session.DefaultPollingConfig(),
			Weights:    "1.00,0.00",
			Size:       inv.Size,
		}
		if img, ok := images[i]; ok {
			inv.MaxMediaNumber++
			in.Image = img
			in.MediaNumber = inv.MaxMediaNumber
			mediaExts = append(mediaExts, img.Ext)
		}
		slide, err := WriteQuestionSlide(pkg, in)
		require.NoError(t, err)
		out.questions = append(out.questions, slide)
		order.Questions = append(order.Questions, slide.SlidePart)
	}

	mapping, warnings, err := RewritePresentation(pkg, order, logger)
	require.NoError(t, err)

	update := ManifestUpdate{
		Slides:          order.All(),
		MaxTag:          inv.MaxTagNumber + TagsPerQuestion*len(questions),
		MediaExtensions: mediaExts,
	}
	if created {
		update.Layouts = []string{polling.Part}
	}
	manifestWarnings, err := UpdateManifest(pkg, update, logger)
	require.NoError(t, err)

	out.inv = inv
	out.order = order
	out.mapping = mapping
	out.warnings = append(warnings, manifestWarnings...)
	return out
}

func twoOptionQuestions(n int) []session.Question {
	out := make([]session.Question, n)
	for i := range out {
		correct := 0
		out[i] = session.Question{
			ID:           int64(100 + i),
			Text:         "Question",
			Options:      []string{"Oui", "Non"},
			CorrectIndex: &correct,
			ThemeBlock:   "R489_A",
		}
	}
	return out
}

func TestAssembleNumbersSlidesAndTagsContiguously(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 2, questionTag: true})
	res := assemble(t, pkg, twoOptionQuestions(3), nil, true)

	want := []string{SlidePart(1), SlidePart(2), SlidePart(3), SlidePart(4), SlidePart(5), SlidePart(6)}
	assert.Equal(t, want, pkg.Find(slidePrefix, xmlSuffix))
	assert.Equal(t, want, res.order.All())

	tags := pkg.Find(tagPrefix, xmlSuffix)
	require.Len(t, tags, 1+4*3)
	for i, part := range tags {
		assert.Equal(t, TagPart(i+1), part)
	}
	assert.Equal(t, []string{TagPart(2), TagPart(3), TagPart(4), TagPart(5)}, res.questions[0].Tags)
	assert.Equal(t, []string{TagPart(10), TagPart(11), TagPart(12), TagPart(13)}, res.questions[2].Tags)
	assert.Empty(t, res.warnings)
}

func TestAssembleKeepsRelationshipIdentifiersUnique(t *testing.T) {
	for _, tc := range []struct {
		name     string
		existing int
		intro    bool
	}{
		{"no intro no existing", 0, false},
		{"intro only", 0, true},
		{"existing only", 3, false},
		{"intro and existing", 3, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pkg := openTemplate(t, templateOptions{slides: tc.existing})
			assemble(t, pkg, twoOptionQuestions(2), nil, tc.intro)

			for _, name := range pkg.Names() {
				if !strings.HasSuffix(name, relsSuffix) {
					continue
				}
				data, _ := pkg.Part(name)
				table, err := ParseRelationships(data)
				require.NoError(t, err)
				seen := map[string]bool{}
				for _, r := range table.Items() {
					assert.False(t, seen[r.ID], "%s declares %s twice", name, r.ID)
					seen[r.ID] = true
					if !r.External() {
						assert.True(t, pkg.Has(ResolveTarget(SourcePartFor(name), r.Target)), "%s -> %s", name, r.Target)
					}
				}
			}
		})
	}
}

func TestQuestionSlideGUIDFollowsFirstRelationship(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1, questionTag: true})
	res := assemble(t, pkg, twoOptionQuestions(2), nil, false)

	for _, q := range res.questions {
		table, found, err := pkg.Relationships(q.SlidePart)
		require.NoError(t, err)
		require.True(t, found)
		first, ok := table.Get("rId1")
		require.True(t, ok)
		assert.Equal(t, RelTypeTags, first.Type)

		values, err := ReadTags(pkg, ResolveTarget(q.SlidePart, first.Target))
		require.NoError(t, err)
		assert.Equal(t, q.GUID, values[TagSlideGUID])
		assert.Equal(t, "30", values[TagTimeLimit])
		assert.Equal(t, "False", values[TagMultipleResponses])
		assert.Len(t, q.GUID, 32)
	}

	answers, err := ReadTags(pkg, res.questions[0].Tags[2])
	require.NoError(t, err)
	assert.Equal(t, ShapeTypeAnswers, answers[TagShapeType])
	assert.Equal(t, "1.00,0.00", answers[TagAnswerPoints])
	assert.Equal(t, "Oui|Non", answers[TagAnswersText])

	// the template question stays first and keeps its identifier
	inv, err := Inspect(pkg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, testExistingGUID, inv.SlideGUIDs[SlidePart(1)])
	assert.Len(t, inv.ExistingSlideGUIDs(), 3)
}

func TestRenumberMovesExistingSlidesBehindIntro(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 2, questionTag: true})
	assemble(t, pkg, twoOptionQuestions(1), nil, true)

	inv, err := Inspect(pkg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, testExistingGUID, inv.SlideGUIDs[SlidePart(2)])

	doc, err := pkg.ReadXML(SlidePart(3))
	require.NoError(t, err)
	assert.Equal(t, "Existing slide 2", slideTitle(doc.Root(), SlideKindExisting))
}

func TestRewritePresentationRebuildsSlideList(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 2})
	res := assemble(t, pkg, twoOptionQuestions(2), nil, true)

	presRels, _, err := pkg.Relationships(PresentationPart)
	require.NoError(t, err)
	master, ok := presRels.Get("rId1")
	require.True(t, ok)
	assert.Equal(t, RelTypeSlideMaster, master.Type)
	for i := 1; i <= 5; i++ {
		r, ok := presRels.Get(relID(i + 1))
		require.True(t, ok)
		assert.Equal(t, RelativeTarget(PresentationPart, SlidePart(i)), r.Target)
	}
	theme := presRels.ByType(RelTypeTheme)
	require.Len(t, theme, 1)
	assert.Equal(t, "rId7", theme[0].ID)
	assert.Equal(t, "rId7", res.mapping.Lookup["rId4"])

	doc, err := pkg.ReadXML(PresentationPart)
	require.NoError(t, err)
	masterID := findFirst(doc.Root(), "p", "sldMasterId")
	assert.Equal(t, "rId1", masterID.SelectAttrValue("r:id", ""))

	entries := childElement(doc.Root(), "p", "sldIdLst").ChildElements()
	require.Len(t, entries, 5)
	for i, el := range entries {
		assert.Equal(t, itoa64(int64(256+i)), el.SelectAttrValue("id", ""))
		assert.Equal(t, relID(i+2), el.SelectAttrValue("r:id", ""))
		assert.Equal(t, i+1, res.mapping.Slides[i].Position)
	}
}

func TestQuestionSlideEscapesTextAndEmbedsImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 100))))
	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)

	questions := twoOptionQuestions(1)
	questions[0].Text = `Charge < 2t & "levage" -- ok?`

	pkg := openTemplate(t, templateOptions{slides: 0})
	res := assemble(t, pkg, questions, map[int]*PreparedImage{0: img}, false)
	slide := res.questions[0]

	raw, _ := pkg.Part(slide.SlidePart)
	assert.Contains(t, string(raw), "Charge &lt; 2t &amp;")
	doc, err := pkg.ReadXML(slide.SlidePart)
	require.NoError(t, err)
	assert.Equal(t, `Charge < 2t & "levage" — ok?`, slideTitle(doc.Root(), SlideKindQuestion))
	assert.NotNil(t, findFirst(doc.Root(), "p", "pic"))

	assert.Equal(t, MediaPart(1, "png"), slide.MediaPart)
	assert.True(t, pkg.Has(slide.MediaPart))
	table, _, err := pkg.Relationships(slide.SlidePart)
	require.NoError(t, err)
	imageRel, ok := table.Get("rId6")
	require.True(t, ok)
	assert.Equal(t, "../media/image1.png", imageRel.Target)

	manifest, err := pkg.ReadXML(ContentTypesPart)
	require.NoError(t, err)
	pngIndex, firstOverride := -1, -1
	for _, el := range manifest.Root().ChildElements() {
		if el.Tag == "Default" && el.SelectAttrValue("Extension", "") == "png" {
			pngIndex = el.Index()
		}
		if el.Tag == "Override" && firstOverride < 0 {
			firstOverride = el.Index()
		}
	}
	require.GreaterOrEqual(t, pngIndex, 0)
	assert.Less(t, pngIndex, firstOverride)
}

func TestCountdownOmittedForZeroDuration(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 0})
	inv, err := Inspect(pkg, zerolog.Nop())
	require.NoError(t, err)

	polling := session.DefaultPollingConfig()
	polling.DefaultDurationSeconds = 0
	slide, err := WriteQuestionSlide(pkg, QuestionSlideInput{
		Question:   twoOptionQuestions(1)[0],
		Number:     1,
		TagBase:    1,
		LayoutPart: LayoutPart(1),
		Polling:    polling,
		Weights:    "1.00,0.00",
		Size:       inv.Size,
	})
	require.NoError(t, err)

	doc, err := pkg.ReadXML(slide.SlidePart)
	require.NoError(t, err)
	for _, sp := range findAll(doc.Root(), "p", "sp") {
		assert.NotEqual(t, "Countdown", findFirst(sp, "p", "cNvPr").SelectAttrValue("name", ""))
	}
	assert.True(t, pkg.Has(TagPart(4)))
}

func TestManifestDeclaresNewParts(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1, questionTag: true})
	assemble(t, pkg, twoOptionQuestions(2), nil, true)

	manifest, err := pkg.ReadXML(ContentTypesPart)
	require.NoError(t, err)
	overrides := map[string]string{}
	for _, el := range manifest.Root().ChildElements() {
		if el.Tag == "Override" {
			overrides[el.SelectAttrValue("PartName", "")] = el.SelectAttrValue("ContentType", "")
		}
	}
	for i := 1; i <= 4; i++ {
		assert.Equal(t, ContentTypeSlide, overrides["/"+SlidePart(i)])
	}
	for i := 1; i <= 9; i++ {
		assert.Equal(t, ContentTypeTags, overrides["/"+TagPart(i)])
	}
	assert.Equal(t, ContentTypeSlideLayout, overrides["/"+LayoutPart(3)])
	assert.NotContains(t, overrides, "/"+SlidePart(5))
}

func TestUpdateAppProperties(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1})
	res := assemble(t, pkg, twoOptionQuestions(1), nil, true)

	refs := []SlideRef{{Part: res.order.Intro[0], Kind: SlideKindTitle}}
	for _, part := range res.order.Existing {
		refs = append(refs, SlideRef{Part: part, Kind: SlideKindExisting})
	}
	refs = append(refs, SlideRef{Part: res.order.Questions[0], Kind: SlideKindQuestion})

	stats := ComputeStatistics(pkg, refs)
	assert.Equal(t, 3, stats.Slides)
	assert.Equal(t, []string{"CACES R489 & recyclage", "Existing slide 1", "Question"}, stats.Titles)
	assert.Equal(t, []string{"Calibri Light", "Calibri"}, stats.Fonts)
	assert.Equal(t, []string{"Thème Office"}, stats.Themes)
	assert.Positive(t, stats.Words)

	warnings, err := UpdateAppProperties(pkg, stats, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	doc, err := pkg.ReadXML(AppPropertiesPart)
	require.NoError(t, err)
	assert.Equal(t, "3", childElement(doc.Root(), "", "Slides").Text())
	labels := existingHeadingLabels(doc.Root())
	assert.Equal(t, []string{"Polices utilisées", "Theme", "Titres des diapositives"}, labels)
	titles := findAll(childElement(doc.Root(), "", "TitlesOfParts"), "vt", "lpstr")
	assert.Len(t, titles, 2+1+3)
}

func TestUpdateAppPropertiesSkipsMissingPart(t *testing.T) {
	pkg := openTemplate(t, templateOptions{slides: 1, withoutApp: true})
	warnings, err := UpdateAppProperties(pkg, Statistics{Slides: 1}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.False(t, pkg.Has(AppPropertiesPart))
}
