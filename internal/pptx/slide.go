package pptx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// Metadata names read by the response-collection software.
const (
	TagOfficeVersion     = "OR_OFFICE_MAJOR_VERSION"
	TagSlideType         = "OR_SLIDE_TYPE"
	TagPollStartMode     = "OR_POLL_START_MODE"
	TagCountdownMode     = "OR_POLL_COUNTDOWN_START_MODE"
	TagTimeLimit         = "OR_POLL_TIME_LIMIT"
	TagMultipleResponses = "OR_POLL_MULTIPLE_RESPONSES"
	TagBulletStyle       = "OR_ANSWERS_BULLET_STYLE"
	TagShapeType         = "OR_SHAPE_TYPE"
	TagAnswerPoints      = "OR_ANSWER_POINTS"
	TagAnswersText       = "OR_ANSWERS_TEXT"

	ShapeTypeTitle     = "OR_TITLE"
	ShapeTypeAnswers   = "OR_ANSWERS"
	ShapeTypeCountdown = "OR_COUNTDOWN"
	SlideTypeQuestion  = "OR_QUESTION_SLIDE"

	// AnswersTextSeparator joins option texts in the answers fragment. Line breaks do not
	// survive attribute-value normalisation, so the pipe is the only delimiter there; the
	// answers shape itself keeps one paragraph per option.
	AnswersTextSeparator = "|"

	officeMajorVersion = "16"
)

// TagsPerQuestion is the number of metadata fragments attached to each question slide.
const TagsPerQuestion = 4

// Relationship identifiers of a question slide. They are fixed because the slide's
// relationship part is written from scratch.
const (
	questionSlideTagRel   = "rId1"
	questionTitleTagRel   = "rId2"
	questionAnswersTagRel = "rId3"
	questionCountdownRel  = "rId4"
	questionLayoutRel     = "rId5"
	questionImageRel      = "rId6"
)

// QuestionSlideInput carries everything needed to render one question slide.
type QuestionSlideInput struct {
	Question session.Question
	// Number is the slide's absolute 1-based position in the final package.
	Number     int
	TagBase    int
	LayoutPart string
	Image      *PreparedImage
	// MediaNumber is the image part number, used only when Image is set.
	MediaNumber int
	Polling     session.PollingConfig
	GUID        string
	// Weights is the comma separated scoring vector, one entry per option.
	Weights string
	Size    SlideSize
}

// QuestionSlide reports the parts written for one question.
type QuestionSlide struct {
	SlidePart string
	GUID      string
	Tags      []string
	MediaPart string
	MediaExt  string
}

// NewSlideGUID returns a fresh 32 hex digit slide identifier.
func NewSlideGUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// WriteQuestionSlide writes the slide body, its relationship part and its four metadata fragments.
func WriteQuestionSlide(pkg *Package, in QuestionSlideInput) (*QuestionSlide, error) {
	if in.Number <= 0 || in.TagBase <= 0 {
		return nil, fmt.Errorf("write question slide: invalid numbering slide=%d tag=%d", in.Number, in.TagBase)
	}
	if in.GUID == "" {
		in.GUID = NewSlideGUID()
	}
	polling := in.Polling.WithDefaults()
	duration := polling.EffectiveDuration(in.Question)

	out := &QuestionSlide{SlidePart: SlidePart(in.Number), GUID: in.GUID}
	for i := 0; i < TagsPerQuestion; i++ {
		out.Tags = append(out.Tags, TagPart(in.TagBase+i))
	}

	fragments := []*etree.Document{
		tagDocument([][2]string{
			{TagSlideGUID, in.GUID},
			{TagOfficeVersion, officeMajorVersion},
			{TagSlideType, SlideTypeQuestion},
			{TagPollStartMode, polling.StartMode},
			{TagCountdownMode, polling.CountdownMode},
			{TagTimeLimit, strconv.Itoa(duration)},
			{TagMultipleResponses, boolTag(polling.MultipleResponses)},
			{TagBulletStyle, polling.BulletStyle},
		}),
		tagDocument([][2]string{{TagShapeType, ShapeTypeTitle}}),
		tagDocument([][2]string{
			{TagShapeType, ShapeTypeAnswers},
			{TagAnswerPoints, in.Weights},
			{TagAnswersText, answersText(in.Question.Options)},
		}),
		tagDocument([][2]string{{TagShapeType, ShapeTypeCountdown}}),
	}
	for i, doc := range fragments {
		if err := pkg.WriteXML(out.Tags[i], doc); err != nil {
			return nil, err
		}
	}

	rels := &Relationships{}
	rels.Append(Relationship{ID: questionSlideTagRel, Type: RelTypeTags, Target: RelativeTarget(out.SlidePart, out.Tags[0])})
	rels.Append(Relationship{ID: questionTitleTagRel, Type: RelTypeTags, Target: RelativeTarget(out.SlidePart, out.Tags[1])})
	rels.Append(Relationship{ID: questionAnswersTagRel, Type: RelTypeTags, Target: RelativeTarget(out.SlidePart, out.Tags[2])})
	rels.Append(Relationship{ID: questionCountdownRel, Type: RelTypeTags, Target: RelativeTarget(out.SlidePart, out.Tags[3])})
	rels.Append(Relationship{ID: questionLayoutRel, Type: RelTypeSlideLayout, Target: RelativeTarget(out.SlidePart, in.LayoutPart)})

	if in.Image != nil {
		out.MediaExt = in.Image.Ext
		out.MediaPart = MediaPart(in.MediaNumber, in.Image.Ext)
		pkg.Put(out.MediaPart, in.Image.Data)
		rels.Append(Relationship{ID: questionImageRel, Type: RelTypeImage, Target: RelativeTarget(out.SlidePart, out.MediaPart)})
	}

	if err := pkg.WriteXML(out.SlidePart, questionSlideDocument(in, polling, duration)); err != nil {
		return nil, err
	}
	if err := pkg.PutRelationships(out.SlidePart, rels); err != nil {
		return nil, err
	}
	return out, nil
}

func questionSlideDocument(in QuestionSlideInput, polling session.PollingConfig, duration int) *etree.Document {
	layout := questionGeometry(in.Size, in.Image != nil)

	doc := newXMLDocument()
	root := newPresentationRoot(doc, "sld")
	cSld := root.CreateElement("p:cSld")
	tree := cSld.CreateElement("p:spTree")
	addGroupProperties(tree)

	title := shape{ID: 2, Name: "Question", PhType: "title", TagRelID: questionTitleTagRel, Box: &layout.title}.addTo(tree)
	addParagraph(title, SanitizeText(in.Question.Text), paragraphStyle{})

	answers := shape{ID: 3, Name: "Answers", PhType: "body", PhIndex: "1", TagRelID: questionAnswersTagRel, Box: &layout.answers}.addTo(tree)
	bullets := paragraphStyle{AutoNumber: bulletScheme(polling.BulletStyle)}
	for _, option := range in.Question.Options {
		addParagraph(answers, SanitizeText(option), bullets)
	}

	nextID := 4
	if in.Image != nil {
		addPicture(tree, nextID, questionImageRel, FitImage(in.Image.Width, in.Image.Height, layout.image))
		nextID++
	}
	if duration > 0 {
		countdown := shape{ID: nextID, Name: "Countdown", TagRelID: questionCountdownRel, Box: &layout.countdown, Geometry: "ellipse"}.addTo(tree)
		countdown.SelectElement("bodyPr").CreateAttr("anchor", "ctr")
		addParagraph(countdown, strconv.Itoa(duration), paragraphStyle{Align: "ctr"})
	}

	addTagReference(cSld, questionSlideTagRel)
	root.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")
	return doc
}

func addPicture(tree *etree.Element, id int, rid string, box Rect) {
	pic := tree.CreateElement("p:pic")
	nv := pic.CreateElement("p:nvPicPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", strconv.Itoa(id))
	cNvPr.CreateAttr("name", "Picture "+strconv.Itoa(id-1))
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	fill := pic.CreateElement("p:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", rid)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("p:spPr")
	addTransform(spPr, box)
	addPresetGeometry(spPr, "rect")
}

type slideGeometry struct {
	title     Rect
	answers   Rect
	image     Rect
	countdown Rect
}

// questionGeometry splits the canvas into a title band, an answer area (left half when an
// image is shown) and a countdown badge in the lower right corner.
func questionGeometry(size SlideSize, withImage bool) slideGeometry {
	margin := size.CX / 20
	titleH := size.CY * 15 / 100
	badge := min(size.CX, size.CY) / 8

	var g slideGeometry
	g.title = Rect{X: margin, Y: margin / 2, CX: size.CX - 2*margin, CY: titleH}

	top := margin/2 + titleH + margin/2
	height := size.CY - top - badge - margin
	g.answers = Rect{X: margin, Y: top, CX: size.CX - 2*margin, CY: height}
	if withImage {
		half := (size.CX - 3*margin) / 2
		g.answers.CX = half
		g.image = Rect{X: 2*margin + half, Y: top, CX: half, CY: height}
	}
	g.countdown = Rect{X: size.CX - margin - badge, Y: size.CY - margin/2 - badge, CX: badge, CY: badge}
	return g
}

func tagDocument(pairs [][2]string) *etree.Document {
	doc := newXMLDocument()
	root := newPresentationRoot(doc, "tagLst")
	for _, pair := range pairs {
		tag := root.CreateElement("p:tag")
		tag.CreateAttr("name", pair[0])
		tag.CreateAttr("val", pair[1])
	}
	return doc
}

func answersText(options []string) string {
	cleaned := make([]string, len(options))
	for i, option := range options {
		cleaned[i] = strings.ReplaceAll(SanitizeText(option), AnswersTextSeparator, "/")
	}
	return strings.Join(cleaned, AnswersTextSeparator)
}

func boolTag(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
