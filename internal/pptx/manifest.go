package pptx

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// ManifestUpdate lists what the content-type manifest must declare after assembly.
type ManifestUpdate struct {
	// Slides is the complete final slide list. Slide overrides are rebuilt from it.
	Slides  []string
	Layouts []string
	// MaxTag is the highest metadata fragment number in use.
	MaxTag          int
	MediaExtensions []string
}

var mediaContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
}

// MediaContentType returns the media type registered for a file extension.
func MediaContentType(ext string) (string, bool) {
	ct, ok := mediaContentTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ct, ok
}

// UpdateManifest extends [Content_Types].xml. Defaults go before the first Override;
// Overrides are appended at the end.
func UpdateManifest(pkg *Package, update ManifestUpdate, logger zerolog.Logger) ([]string, error) {
	logger = logger.With().Str("component", "pptx_manifest").Logger()
	var warnings []string

	doc, err := pkg.ReadXML(ContentTypesPart)
	if err != nil {
		logger.Warn().Err(err).Msg("content-type manifest rebuilt from scratch")
		warnings = append(warnings, "content-type manifest missing or unreadable; rebuilt")
		doc = newManifestDocument()
	}
	root := doc.Root()
	if root == nil {
		doc = newManifestDocument()
		root = doc.Root()
	}

	overrides := make(map[string]*etree.Element)
	defaults := make(map[string]bool)
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "Override":
			if el.SelectAttrValue("ContentType", "") == ContentTypeSlide {
				root.RemoveChild(el)
				continue
			}
			overrides[el.SelectAttrValue("PartName", "")] = el
		case "Default":
			defaults[strings.ToLower(el.SelectAttrValue("Extension", ""))] = true
		}
	}

	addOverride := func(part, contentType string) {
		name := "/" + part
		if _, ok := overrides[name]; ok {
			return
		}
		el := root.CreateElement("Override")
		el.CreateAttr("PartName", name)
		el.CreateAttr("ContentType", contentType)
		overrides[name] = el
	}

	for _, slide := range update.Slides {
		addOverride(slide, ContentTypeSlide)
	}
	for _, layout := range update.Layouts {
		addOverride(layout, ContentTypeSlideLayout)
	}
	for n := 1; n <= update.MaxTag; n++ {
		if part := TagPart(n); pkg.Has(part) {
			addOverride(part, ContentTypeTags)
		}
	}

	for _, ext := range update.MediaExtensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext == "" || defaults[ext] {
			continue
		}
		contentType, ok := MediaContentType(ext)
		if !ok {
			logger.Warn().Str("extension", ext).Msg("unknown media extension declared as binary")
			warnings = append(warnings, "unknown media extension "+ext)
			contentType = "application/octet-stream"
		}
		el := etree.NewElement("Default")
		el.CreateAttr("Extension", ext)
		el.CreateAttr("ContentType", contentType)
		insertBeforeFirst(root, el, "Override")
		defaults[ext] = true
	}

	if err := pkg.WriteXML(ContentTypesPart, doc); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func newManifestDocument() *etree.Document {
	doc := newXMLDocument()
	root := doc.CreateElement("Types")
	root.CreateAttr("xmlns", nsContentTypes)
	for _, d := range [][2]string{{"rels", ContentTypeRels}, {"xml", ContentTypeXML}} {
		el := root.CreateElement("Default")
		el.CreateAttr("Extension", d[0])
		el.CreateAttr("ContentType", d[1])
	}
	el := root.CreateElement("Override")
	el.CreateAttr("PartName", "/"+PresentationPart)
	el.CreateAttr("ContentType", "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml")
	return doc
}

// insertBeforeFirst places child before the first direct child with the given local name,
// or appends it when there is none.
func insertBeforeFirst(parent, child *etree.Element, tag string) {
	for _, existing := range parent.ChildElements() {
		if existing.Tag == tag {
			parent.InsertChildAt(existing.Index(), child)
			return
		}
	}
	parent.AddChild(child)
}
