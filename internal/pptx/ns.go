package pptx

// XML namespaces of the presentation package family.
const (
	nsP            = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA            = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR            = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels  = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentTypes = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsExtended     = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	nsVTypes       = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
)

// Relationship types.
const (
	RelTypeSlide       = nsR + "/slide"
	RelTypeSlideLayout = nsR + "/slideLayout"
	RelTypeSlideMaster = nsR + "/slideMaster"
	RelTypeTags        = nsR + "/tags"
	RelTypeImage       = nsR + "/image"
	RelTypeTheme       = nsR + "/theme"
)

// Content types.
const (
	ContentTypeSlide       = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ContentTypeSlideLayout = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ContentTypeTags        = "application/vnd.openxmlformats-officedocument.presentationml.tags+xml"
	ContentTypeRels        = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML         = "application/xml"
)
