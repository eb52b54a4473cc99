package pptx

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	ContentTypesPart      = "[Content_Types].xml"
	PresentationPart      = "ppt/presentation.xml"
	PresentationRelsPart  = "ppt/_rels/presentation.xml.rels"
	AppPropertiesPart     = "docProps/app.xml"
	slidePrefix           = "ppt/slides/slide"
	layoutPrefix          = "ppt/slideLayouts/slideLayout"
	masterPrefix          = "ppt/slideMasters/slideMaster"
	tagPrefix             = "ppt/tags/tag"
	mediaPrefix           = "ppt/media/image"
	themePrefix           = "ppt/theme/theme"
	xmlSuffix             = ".xml"
	relsSuffix            = ".rels"
	defaultMasterPart     = "ppt/slideMasters/slideMaster1.xml"
	firstSlideListID      = 256
	firstLayoutListIDBase = 2147483648
)

func SlidePart(n int) string  { return fmt.Sprintf("%s%d%s", slidePrefix, n, xmlSuffix) }
func LayoutPart(n int) string { return fmt.Sprintf("%s%d%s", layoutPrefix, n, xmlSuffix) }
func TagPart(n int) string    { return fmt.Sprintf("%s%d%s", tagPrefix, n, xmlSuffix) }

// MediaPart names an image part; ext has no leading dot.
func MediaPart(n int, ext string) string {
	return fmt.Sprintf("%s%d.%s", mediaPrefix, n, strings.ToLower(ext))
}

// RelsPartFor returns the relationship part declaring the outgoing links of part.
func RelsPartFor(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + relsSuffix
}

// SourcePartFor is the inverse of RelsPartFor.
func SourcePartFor(relsPart string) string {
	dir, file := path.Split(relsPart)
	dir = strings.TrimSuffix(dir, "_rels/")
	return dir + strings.TrimSuffix(file, relsSuffix)
}

// ResolveTarget turns a relationship target into an absolute part name.
func ResolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Clean(path.Join(path.Dir(sourcePart), target)), "/")
}

// RelativeTarget expresses targetPart relative to the directory of sourcePart.
func RelativeTarget(sourcePart, targetPart string) string {
	from := strings.Split(path.Dir(sourcePart), "/")
	to := strings.Split(targetPart, "/")
	if path.Dir(sourcePart) == "." {
		from = nil
	}

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	var parts []string
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}

func partNumber(name, prefix, suffix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// mediaNumber parses "ppt/media/image12.png".
func mediaNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, mediaPrefix) {
		return 0, false
	}
	base := strings.TrimPrefix(name, mediaPrefix)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, false
	}
	return n, true
}
