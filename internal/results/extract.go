// Package results reads the response log exported by the response-collection software.
package results

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/descriptor"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

var (
	// ErrMalformedLog reports a response log the XML parser rejects.
	ErrMalformedLog = errors.New("malformed response log")
	// ErrLogNotFound reports a container without any XML document.
	ErrLogNotFound = errors.New("response log not found in container")
)

// Log is the outcome of one extraction.
type Log struct {
	Source    string             `json:"source"`
	Responses []session.Response `json:"responses"`
	Warnings  []string           `json:"warnings,omitempty"`
}

var (
	deviceKeys   = []string{"DeviceID", "DeviceId", "Device", "Serial", "KeypadID"}
	questionKeys = []string{"QuestionGuid", "QuestionGUID", "SlideGuid", "SlideGUID", "QuestionID", "Guid", "GUID"}
	answerKeys   = []string{"Answer", "Key", "Value", "Choice"}
	timeKeys     = []string{"Time", "Timestamp", "ResponseTime", "Date"}
	timeLayouts  = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}
)

// Extractor turns response-log containers into response tuples.
type Extractor struct {
	logger zerolog.Logger
}

func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger.With().Str("component", "results_extractor").Logger()}
}

// Extract accepts either the zip container or the bare XML log.
func (x *Extractor) Extract(data []byte) (*Log, error) {
	name, doc, err := x.locate(data)
	if err != nil {
		return nil, err
	}

	log := &Log{Source: name}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %s has no root element", ErrMalformedLog, name)
	}

	skipped := 0
	walk(root, func(el *etree.Element) {
		if el.Tag != "Response" {
			return
		}
		resp, ok := readResponse(el)
		if !ok {
			skipped++
			return
		}
		if resp.Timestamp.IsZero() {
			x.logger.Warn().Str("device", resp.DeviceSerial).Str("slide_guid", resp.SlideGUID).Msg("response without readable timestamp")
		}
		log.Responses = append(log.Responses, resp)
	})

	if skipped > 0 {
		msg := fmt.Sprintf("%d response(s) without device or question identifier skipped", skipped)
		x.logger.Warn().Int("skipped", skipped).Msg("incomplete responses skipped")
		log.Warnings = append(log.Warnings, msg)
	}

	x.logger.Info().Str("source", name).Int("responses", len(log.Responses)).Msg("response log extracted")
	return log, nil
}

func (x *Extractor) locate(data []byte) (string, *etree.Document, error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		doc, err := parse("response log", data)
		return "response log", doc, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("open results container: %w", err)
	}

	var candidates []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return "", nil, ErrLogNotFound
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.EqualFold(path.Base(candidates[i].Name), descriptor.FileName) &&
			!strings.EqualFold(path.Base(candidates[j].Name), descriptor.FileName)
	})
	if len(candidates) > 1 {
		x.logger.Warn().Int("documents", len(candidates)).Str("chosen", candidates[0].Name).Msg("several XML documents in results container")
	}

	f := candidates[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	doc, err := parse(f.Name, body)
	return f.Name, doc, err
}

func parse(name string, body []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedLog, name, err)
	}
	if roots := len(doc.ChildElements()); roots != 1 {
		return nil, fmt.Errorf("%w: %s has %d root elements", ErrMalformedLog, name, roots)
	}
	return doc, nil
}

func readResponse(el *etree.Element) (session.Response, bool) {
	device := lookup(el, deviceKeys)
	guid := lookup(el, questionKeys)
	if guid == "" {
		for p := el.Parent(); p != nil; p = p.Parent() {
			if p.Tag == "Question" || p.Tag == "Slide" {
				guid = lookup(p, []string{"Guid", "GUID", "SlideGuid", "ID", "Id"})
				break
			}
		}
	}
	if device == "" || guid == "" {
		return session.Response{}, false
	}

	answer := lookup(el, answerKeys)
	if answer == "" && len(el.ChildElements()) == 0 {
		answer = strings.TrimSpace(el.Text())
	}

	return session.Response{
		DeviceSerial: session.NormalizeSerial(device),
		SlideGUID:    session.NormalizeSlideGUID(guid),
		Answer:       answer,
		Timestamp:    parseTime(lookup(el, timeKeys)),
	}, true
}

// lookup reads the first matching attribute, then the first matching child element.
func lookup(el *etree.Element, keys []string) string {
	for _, key := range keys {
		for _, attr := range el.Attr {
			if attr.Key == key && attr.Space != "xmlns" {
				if v := strings.TrimSpace(attr.Value); v != "" {
					return v
				}
			}
		}
	}
	for _, key := range keys {
		if child := el.SelectElement(key); child != nil {
			if v := strings.TrimSpace(child.Text()); v != "" {
				return v
			}
		}
	}
	return ""
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}
