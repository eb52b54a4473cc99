package pptx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

var (
	ErrInvalidPackage      = errors.New("template is not a zip-based document package")
	ErrMainDocumentMissing = errors.New("presentation main document part is missing")
	ErrPartNotFound        = errors.New("package part not found")
)

// Package is an in-memory working copy of a zip-based presentation package.
// Edits never touch the template the package was opened from.
type Package struct {
	order []string
	parts map[string][]byte
}

// Open reads a package from its binary form.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	pkg := &Package{parts: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if f == nil || f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(strings.TrimSpace(f.Name), "/")
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", name, err)
		}
		pkg.Put(name, body)
	}
	return pkg, nil
}

// OpenReader buffers r and opens it as a package.
func OpenReader(r io.Reader) (*Package, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Open(data)
}

// OpenFile opens the package stored at path.
func OpenFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Open(data)
}

// Has reports whether the part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part returns the raw bytes of a part.
func (p *Package) Part(name string) ([]byte, bool) {
	data, ok := p.parts[name]
	return data, ok
}

// Put creates or replaces a part. New parts are appended to the write order.
func (p *Package) Put(name string, data []byte) {
	if p.parts == nil {
		p.parts = make(map[string][]byte)
	}
	if _, ok := p.parts[name]; !ok {
		p.order = append(p.order, name)
	}
	p.parts[name] = data
}

// Remove deletes a part if present.
func (p *Package) Remove(name string) {
	if _, ok := p.parts[name]; !ok {
		return
	}
	delete(p.parts, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Rename moves a part to a new name, keeping its write position. Renaming onto an
// existing part replaces it.
func (p *Package) Rename(oldName, newName string) error {
	data, ok := p.parts[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	p.Remove(newName)
	delete(p.parts, oldName)
	p.parts[newName] = data
	for i, n := range p.order {
		if n == oldName {
			p.order[i] = newName
			break
		}
	}
	return nil
}

// Names lists part names in write order.
func (p *Package) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Find lists part names with the given prefix and suffix, sorted by their numeric suffix
// when one exists ("slide2.xml" before "slide10.xml").
func (p *Package) Find(prefix, suffix string) []string {
	var out []string
	for _, name := range p.order {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			out = append(out, name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, okI := partNumber(out[i], prefix, suffix)
		nj, okJ := partNumber(out[j], prefix, suffix)
		if okI && okJ {
			return ni < nj
		}
		return out[i] < out[j]
	})
	return out
}

// ReadXML parses a part into an editable tree.
func (p *Package) ReadXML(name string) (*etree.Document, error) {
	data, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return doc, nil
}

// WriteXML serializes a tree back into a part.
func (p *Package) WriteXML(name string, doc *etree.Document) error {
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	p.Put(name, data)
	return nil
}

// Clone returns an independent copy.
func (p *Package) Clone() *Package {
	out := &Package{
		order: make([]string, len(p.order)),
		parts: make(map[string][]byte, len(p.parts)),
	}
	copy(out.order, p.order)
	for name, data := range p.parts {
		buf := make([]byte, len(data))
		copy(buf, data)
		out.parts[name] = buf
	}
	return out
}

// Bytes serializes the package with deflate compression. The content-type manifest is
// always written first.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(p.order))
	if p.Has(ContentTypesPart) {
		names = append(names, ContentTypesPart)
	}
	for _, name := range p.order {
		if name != ContentTypesPart {
			names = append(names, name)
		}
	}

	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}
