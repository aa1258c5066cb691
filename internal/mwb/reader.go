package mwb

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/zip"
)

const (
	// SupportedVersion is the only model format version that can be read.
	SupportedVersion = "1.4.4"

	// TableStruct identifies table definition nodes.
	TableStruct = "db.mysql.Table"
)

// ErrNoDocument is returned when the archive holds no model XML document.
var ErrNoDocument = errors.New("model archive contains no XML document")

// VersionError reports an unsupported model format version.
type VersionError struct {
	Found string
}

func (e *VersionError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("model has no format version (expected %s)", SupportedVersion)
	}
	return fmt.Sprintf("unsupported model version %s (expected %s)", e.Found, SupportedVersion)
}

// Reader streams the XML document of a model file element by element.
type Reader struct {
	dec     *xml.Decoder
	cur     *xml.StartElement
	version string
	err     error
	closers []io.Closer
}

// Open opens a model archive and positions a reader at the start of its
// XML document.
func Open(file string) (*Reader, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("opening model archive %s: %w", file, err)
	}

	doc := findDocument(zr.File)
	if doc == nil {
		zr.Close()
		return nil, fmt.Errorf("%s: %w", file, ErrNoDocument)
	}

	rc, err := doc.Open()
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("opening %s in %s: %w", doc.Name, file, err)
	}

	r := NewReader(rc)
	r.closers = []io.Closer{rc, zr}
	return r, nil
}

// findDocument prefers the *.mwb.xml entry and falls back to a single .xml entry.
func findDocument(files []*zip.File) *zip.File {
	var xmlFiles []*zip.File
	for _, f := range files {
		name := strings.ToLower(path.Base(f.Name))
		if strings.HasSuffix(name, ".mwb.xml") {
			return f
		}
		if strings.HasSuffix(name, ".xml") {
			xmlFiles = append(xmlFiles, f)
		}
	}
	if len(xmlFiles) == 1 {
		return xmlFiles[0]
	}
	return nil
}

// NewReader reads an already decompressed model document.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// Read advances to the next element. It returns false at the end of the
// document or on a decode error, see Err.
func (r *Reader) Read() bool {
	r.cur = nil
	if r.err != nil {
		return false
	}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			r.err = err
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			se = se.Copy()
			r.cur = &se
			return true
		}
	}
}

// Err returns the first decode error, ignoring the end of the document.
func (r *Reader) Err() error {
	if r.err == nil || errors.Is(r.err, io.EOF) {
		return nil
	}
	return fmt.Errorf("reading model document: %w", r.err)
}

// IsCompatibleVersion consumes elements until one carries a version
// attribute and reports whether it is the supported version.
func (r *Reader) IsCompatibleVersion() bool {
	for r.Read() {
		if v, ok := r.attr("version"); ok {
			r.version = v
			return v == SupportedVersion
		}
	}
	return false
}

// CheckVersion is IsCompatibleVersion returning a descriptive error.
func (r *Reader) CheckVersion() error {
	if r.IsCompatibleVersion() {
		return nil
	}
	if err := r.Err(); err != nil {
		return err
	}
	return &VersionError{Found: r.version}
}

// Version returns the format version seen by IsCompatibleVersion.
func (r *Reader) Version() string {
	return r.version
}

// IsTable reports whether the current element is a table definition.
func (r *Reader) IsTable() bool {
	if r.cur == nil || r.cur.Name.Local != "value" {
		return false
	}
	v, _ := r.attr("struct-name")
	return v == TableStruct
}

func (r *Reader) attr(name string) (string, bool) {
	if r.cur == nil {
		return "", false
	}
	for _, a := range r.cur.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Expand materializes the current element with its whole subtree as a
// navigable node. The reader continues after the element's end tag.
func (r *Reader) Expand() (*xmlquery.Node, error) {
	if r.cur == nil {
		return nil, errors.New("no current element to expand")
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(*r.cur); err != nil {
		return nil, fmt.Errorf("expanding element: %w", err)
	}

	for depth := 1; depth > 0; {
		tok, err := r.dec.Token()
		if err != nil {
			r.err = err
			return nil, fmt.Errorf("expanding element: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			err = enc.EncodeToken(t)
		case xml.EndElement:
			depth--
			err = enc.EncodeToken(t)
		case xml.CharData:
			err = enc.EncodeToken(t)
		}
		if err != nil {
			return nil, fmt.Errorf("expanding element: %w", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("expanding element: %w", err)
	}
	r.cur = nil

	doc, err := xmlquery.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parsing expanded element: %w", err)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, errors.New("expanded element is empty")
}

// Close releases the archive.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
