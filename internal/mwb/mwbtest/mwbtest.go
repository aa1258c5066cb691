// Package mwbtest builds synthetic model documents and archives for tests.
package mwbtest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/zip"
)

const typePrefix = "com.mysql.rdbms.mysql.datatype."

// Doc is a model document.
type Doc struct {
	Version string
	Tables  []*Table
}

// Table is a table definition node.
type Table struct {
	ID      string
	Name    string
	Comment string
	Columns []*Column
	Indices []*Index
	FKs     []*FK
}

// Column is a column definition node.
type Column struct {
	ID             string
	Name           string
	Type           string // simple type suffix, e.g. "varchar"
	UserType       string // user type suffix, e.g. "boolean"
	Length         int
	Precision      int
	Scale          int
	AutoIncrement  bool
	Nullable       bool
	Unsigned       bool
	Default        string
	ExplicitParams string
}

// Index is an index definition node. Columns holds column ids.
type Index struct {
	ID      string
	Name    string
	Type    string // PRIMARY, UNIQUE, INDEX
	Unique  bool
	Columns []string
}

// FK is a foreign key definition node. Table is the referenced table id,
// Columns and RefColumns hold column ids.
type FK struct {
	ID         string
	Name       string
	Table      string
	Columns    []string
	RefColumns []string
	DeleteRule string
	UpdateRule string
	Many       bool
}

// New returns a document with the supported version.
func New(tables ...*Table) *Doc {
	return &Doc{Version: "1.4.4", Tables: tables}
}

// NewTable returns a table whose column ids are prefixed by the table id.
func NewTable(id, name string) *Table {
	return &Table{ID: id, Name: name}
}

// Col appends a column and returns it for further tweaks.
func (t *Table) Col(name, typ string) *Column {
	c := &Column{
		ID:        t.ID + "." + name,
		Name:      name,
		Type:      typ,
		Length:    -1,
		Precision: -1,
		Scale:     -1,
	}
	t.Columns = append(t.Columns, c)
	return c
}

// IDCol appends an auto-increment int primary key named id.
func (t *Table) IDCol() *Column {
	c := t.Col("id", "int")
	c.AutoIncrement = true
	c.Unsigned = true
	t.Index("PRIMARY", "PRIMARY", false, "id")
	return c
}

// Timestamps appends nullable created_at and updated_at columns.
func (t *Table) Timestamps() *Table {
	t.Col("created_at", "timestamp").Nullable = true
	t.Col("updated_at", "timestamp").Nullable = true
	return t
}

// Index appends an index over the named columns.
func (t *Table) Index(name, typ string, unique bool, columns ...string) *Index {
	idx := &Index{ID: t.ID + ".idx." + name, Name: name, Type: typ, Unique: unique}
	for _, c := range columns {
		idx.Columns = append(idx.Columns, t.ID+"."+c)
	}
	t.Indices = append(t.Indices, idx)
	return idx
}

// Ref appends a foreign key from the named column to the id column of target.
func (t *Table) Ref(column string, target *Table) *FK {
	fk := &FK{
		ID:         t.ID + ".fk." + column,
		Name:       "fk_" + t.Name + "_" + column,
		Table:      target.ID,
		Columns:    []string{t.ID + "." + column},
		RefColumns: []string{target.ID + ".id"},
		DeleteRule: "CASCADE",
		UpdateRule: "NO ACTION",
		Many:       true,
	}
	t.FKs = append(t.FKs, fk)
	return fk
}

// Library returns publishers with many books, and authors linked to books
// through the author_book pivot. Referencing tables are listed first.
func Library() *Doc {
	publishers := NewTable("t.publishers", "publishers")
	publishers.IDCol()
	publishers.Col("name", "varchar").Length = 80
	publishers.Timestamps()

	authors := NewTable("t.authors", "authors")
	authors.IDCol()
	authors.Col("name", "varchar").Length = 45
	authors.Timestamps()

	books := NewTable("t.books", "books")
	books.IDCol()
	books.Col("title", "varchar").Length = 100
	books.Col("publisher_id", "int").Unsigned = true
	books.Timestamps()
	books.Col("deleted_at", "timestamp").Nullable = true
	books.Index("title_UNIQUE", "UNIQUE", true, "title")
	books.Ref("publisher_id", publishers)

	pivot := NewTable("t.author_book", "author_book")
	pivot.Col("author_id", "int").Unsigned = true
	pivot.Col("book_id", "int").Unsigned = true
	pivot.Index("author_book_UNIQUE", "UNIQUE", true, "author_id", "book_id")
	pivot.Ref("author_id", authors)
	pivot.Ref("book_id", books)

	return New(pivot, books, authors, publishers)
}

// XML renders the document.
func (d *Doc) XML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	fmt.Fprintf(&b, `<data grt_format="2.0" document_type="MySQL Workbench Model" version=%q>`+"\n", d.Version)
	b.WriteString(`<value type="object" struct-name="workbench.Document" id="doc">` + "\n")
	b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.Schema" key="schemata">` + "\n")
	b.WriteString(`<value type="object" struct-name="db.mysql.Schema" id="schema">` + "\n")
	b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.Table" key="tables">` + "\n")
	for _, t := range d.Tables {
		b.WriteString(t.XML())
	}
	b.WriteString("</value>\n</value>\n</value>\n</value>\n</data>\n")
	return b.String()
}

// XML renders the table node.
func (t *Table) XML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<value type="object" struct-name="db.mysql.Table" id=%q>`+"\n", t.ID)

	b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.Column" key="columns">` + "\n")
	for _, c := range t.Columns {
		b.WriteString(c.XML())
	}
	b.WriteString("</value>\n")

	if t.Comment != "" {
		stringValue(&b, "comment", t.Comment)
	}

	b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.ForeignKey" key="foreignKeys">` + "\n")
	for _, fk := range t.FKs {
		fmt.Fprintf(&b, `<value type="object" struct-name="db.mysql.ForeignKey" id=%q>`+"\n", fk.ID)
		fmt.Fprintf(&b, `<link type="object" struct-name="db.mysql.Table" key="referencedTable">%s</link>`+"\n", escape(fk.Table))
		b.WriteString(`<value type="list" content-type="object" content-struct-name="db.Column" key="columns">` + "\n")
		for _, c := range fk.Columns {
			fmt.Fprintf(&b, `<link type="object">%s</link>`+"\n", escape(c))
		}
		b.WriteString("</value>\n")
		b.WriteString(`<value type="list" content-type="object" content-struct-name="db.Column" key="referencedColumns">` + "\n")
		for _, c := range fk.RefColumns {
			fmt.Fprintf(&b, `<link type="object">%s</link>`+"\n", escape(c))
		}
		b.WriteString("</value>\n")
		stringValue(&b, "deleteRule", fk.DeleteRule)
		stringValue(&b, "updateRule", fk.UpdateRule)
		intValue(&b, "many", boolInt(fk.Many))
		stringValue(&b, "name", fk.Name)
		b.WriteString("</value>\n")
	}
	b.WriteString("</value>\n")

	b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.Index" key="indices">` + "\n")
	for _, idx := range t.Indices {
		fmt.Fprintf(&b, `<value type="object" struct-name="db.mysql.Index" id=%q>`+"\n", idx.ID)
		b.WriteString(`<value type="list" content-type="object" content-struct-name="db.mysql.IndexColumn" key="columns">` + "\n")
		for i, c := range idx.Columns {
			fmt.Fprintf(&b, `<value type="object" struct-name="db.mysql.IndexColumn" id="%s.%d">`+"\n", idx.ID, i)
			fmt.Fprintf(&b, `<link type="object" struct-name="db.Column" key="referencedColumn">%s</link>`+"\n", escape(c))
			b.WriteString("</value>\n")
		}
		b.WriteString("</value>\n")
		stringValue(&b, "indexType", idx.Type)
		intValue(&b, "unique", boolInt(idx.Unique))
		stringValue(&b, "name", idx.Name)
		b.WriteString("</value>\n")
	}
	b.WriteString("</value>\n")

	stringValue(&b, "name", t.Name)
	b.WriteString("</value>\n")
	return b.String()
}

// XML renders the column node.
func (c *Column) XML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<value type="object" struct-name="db.mysql.Column" id=%q>`+"\n", c.ID)
	intValue(&b, "autoIncrement", boolInt(c.AutoIncrement))
	stringValue(&b, "datatypeExplicitParams", c.ExplicitParams)
	stringValue(&b, "defaultValue", c.Default)
	b.WriteString(`<value type="list" content-type="string" key="flags">`)
	if c.Unsigned {
		b.WriteString(`<value type="string">UNSIGNED</value>`)
	}
	b.WriteString("</value>\n")
	intValue(&b, "isNotNull", boolInt(!c.Nullable))
	intValue(&b, "length", c.Length)
	intValue(&b, "precision", c.Precision)
	intValue(&b, "scale", c.Scale)
	if c.Type != "" {
		fmt.Fprintf(&b, `<link type="object" struct-name="db.SimpleDatatype" key="simpleType">%s</link>`+"\n", typePrefix+c.Type)
	}
	if c.UserType != "" {
		fmt.Fprintf(&b, `<link type="object" struct-name="db.UserDatatype" key="userType">com.mysql.rdbms.mysql.userdatatype.%s</link>`+"\n", c.UserType)
	}
	stringValue(&b, "name", c.Name)
	b.WriteString("</value>\n")
	return b.String()
}

// Node parses the XML of a table or column into a navigable node.
func Node(s string) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		return nil, err
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no element in %q", s)
}

// Archive returns the document zipped the way model files are stored.
func (d *Doc) Archive() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("document.mwb.xml")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(d.XML())); err != nil {
		return nil, err
	}
	lock, err := zw.Create("lock")
	if err != nil {
		return nil, err
	}
	if _, err := lock.Write([]byte("1")); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the zipped document to path.
func (d *Doc) WriteFile(path string) error {
	data, err := d.Archive()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func stringValue(b *strings.Builder, key, v string) {
	fmt.Fprintf(b, `<value type="string" key=%q>%s</value>`+"\n", key, escape(v))
}

func intValue(b *strings.Builder, key string, v int) {
	fmt.Fprintf(b, `<value type="int" key=%q>%d</value>`+"\n", key, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
