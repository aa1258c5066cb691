package schema

import (
	"fmt"
	"sort"
)

// Model is the arena of all tables loaded from one model file.
// Tables reference each other by id, never by pointer ownership.
type Model struct {
	Tables []*Table `yaml:"tables"`

	byID    map[string]*Table
	byName  map[string]*Table
	ignored map[string]string // id -> name
}

// Table represents one schema table and everything generated from it.
type Table struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Fields            []*Field `yaml:"fields"`
	Calls             []*Call  `yaml:"calls,omitempty"`
	RelationSources   []*Call  `yaml:"relation_sources,omitempty"`
	Pivot             bool     `yaml:"pivot,omitempty"`
	WithoutTimestamps bool     `yaml:"without_timestamps,omitempty"`
	Blacklist         []string `yaml:"blacklist,omitempty"`
	Casts             []Cast   `yaml:"casts,omitempty"`

	modelName string
	fieldIdx  map[string]int
}

// Field is one table column plus its inferred builder calls.
type Field struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Type    Invocation `yaml:"type"`
	Options Builder    `yaml:"options,omitempty"`
}

// Cast maps a model attribute to its cast type.
type Cast struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

// StructureError reports a table or column node that cannot be identified.
type StructureError struct {
	Table  string
	Field  string
	Reason string
}

func (e *StructureError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("table %q, field %q: %s", e.Table, e.Field, e.Reason)
	case e.Table != "":
		return fmt.Sprintf("table %q: %s", e.Table, e.Reason)
	default:
		return e.Reason
	}
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		byID:    make(map[string]*Table),
		byName:  make(map[string]*Table),
		ignored: make(map[string]string),
	}
}

// Add appends a table. Ids and names must be present and unique.
func (m *Model) Add(t *Table) error {
	if t.ID == "" || t.Name == "" {
		return &StructureError{Table: t.Name, Reason: "table name or id missing"}
	}
	if _, ok := m.byID[t.ID]; ok {
		return &StructureError{Table: t.Name, Reason: fmt.Sprintf("duplicate table id %s", t.ID)}
	}
	if _, ok := m.byName[t.Name]; ok {
		return &StructureError{Table: t.Name, Reason: "duplicate table name"}
	}
	m.Tables = append(m.Tables, t)
	m.byID[t.ID] = t
	m.byName[t.Name] = t
	return nil
}

// Ignore records a table that was skipped by its annotations.
func (m *Model) Ignore(id, name string) {
	m.ignored[id] = name
}

// Table looks up a table by its model id.
func (m *Model) Table(id string) (*Table, bool) {
	t, ok := m.byID[id]
	return t, ok
}

// ByName looks up a table by name.
func (m *Model) ByName(name string) (*Table, bool) {
	t, ok := m.byName[name]
	return t, ok
}

// IgnoredName returns the name of an ignored table id.
func (m *Model) IgnoredName(id string) (string, bool) {
	name, ok := m.ignored[id]
	return name, ok
}

// Ignored returns the names of all ignored tables, sorted.
func (m *Model) Ignored() []string {
	names := make([]string, 0, len(m.ignored))
	for _, n := range m.ignored {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Related returns the table a foreign key call points its accessor at.
func (m *Model) Related(c *Call) (*Table, bool) {
	if c.FK == nil || c.FK.Related == "" {
		return nil, false
	}
	return m.Table(c.FK.Related)
}

// NewTable creates an empty table.
func NewTable(id, name string) *Table {
	return &Table{ID: id, Name: name, fieldIdx: make(map[string]int)}
}

// AddField appends a field. Field names and ids are unique per table.
func (t *Table) AddField(f *Field) error {
	if t.fieldIdx == nil {
		t.fieldIdx = make(map[string]int)
	}
	if _, ok := t.fieldIdx[f.Name]; ok {
		return &StructureError{Table: t.Name, Field: f.Name, Reason: "duplicate column name"}
	}
	if f.ID != "" {
		if _, ok := t.FieldByID(f.ID); ok {
			return &StructureError{Table: t.Name, Field: f.Name, Reason: fmt.Sprintf("duplicate column id %s", f.ID)}
		}
	}
	t.fieldIdx[f.Name] = len(t.Fields)
	t.Fields = append(t.Fields, f)
	return nil
}

// Field returns the field with the given name.
func (t *Table) Field(name string) (*Field, bool) {
	i, ok := t.fieldIdx[name]
	if !ok {
		return nil, false
	}
	return t.Fields[i], true
}

// HasField reports whether a field with the given name exists.
func (t *Table) HasField(name string) bool {
	_, ok := t.fieldIdx[name]
	return ok
}

// FieldByID returns the field with the given model id.
func (t *Table) FieldByID(id string) (*Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// AddCall appends a generic call.
func (t *Table) AddCall(c *Call) {
	t.Calls = append(t.Calls, c)
}

// AddRelationSource registers a foreign key of another table that targets this one.
func (t *Table) AddRelationSource(c *Call) {
	if c.FK != nil {
		c.FK.Source = true
	}
	t.RelationSources = append(t.RelationSources, c)
}

// ForeignKeys returns the foreign key calls pointing at other tables, keyed
// by the target table name.
func (t *Table) ForeignKeys() map[string]*Call {
	fks := make(map[string]*Call)
	for _, c := range t.Calls {
		if c.FK == nil {
			continue
		}
		on := c.On()
		if on == "" || on == t.Name {
			continue
		}
		fks[on] = c
	}
	return fks
}

// ForeignKeyCalls returns all foreign key calls in declaration order.
func (t *Table) ForeignKeyCalls() []*Call {
	var calls []*Call
	for _, c := range t.Calls {
		if c.FK != nil {
			calls = append(calls, c)
		}
	}
	return calls
}

// ModelName returns the model class name for this table.
func (t *Table) ModelName() string {
	if t.modelName != "" {
		return t.modelName
	}
	return ModelName(t.Name)
}

// SetModelName overrides the derived model class name.
func (t *Table) SetModelName(name string) {
	t.modelName = name
}

// NeedsModel reports whether a model class is generated for this table.
func (t *Table) NeedsModel() bool {
	return !t.Pivot || len(t.Fields) > 2
}

// NewField creates a field with no calls.
func NewField(id, name string) *Field {
	return &Field{ID: id, Name: name}
}

// SetType replaces the type call.
func (f *Field) SetType(method string, args ...any) {
	f.Type = Invocation{Method: method, Args: args}
}

// AddOption appends an option call.
func (f *Field) AddOption(method string, args ...any) {
	f.Options.Add(method, args...)
}

// HasOption reports whether the option call exists.
func (f *Field) HasOption(method string) bool {
	return f.Options.Has(method)
}

// String renders the field in column schema notation, e.g.
// "title:string(45):nullable".
func (f *Field) String() string {
	s := f.Name + ":" + f.Type.Short()
	for _, o := range f.Options.Calls() {
		s += ":" + o.Short()
	}
	return s
}

// Statement renders the field as a blueprint statement.
func (f *Field) Statement() string {
	first := f.Type
	if !implicitColumn[first.Method] {
		first.Args = append([]any{f.Name}, first.Args...)
	}
	b := Builder{}
	b.calls = append(b.calls, first)
	b.calls = append(b.calls, f.Options.Calls()...)
	return b.Statement(TableVar)
}
