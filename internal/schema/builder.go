package schema

import "strings"

// TableVar is the blueprint variable every migration statement starts from.
const TableVar = "$table"

// implicitColumn lists blueprint methods that name their own columns.
var implicitColumn = map[string]bool{
	"rememberToken": true,
	"softDeletes":   true,
	"timestamps":    true,
}

// Invocation is one recorded builder call.
type Invocation struct {
	Method string `yaml:"method"`
	Args   []any  `yaml:"args,omitempty"`
}

// Short renders the call as "method(args)", or just "method" without arguments.
func (i Invocation) Short() string {
	if len(i.Args) == 0 {
		return i.Method
	}
	return i.Method + "(" + joinLiterals(i.Args) + ")"
}

// Chain renders the call as "->method(args)".
func (i Invocation) Chain() string {
	return "->" + i.Method + "(" + joinLiterals(i.Args) + ")"
}

func joinLiterals(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Literal(a)
	}
	return strings.Join(parts, ", ")
}

// Builder records builder calls as an ordered method -> arguments mapping.
// Re-adding a method replaces its arguments in place.
type Builder struct {
	calls []Invocation
}

// Add records a call. An index never overrides a foreign key, and a foreign
// key removes a previously recorded index.
func (b *Builder) Add(method string, args ...any) *Builder {
	if method == "index" && b.Has("foreign") {
		return b
	}
	b.Set(method, args...)
	if method == "foreign" {
		b.Remove("index")
	}
	return b
}

// Set replaces the arguments of a call or appends it.
func (b *Builder) Set(method string, args ...any) *Builder {
	for i := range b.calls {
		if b.calls[i].Method == method {
			b.calls[i].Args = args
			return b
		}
	}
	b.calls = append(b.calls, Invocation{Method: method, Args: args})
	return b
}

// Get returns the arguments of a call.
func (b *Builder) Get(method string) ([]any, bool) {
	for _, c := range b.calls {
		if c.Method == method {
			return c.Args, true
		}
	}
	return nil, false
}

// Arg returns the first argument of a call, or nil.
func (b *Builder) Arg(method string) any {
	args, ok := b.Get(method)
	if !ok || len(args) == 0 {
		return nil
	}
	return args[0]
}

// Has reports whether a call was recorded.
func (b *Builder) Has(method string) bool {
	_, ok := b.Get(method)
	return ok
}

// Remove drops a call.
func (b *Builder) Remove(method string) {
	for i := range b.calls {
		if b.calls[i].Method == method {
			b.calls = append(b.calls[:i], b.calls[i+1:]...)
			return
		}
	}
}

// Calls returns the recorded calls in order.
func (b *Builder) Calls() []Invocation {
	return b.calls
}

// Statement renders the calls as one chained statement.
func (b *Builder) Statement(start string) string {
	var sb strings.Builder
	if len(b.calls) > 0 {
		sb.WriteString(start)
		for _, c := range b.calls {
			sb.WriteString(c.Chain())
		}
	}
	sb.WriteString(";")
	return sb.String()
}

func (b *Builder) clone() Builder {
	out := Builder{calls: make([]Invocation, len(b.calls))}
	for i, c := range b.calls {
		out.calls[i] = Invocation{Method: c.Method, Args: append([]any(nil), c.Args...)}
	}
	return out
}

// MarshalYAML encodes the recorded calls as a list.
func (b Builder) MarshalYAML() (interface{}, error) {
	return b.calls, nil
}

// Call is a table level builder call: a multi-column constraint, a
// foreign key, or a relation descriptor mirrored from another table.
type Call struct {
	Builder `yaml:"calls"`
	FK      *ForeignKey `yaml:"foreign_key,omitempty"`
}

// ForeignKey carries the relationship data of a foreign key call.
// Table references are model ids resolved through the Model arena.
type ForeignKey struct {
	Column     string `yaml:"column"`
	RawTarget  string `yaml:"raw_target,omitempty"`
	RawColumn  string `yaml:"raw_column,omitempty"`
	Target     string `yaml:"target,omitempty"`
	Related    string `yaml:"related,omitempty"`
	PivotTable string `yaml:"pivot_table,omitempty"`
	Many       bool   `yaml:"many,omitempty"`
	Pivot      bool   `yaml:"pivot,omitempty"`
	Source     bool   `yaml:"source,omitempty"`
	Resolved   bool   `yaml:"resolved,omitempty"`
}

// MarshalYAML encodes the calls together with the foreign key data.
func (c Call) MarshalYAML() (interface{}, error) {
	return struct {
		Calls []Invocation `yaml:"calls"`
		FK    *ForeignKey  `yaml:"foreign_key,omitempty"`
	}{c.calls, c.FK}, nil
}

// NewCall creates a generic call with a single method.
func NewCall(method string, args ...any) *Call {
	c := &Call{}
	c.Add(method, args...)
	return c
}

// On returns the referenced table of a foreign key call.
func (c *Call) On() string {
	s, _ := c.Arg("on").(string)
	return s
}

// Clone deep-copies the call.
func (c *Call) Clone() *Call {
	out := &Call{Builder: c.Builder.clone()}
	if c.FK != nil {
		fk := *c.FK
		out.FK = &fk
	}
	return out
}

// String renders the call as a blueprint statement.
func (c *Call) String() string {
	return c.Statement(TableVar)
}
