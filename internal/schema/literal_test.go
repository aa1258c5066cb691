package schema

import "testing"

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"45", int64(45)},
		{"-1", int64(-1)},
		{"3.50", 3.5},
		{"abc", "abc"},
		{"1e5", "1e5"},
		{"", ""},
		{"NaN", "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Coerce(tt.in); got != tt.want {
				t.Errorf("Coerce(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "abc", "'abc'"},
		{"quote", "it's", `'it\'s'`},
		{"backslash", `a\b`, `'a\\b'`},
		{"true", true, "true"},
		{"false", false, "false"},
		{"nil", nil, "null"},
		{"int64", int64(255), "255"},
		{"float", 2.5, "2.5"},
		{"whole float", 2.0, "2.0"},
		{"string list", []string{"a", "b"}, "['a', 'b']"},
		{"any list", []any{"a", int64(1)}, "['a', 1]"},
		{"casts", []Cast{{Field: "active", Type: "boolean"}}, "['active' => 'boolean']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Literal(tt.in); got != tt.want {
				t.Errorf("Literal(%#v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
