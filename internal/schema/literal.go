package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numericPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Coerce turns numeric text into an int64 or float64. Anything else is
// returned unchanged.
func Coerce(s string) any {
	if !numericPattern.MatchString(s) {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Literal formats a value as a PHP literal.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		return "[" + joinLiterals(x) + "]"
	case []Cast:
		parts := make([]string, len(x))
		for i, c := range x {
			parts[i] = quote(c.Field) + " => " + quote(c.Type)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
