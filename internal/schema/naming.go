package schema

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// reservedWords cannot be used as PHP class names.
var reservedWords = map[string]bool{
	"__halt_compiler": true, "abstract": true, "and": true, "array": true,
	"as": true, "break": true, "callable": true, "case": true, "catch": true,
	"class": true, "clone": true, "const": true, "continue": true,
	"declare": true, "default": true, "die": true, "do": true, "echo": true,
	"else": true, "elseif": true, "empty": true, "enddeclare": true,
	"endfor": true, "endforeach": true, "endif": true, "endswitch": true,
	"endwhile": true, "eval": true, "exit": true, "extends": true,
	"final": true, "for": true, "foreach": true, "function": true,
	"global": true, "goto": true, "if": true, "implements": true,
	"include": true, "include_once": true, "instanceof": true,
	"insteadof": true, "interface": true, "isset": true, "list": true,
	"namespace": true, "new": true, "or": true, "print": true,
	"private": true, "protected": true, "public": true, "require": true,
	"require_once": true, "return": true, "static": true, "switch": true,
	"throw": true, "trait": true, "try": true, "unset": true, "use": true,
	"var": true, "while": true, "xor": true,
	"__class__": true, "__dir__": true, "__file__": true, "__function__": true,
	"__line__": true, "__method__": true, "__namespace__": true, "__trait__": true,
}

// IsReserved reports whether word is a PHP keyword or magic constant.
func IsReserved(word string) bool {
	return reservedWords[strings.ToLower(word)]
}

// ModelName derives a model class name from a table name: every
// underscore separated word is singularized and capitalized.
func ModelName(table string) string {
	words := strings.Split(table, "_")
	for i, w := range words {
		words[i] = UpperFirst(inflection.Singular(w))
	}
	name := strings.Join(words, "")
	if IsReserved(name) {
		name = table
	}
	return UpperFirst(name)
}

// UpperFirst upper-cases the first letter.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// LowerFirst lower-cases the first letter.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// CamelCase turns "author_books" into "authorBooks".
func CamelCase(s string) string {
	var sb strings.Builder
	upper := false
	for i, r := range s {
		if r == '_' && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return LowerFirst(sb.String())
}
