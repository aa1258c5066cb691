package rules

import (
	"math"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/mwbgen/mwbgen/internal/schema"
)

const (
	simpleTypePrefix = "com.mysql.rdbms.mysql.datatype."
	userTypePrefix   = "com.mysql.rdbms.mysql.userdatatype."
)

// Extractor reads one builder argument from a column node. ok is false when
// the argument is absent and must be omitted.
type Extractor func(col *xmlquery.Node) (v any, ok bool)

// Rule maps a column pattern to a builder call.
type Rule struct {
	Method string
	Match  *xpath.Expr
	Name   string // required column name, empty for any
	Args   []Extractor
}

// Matches reports whether the rule applies to the column.
func (r Rule) Matches(col *xmlquery.Node, name string) bool {
	if r.Name != "" && r.Name != name {
		return false
	}
	return truthy(r.Match.Evaluate(xmlquery.CreateXPathNavigator(col)))
}

// Apply extracts the rule's arguments from the column.
func (r Rule) Apply(col *xmlquery.Node) []any {
	var args []any
	for _, x := range r.Args {
		if v, ok := x(col); ok {
			args = append(args, v)
		}
	}
	return args
}

var integerArgs = []Extractor{flag(`./value[@key="autoIncrement" and text()="1"]`), unsigned}

// TypeRules decide the type call of a column. The first match wins.
var TypeRules = []Rule{
	{Method: "increments", Match: all(simpleType("int"), autoIncrement), Name: "id"},
	{Method: "bigIncrements", Match: all(simpleType("bigint"), autoIncrement), Name: "id"},
	{Method: "rememberToken", Match: all(simpleType("varchar")), Name: "remember_token"},
	{Method: "boolean", Match: all(userType("boolean"))},
	{Method: "bigInteger", Match: all(simpleType("bigint")), Args: integerArgs},
	{Method: "integer", Match: all(simpleType("int")), Args: integerArgs},
	{Method: "mediumInteger", Match: all(simpleType("mediumint")), Args: integerArgs},
	{Method: "smallInteger", Match: all(simpleType("smallint")), Args: integerArgs},
	{Method: "tinyInteger", Match: all(simpleType("tinyint")), Args: integerArgs},
	{Method: "string", Match: all(simpleType("varchar")), Args: []Extractor{number("length")}},
	{Method: "char", Match: all(simpleType("char")), Args: []Extractor{number("length")}},
	{Method: "text", Match: all(simpleType("text"))},
	{Method: "text", Match: all(simpleType("tinytext"))},
	{Method: "mediumText", Match: all(simpleType("mediumtext"))},
	{Method: "longText", Match: all(simpleType("longtext"))},
	{Method: "dateTime", Match: all(simpleType("datetime"))},
	{Method: "timestamp", Match: all(simpleType("timestamp"))},
	{Method: "date", Match: all(simpleType("date"))},
	{Method: "time", Match: all(simpleType("time"))},
	{Method: "year", Match: all(simpleType("year"))},
	{Method: "decimal", Match: all(simpleType("decimal")), Args: []Extractor{number("precision"), number("scale")}},
	{Method: "float", Match: all(simpleType("float"))},
	{Method: "double", Match: all(simpleType("double"))},
	{Method: "enum", Match: all(simpleType("enum")), Args: []Extractor{enumValues}},
	{Method: "json", Match: all(simpleType("json"))},
	{Method: "binary", Match: all(simpleType("blob"))},
	{Method: "binary", Match: all(simpleType("mediumblob"))},
	{Method: "binary", Match: all(simpleType("longblob"))},
}

// OptionRules add modifier calls. Every matching rule applies, in order.
var OptionRules = []Rule{
	{Method: "nullable", Match: xpath.MustCompile(`boolean(./value[@key="isNotNull" and text()="0"])`)},
	{Method: "unsigned", Match: xpath.MustCompile(
		`boolean(./link[@key="simpleType" and (text()="` + simpleTypePrefix + `decimal" or text()="` + simpleTypePrefix + `float" or text()="` + simpleTypePrefix + `double")]) and boolean(./value[@key="flags"]/value[text()="UNSIGNED"])`)},
	{Method: "useCurrent", Match: xpath.MustCompile(`boolean(./value[@key="defaultValue" and starts-with(` + upper + `, "CURRENT_TIMESTAMP")])`)},
	{Method: "useCurrentOnUpdate", Match: xpath.MustCompile(`boolean(./value[@key="defaultValue" and starts-with(` + upper + `, "CURRENT_TIMESTAMP") and contains(` + upper + `, "ON UPDATE")])`)},
	{Method: "default", Match: xpath.MustCompile(defaultMatch), Args: []Extractor{defaultValue}},
}

// upper is the upper-cased default value text without parentheses.
const upper = `translate(text(), "abcdefghijklmnopqrstuvwxyz()", "ABCDEFGHIJKLMNOPQRSTUVWXYZ")`

const defaultMatch = `boolean(./value[@key="defaultValue" and text() != "" and ` +
	upper + ` != "NULL" and not(starts-with(` + upper + `, "CURRENT_TIMESTAMP"))])`

const autoIncrement = `./value[@key="autoIncrement" and text()="1"]`

func simpleType(name string) string {
	return `./link[@key="simpleType" and text()="` + simpleTypePrefix + name + `"]`
}

func userType(name string) string {
	return `./link[@key="userType" and text()="` + userTypePrefix + name + `"]`
}

// all compiles the conjunction of node-set predicates.
func all(paths ...string) *xpath.Expr {
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = "boolean(" + p + ")"
	}
	return xpath.MustCompile(strings.Join(parts, " and "))
}

// Infer builds a field from a column node. ok is false when no type rule
// matched and the column fell back to an argument-less string.
func Infer(col *xmlquery.Node, name string) (f *schema.Field, ok bool) {
	f = schema.NewField(col.SelectAttr("id"), name)

	f.SetType("string")
	for _, r := range TypeRules {
		if r.Matches(col, name) {
			f.SetType(r.Method, r.Apply(col)...)
			ok = true
			break
		}
	}

	for _, r := range OptionRules {
		if r.Matches(col, name) {
			f.AddOption(r.Method, r.Apply(col)...)
		}
	}
	return f, ok
}

// Describe returns the raw type of a column for advisories.
func Describe(col *xmlquery.Node) string {
	for _, key := range []string{"simpleType", "userType"} {
		if n := xmlquery.FindOne(col, `./link[@key="`+key+`"]`); n != nil {
			t := n.InnerText()
			t = strings.TrimPrefix(t, simpleTypePrefix)
			return strings.TrimPrefix(t, userTypePrefix)
		}
	}
	return "unknown"
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case *xpath.NodeIterator:
		return x.MoveNext()
	}
	return false
}

// number extracts a non-negative integer value.
func number(key string) Extractor {
	expr := xpath.MustCompile(`number(./value[@key="` + key + `"])`)
	return func(col *xmlquery.Node) (any, bool) {
		f, ok := expr.Evaluate(xmlquery.CreateXPathNavigator(col)).(float64)
		if !ok || math.IsNaN(f) || f < 0 {
			return nil, false
		}
		return int64(f), true
	}
}

// flag extracts whether a node set is non-empty. It is always present.
func flag(path string) Extractor {
	expr := xpath.MustCompile("boolean(" + path + ")")
	return func(col *xmlquery.Node) (any, bool) {
		return truthy(expr.Evaluate(xmlquery.CreateXPathNavigator(col))), true
	}
}

var unsigned = flag(`./value[@key="flags"]/value[text()="UNSIGNED"]`)

func defaultValue(col *xmlquery.Node) (any, bool) {
	n := xmlquery.FindOne(col, `./value[@key="defaultValue"]`)
	if n == nil {
		return nil, false
	}
	v := strings.TrimSpace(n.InnerText())
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1], true
	}
	return schema.Coerce(v), true
}

var enumValue = regexp.MustCompile(`'((?:[^'\\]|\\.|'')*)'`)

// enumValues parses explicit params like "('a','b')".
func enumValues(col *xmlquery.Node) (any, bool) {
	n := xmlquery.FindOne(col, `./value[@key="datatypeExplicitParams"]`)
	if n == nil {
		return nil, false
	}
	var values []string
	for _, m := range enumValue.FindAllStringSubmatch(n.InnerText(), -1) {
		v := strings.ReplaceAll(m[1], "''", "'")
		values = append(values, strings.ReplaceAll(v, `\'`, "'"))
	}
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}
