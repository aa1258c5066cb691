package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/mwbgen/mwbgen/internal/rules"
	"github.com/mwbgen/mwbgen/internal/schema"
)

// ErrIgnored is returned for tables annotated with ignore=1.
var ErrIgnored = errors.New("table is ignored")

const (
	columnsPath = `./value[@key="columns"]/value[@struct-name="db.mysql.Column"]`
	indicesPath = `./value[@key="indices"]/value[@struct-name="db.mysql.Index"]`
	fksPath     = `./value[@key="foreignKeys"]/value[@struct-name="db.mysql.ForeignKey"]`
)

// Load builds a table from an expanded table node. For ignored tables the
// returned table carries only id and name, together with ErrIgnored.
func Load(node *xmlquery.Node, logger *slog.Logger) (*schema.Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	id := node.SelectAttr("id")
	name := text(node, `./value[@key="name"]`)

	if id == "" || name == "" {
		return nil, &schema.StructureError{
			Table:  name,
			Reason: fmt.Sprintf("table name or id missing (node id %q)", id),
		}
	}

	ann, err := schema.ParseAnnotations(text(node, `./value[@key="comment"]`))
	if err != nil {
		logger.Warn("ignoring table comment annotations", "table", name, "error", err)
		ann = schema.Annotations{}
	}

	t := schema.NewTable(id, name)
	if ann.Ignore {
		return t, ErrIgnored
	}
	ann.Apply(t)

	for _, col := range xmlquery.Find(node, columnsPath) {
		colName := text(col, `./value[@key="name"]`)
		if colName == "" {
			return nil, &schema.StructureError{
				Table:  name,
				Reason: fmt.Sprintf("column %q has no name", col.SelectAttr("id")),
			}
		}

		f, ok := rules.Infer(col, colName)
		if !ok {
			logger.Warn("unknown column type, using string", "table", name, "column", colName, "type", rules.Describe(col))
		}
		if f.Type.Method == "enum" {
			logger.Warn("enum column, changing its values later needs a raw statement", "table", name, "column", colName)
		}
		if err := t.AddField(f); err != nil {
			return nil, err
		}
	}

	if err := ResolveIndices(t, node); err != nil {
		return nil, err
	}
	if err := ResolveForeignKeys(t, node, logger); err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveIndices attaches single-column indices to their fields and adds a
// generic call per modifier for multi-column indices. Every index is
// processed once, in the order of the first field it covers.
func ResolveIndices(t *schema.Table, node *xmlquery.Node) error {
	indices := xmlquery.Find(node, indicesPath)
	fkColumns := foreignKeyColumns(node)
	seen := make(map[*xmlquery.Node]bool)

	for _, f := range t.Fields {
		for _, idx := range indices {
			if seen[idx] {
				continue
			}
			cols := links(idx, `.//value[@struct-name="db.mysql.IndexColumn"]/link[@key="referencedColumn"]`)
			if !slices.Contains(cols, f.ID) {
				continue
			}
			seen[idx] = true

			methods := indexMethods(idx)
			if len(cols) <= 1 {
				for _, m := range methods {
					if m == "index" && fkColumns[f.ID] {
						continue
					}
					if m == "primary" && isIncrements(f) {
						continue
					}
					f.AddOption(m)
				}
				continue
			}

			names := make([]string, len(cols))
			for i, colID := range cols {
				cf, ok := t.FieldByID(colID)
				if !ok {
					return &schema.StructureError{
						Table:  t.Name,
						Reason: fmt.Sprintf("index %q references unknown column %q", text(idx, `./value[@key="name"]`), colID),
					}
				}
				names[i] = cf.Name
			}
			for _, m := range methods {
				t.AddCall(schema.NewCall(m, names))
			}
		}
	}
	return nil
}

// indexMethods maps an index node to its builder modifiers.
func indexMethods(idx *xmlquery.Node) []string {
	typ := strings.ToUpper(text(idx, `./value[@key="indexType"]`))
	unique := text(idx, `./value[@key="unique"]`) == "1"

	switch typ {
	case "PRIMARY":
		return []string{"primary"}
	case "UNIQUE":
		return []string{"unique"}
	case "INDEX":
		if unique {
			return []string{"unique"}
		}
		return []string{"index"}
	}
	// FULLTEXT and SPATIAL have no portable blueprint modifier.
	if unique {
		return []string{"unique"}
	}
	return nil
}

func isIncrements(f *schema.Field) bool {
	return f.Type.Method == "increments" || f.Type.Method == "bigIncrements"
}

// ResolveForeignKeys adds a foreign key call for every foreign key node in
// the order of the fields they start from. Targets stay raw model ids until
// the relation resolver rewrites them.
func ResolveForeignKeys(t *schema.Table, node *xmlquery.Node, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	fks := xmlquery.Find(node, fksPath)
	seen := make(map[*xmlquery.Node]bool)

	for _, f := range t.Fields {
		for _, fk := range fks {
			if seen[fk] {
				continue
			}
			cols := links(fk, `./value[@key="columns"]/link`)
			if len(cols) == 0 || cols[0] != f.ID {
				continue
			}
			seen[fk] = true

			target := text(fk, `./link[@key="referencedTable"]`)
			if target == "" {
				return &schema.StructureError{
					Table:  t.Name,
					Field:  f.Name,
					Reason: fmt.Sprintf("foreign key %q has no referenced table", text(fk, `./value[@key="name"]`)),
				}
			}
			if len(cols) > 1 {
				logger.Warn("composite foreign key, only the first column is used",
					"table", t.Name, "foreign_key", text(fk, `./value[@key="name"]`))
			}

			c := schema.NewCall("foreign", f.Name)
			c.Add("references", "id")
			c.Add("on", target)
			if rule := text(fk, `./value[@key="deleteRule"]`); rule != "" {
				c.Add("onDelete", strings.ToLower(rule))
			}
			if rule := text(fk, `./value[@key="updateRule"]`); rule != "" {
				c.Add("onUpdate", strings.ToLower(rule))
			}

			var refCol string
			if refs := links(fk, `./value[@key="referencedColumns"]/link`); len(refs) > 0 {
				refCol = refs[0]
			}
			c.FK = &schema.ForeignKey{
				Column:    f.Name,
				RawTarget: target,
				RawColumn: refCol,
				Many:      text(fk, `./value[@key="many"]`) == "1",
			}
			t.AddCall(c)
		}
	}
	return nil
}

// foreignKeyColumns returns the ids of all columns listed by a foreign key.
func foreignKeyColumns(node *xmlquery.Node) map[string]bool {
	cols := make(map[string]bool)
	for _, fk := range xmlquery.Find(node, fksPath) {
		for _, id := range links(fk, `./value[@key="columns"]/link`) {
			cols[id] = true
		}
	}
	return cols
}

func links(n *xmlquery.Node, path string) []string {
	var ids []string
	for _, l := range xmlquery.Find(n, path) {
		if id := strings.TrimSpace(l.InnerText()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func text(n *xmlquery.Node, path string) string {
	found := xmlquery.FindOne(n, path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}
