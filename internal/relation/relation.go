package relation

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/mwbgen/mwbgen/internal/schema"
)

// ReferenceError reports a foreign key whose target table was not loaded.
// Ignored is the target's name when the table is annotated with ignore=1.
type ReferenceError struct {
	Table   string
	Column  string
	Target  string
	Ignored string
}

func (e *ReferenceError) Error() string {
	if e.Ignored != "" {
		return fmt.Sprintf("table %q: foreign key on %q references ignored table %q", e.Table, e.Column, e.Ignored)
	}
	return fmt.Sprintf("table %q: foreign key on %q references unknown table id %q", e.Table, e.Column, e.Target)
}

// Options control relationship resolution.
type Options struct {
	// Pivots are tables treated as pivot tables regardless of detection.
	Pivots []string
	// AllowIgnoredRefs drops foreign keys to ignored tables with a warning
	// instead of failing.
	AllowIgnoredRefs bool
}

// PivotError reports a pivot table whose many-to-many partner cannot be
// determined.
type PivotError struct {
	Table      string
	Linked     string
	Candidates []string
}

func (e *PivotError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("pivot table %q: no related table found for %q", e.Table, e.Linked)
	}
	return fmt.Sprintf("pivot table %q: ambiguous related table for %q (candidates: %s)",
		e.Table, e.Linked, strings.Join(e.Candidates, ", "))
}

// Resolve rewrites raw foreign key targets into table names, classifies pivot
// tables and mirrors every foreign key onto the table it points at.
func Resolve(m *schema.Model, opts Options, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, name := range opts.Pivots {
		t, ok := m.ByName(name)
		if !ok {
			logger.Warn("pivot table not found in model", "table", name)
			continue
		}
		t.Pivot = true
	}

	if err := resolveReferences(m, opts.AllowIgnoredRefs, logger); err != nil {
		return err
	}

	for _, t := range DetectPivots(m) {
		logger.Debug("detected pivot table", "table", t.Name)
		t.Pivot = true
	}

	for _, t := range m.Tables {
		if err := relate(m, t); err != nil {
			return err
		}
	}
	return nil
}

// resolveReferences points every unresolved foreign key at its target name
// and referenced column name. Keys to ignored tables fail unless allowIgnored
// is set, in which case they are dropped.
func resolveReferences(m *schema.Model, allowIgnored bool, logger *slog.Logger) error {
	for _, t := range m.Tables {
		var dropped []*schema.Call
		for _, c := range t.ForeignKeyCalls() {
			if c.FK.Resolved {
				continue
			}
			target, ok := m.Table(c.FK.RawTarget)
			if !ok {
				name, ignored := m.IgnoredName(c.FK.RawTarget)
				if ignored && !allowIgnored {
					return &ReferenceError{Table: t.Name, Column: c.FK.Column, Target: c.FK.RawTarget, Ignored: name}
				}
				if ignored {
					logger.Warn("dropping foreign key to ignored table", "table", t.Name, "column", c.FK.Column, "target", name)
					dropped = append(dropped, c)
					continue
				}
				return &ReferenceError{Table: t.Name, Column: c.FK.Column, Target: c.FK.RawTarget}
			}

			column := "id"
			if f, ok := target.FieldByID(c.FK.RawColumn); ok {
				column = f.Name
			}
			c.Set("references", column)
			c.Set("on", target.Name)
			c.FK.Target = target.ID
		}
		if len(dropped) > 0 {
			t.Calls = slices.DeleteFunc(t.Calls, func(c *schema.Call) bool {
				return slices.Contains(dropped, c)
			})
		}
	}
	return nil
}

// DetectPivots returns the tables that look like many-to-many join tables:
// exactly two foreign keys to two distinct other tables, not referenced by
// any other table, at most two columns besides the keys, and a name built
// from both related model names.
func DetectPivots(m *schema.Model) []*schema.Table {
	referenced := make(map[string]bool)
	for _, t := range m.Tables {
		for _, c := range t.ForeignKeyCalls() {
			if c.FK.Target != "" && c.FK.Target != t.ID {
				referenced[c.FK.Target] = true
			}
		}
	}

	var result []*schema.Table
	for _, t := range m.Tables {
		if t.Pivot || referenced[t.ID] {
			continue
		}

		keyCols := make(map[string]bool)
		var targets []*schema.Table
		external := 0
		for _, c := range t.ForeignKeyCalls() {
			if c.FK.Target == "" || c.FK.Target == t.ID {
				continue
			}
			external++
			keyCols[c.FK.Column] = true
			target, ok := m.Table(c.FK.Target)
			if ok && !slices.Contains(targets, target) {
				targets = append(targets, target)
			}
		}
		if external != 2 || len(targets) != 2 {
			continue
		}

		nonKey := 0
		for _, f := range t.Fields {
			if !keyCols[f.Name] {
				nonKey++
			}
		}
		if nonKey > 2 {
			continue
		}

		if !nameMatches(t, targets[0]) || !nameMatches(t, targets[1]) {
			continue
		}
		result = append(result, t)
	}
	return result
}

// nameMatches reports whether the model name of t is part of the pivot name.
func nameMatches(pivot, t *schema.Table) bool {
	return strings.Contains(pivotName(pivot.Name), t.ModelName())
}

// pivotName singularizes and capitalizes every word of a table name
// without the reserved word fallback of model names.
func pivotName(table string) string {
	words := strings.Split(table, "_")
	for i, w := range words {
		words[i] = schema.UpperFirst(inflection.Singular(w))
	}
	return strings.Join(words, "")
}

// relate mirrors the unresolved foreign keys of t onto their targets.
func relate(m *schema.Model, t *schema.Table) error {
	var pending []*schema.Call
	for _, c := range t.ForeignKeyCalls() {
		if !c.FK.Resolved {
			pending = append(pending, c)
		}
	}

	for _, c := range pending {
		target, ok := m.Table(c.FK.Target)
		if !ok {
			return &ReferenceError{Table: t.Name, Column: c.FK.Column, Target: c.FK.RawTarget}
		}
		c.FK.Related = target.ID
		c.FK.Resolved = true

		mirror := c.Clone()
		if t.Pivot {
			candidate, err := pivotCandidate(m, t, target)
			if err != nil {
				return err
			}
			mirror.FK.Many = true
			mirror.FK.Pivot = true
			mirror.FK.Related = candidate.ID
			mirror.FK.PivotTable = t.Name
			target.AddCall(mirror)
			continue
		}

		mirror.FK.Related = t.ID
		target.AddRelationSource(mirror)
	}
	return nil
}

// pivotCandidate finds the table a pivot links to besides linked: first by
// the pivot's name, then by the pivot's other foreign key.
func pivotCandidate(m *schema.Model, pivot, linked *schema.Table) (*schema.Table, error) {
	var byName []*schema.Table
	for _, t := range m.Tables {
		if t == pivot || t == linked || t.Pivot {
			continue
		}
		if nameMatches(pivot, t) {
			byName = append(byName, t)
		}
	}
	if len(byName) == 1 {
		return byName[0], nil
	}

	var others []*schema.Table
	for _, c := range pivot.ForeignKeyCalls() {
		if c.FK.Target == "" || c.FK.Target == linked.ID || c.FK.Target == pivot.ID || c.FK.Pivot {
			continue
		}
		if t, ok := m.Table(c.FK.Target); ok && !slices.Contains(others, t) {
			others = append(others, t)
		}
	}
	if len(others) == 1 {
		return others[0], nil
	}

	candidates := byName
	if len(candidates) == 0 {
		candidates = others
	}
	names := make([]string, len(candidates))
	for i, t := range candidates {
		names[i] = t.Name
	}
	return nil, &PivotError{Table: pivot.Name, Linked: linked.Name, Candidates: names}
}
