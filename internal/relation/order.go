package relation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mwbgen/mwbgen/internal/schema"
)

// CycleError indicates tables that can never be ordered because their
// foreign keys depend on each other.
type CycleError struct {
	Tables []string
	Cycles [][]string
}

func (e *CycleError) Error() string {
	msg := "foreign key cycle between tables " + strings.Join(e.Tables, ", ")
	if len(e.Cycles) > 0 {
		paths := make([]string, len(e.Cycles))
		for i, c := range e.Cycles {
			paths[i] = strings.Join(append(c, c[0]), " -> ")
		}
		msg += fmt.Sprintf(" (%s)", strings.Join(paths, "; "))
	}
	return msg
}

// Order returns the tables so that every table comes after all tables its
// foreign keys point at. References to the table itself are ignored.
// The model must be resolved first.
func Order(m *schema.Model) ([]*schema.Table, error) {
	placed := make(map[string]bool, len(m.Tables))
	ordered := make([]*schema.Table, 0, len(m.Tables))
	remaining := append([]*schema.Table(nil), m.Tables...)

	for len(remaining) > 0 {
		var next []*schema.Table
		for _, t := range remaining {
			if dependenciesPlaced(t, placed) {
				ordered = append(ordered, t)
				placed[t.Name] = true
			} else {
				next = append(next, t)
			}
		}

		if len(next) == len(remaining) {
			names := make([]string, len(next))
			for i, t := range next {
				names[i] = t.Name
			}
			return ordered, &CycleError{Tables: names, Cycles: DetectCycles(m)}
		}
		remaining = next
	}
	return ordered, nil
}

func dependenciesPlaced(t *schema.Table, placed map[string]bool) bool {
	for on := range t.ForeignKeys() {
		if !placed[on] {
			return false
		}
	}
	return true
}

// DetectCycles finds all cycles in the foreign key graph using DFS.
// Returns each cycle as a list of table names forming the cycle.
func DetectCycles(m *schema.Model) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	// child -> parents, in FK direction
	adj := make(map[string][]string)
	for _, t := range m.Tables {
		for on := range t.ForeignKeys() {
			adj[t.Name] = append(adj[t.Name], on)
		}
		sort.Strings(adj[t.Name])
	}

	var path []string
	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		inStack[node] = true
		path = append(path, node)

		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				dfs(neighbor)
			} else if inStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		inStack[node] = false
	}

	for _, t := range m.Tables {
		if !visited[t.Name] {
			dfs(t.Name)
		}
	}
	return cycles
}
