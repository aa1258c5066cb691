package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type modelDocument struct {
	Tables  []*Table `yaml:"tables"`
	Ignored []string `yaml:"ignored,omitempty"`
}

// ToYAML returns the model as a YAML byte slice.
func (m *Model) ToYAML() ([]byte, error) {
	return yaml.Marshal(modelDocument{Tables: m.Tables, Ignored: m.Ignored()})
}

// Summary returns a human-readable summary of the model.
func (m *Model) Summary() string {
	var fields, fks, pivots int
	for _, t := range m.Tables {
		fields += len(t.Fields)
		fks += len(t.ForeignKeyCalls())
		if t.Pivot {
			pivots++
		}
	}
	return fmt.Sprintf(
		"Found %d tables, %d fields, %d foreign keys, %d pivot tables (%d ignored)",
		len(m.Tables), fields, fks, pivots, len(m.ignored),
	)
}
