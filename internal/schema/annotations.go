package schema

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

const castingKey = "casting"

// Annotations are the INI style settings a table comment may carry.
type Annotations struct {
	Blacklist         []string
	Casts             []Cast
	Model             string
	Pivot             bool
	WithoutTimestamps bool
	Ignore            bool
}

var commentOptions = ini.LoadOptions{
	Loose:                   true,
	SkipUnrecognizableLines: true,
	KeyValueDelimiters:      "=",
}

// ParseAnnotations reads the recognized keys from a table comment. Free text,
// lines that are not key=value pairs or section headers, and unknown keys are
// ignored.
func ParseAnnotations(comment string) (Annotations, error) {
	var a Annotations
	source := annotationLines(comment)
	if source == "" {
		return a, nil
	}

	cfg, err := ini.LoadSources(commentOptions, []byte(source))
	if err != nil {
		return a, fmt.Errorf("parsing table comment: %w", err)
	}

	root := cfg.Section(ini.DefaultSection)
	if v := root.Key("blacklist").String(); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				a.Blacklist = append(a.Blacklist, f)
			}
		}
	}
	a.Model = strings.TrimSpace(root.Key("model").String())
	a.Pivot = root.Key("isPivot").MustBool(false)
	a.WithoutTimestamps = root.Key("withoutTimestamps").MustBool(false)
	a.Ignore = root.Key("ignore").MustBool(false)

	// casting[field]=type
	for _, k := range root.Keys() {
		name := k.Name()
		if strings.HasPrefix(name, castingKey+"[") && strings.HasSuffix(name, "]") {
			field := strings.TrimSuffix(strings.TrimPrefix(name, castingKey+"["), "]")
			if field != "" {
				a.Casts = append(a.Casts, Cast{Field: field, Type: k.String()})
			}
		}
	}
	if sec, err := cfg.GetSection(castingKey); err == nil {
		for _, k := range sec.Keys() {
			a.Casts = append(a.Casts, Cast{Field: k.Name(), Type: k.String()})
		}
	}

	return a, nil
}

// Apply copies the annotations onto a table.
func (a Annotations) Apply(t *Table) {
	if len(a.Blacklist) > 0 {
		t.Blacklist = a.Blacklist
	}
	if len(a.Casts) > 0 {
		t.Casts = a.Casts
	}
	if a.Model != "" {
		t.SetModelName(a.Model)
	}
	t.Pivot = a.Pivot
	t.WithoutTimestamps = a.WithoutTimestamps
}

// annotationLines keeps the comment lines that parse on their own as a
// key=value pair or a [section] header.
func annotationLines(comment string) string {
	var kept []string
	for _, line := range strings.Split(comment, "\n") {
		line = strings.TrimSpace(line)
		section := strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
		if !section && !strings.Contains(line, "=") {
			continue
		}
		if _, err := ini.LoadSources(commentOptions, []byte(line)); err != nil {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
