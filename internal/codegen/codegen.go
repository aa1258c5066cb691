package codegen

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/mwbgen/mwbgen/internal/schema"
)

const (
	// MigrationPlaceholder is the body of a blank create-table migration.
	MigrationPlaceholder = statementIndent + "$table->increments('id');\n" + statementIndent + "$table->timestamps();"

	// ModelPlaceholder is the body of a blank model class.
	ModelPlaceholder = "    //"

	statementIndent = "            "
	relationsNS     = `\Illuminate\Database\Eloquent\Relations\`
	softDeletes     = `\Illuminate\Database\Eloquent\SoftDeletes`
)

// Renderer produces migration and model fragments for resolved tables.
type Renderer struct {
	// Namespace of the generated model classes, e.g. "App".
	Namespace string
}

// Migration renders the statements replacing MigrationPlaceholder.
func (r *Renderer) Migration(m *schema.Model, t *schema.Table) string {
	var lines []string
	skip := make(map[string]bool)

	if id, ok := t.Field("id"); ok && id.Type.Method == "increments" {
		lines = append(lines, id.Statement())
		skip["id"] = true
	}

	timestamps := t.HasField("created_at") && t.HasField("updated_at") && !t.WithoutTimestamps
	if timestamps {
		skip["created_at"] = true
		skip["updated_at"] = true
	}
	if t.HasField("deleted_at") {
		skip["deleted_at"] = true
	}

	for _, f := range t.Fields {
		if !skip[f.Name] {
			lines = append(lines, f.Statement())
		}
	}

	if timestamps {
		lines = append(lines, schema.TableVar+"->timestamps();")
	}
	if t.HasField("deleted_at") {
		lines = append(lines, schema.TableVar+"->softDeletes();")
	}

	for _, c := range t.Calls {
		if c.FK != nil && c.On() == t.Name {
			continue
		}
		lines = append(lines, c.String())
	}

	return statementIndent + strings.Join(lines, "\n"+statementIndent)
}

type modelData struct {
	Table     string
	Traits    []string
	Fillable  string
	Dates     string
	Casts     string
	Relations []relationData
}

type relationData struct {
	Table  string
	Kind   string
	Method string
	Body   string
}

// Model renders the class body replacing ModelPlaceholder.
func (r *Renderer) Model(m *schema.Model, t *schema.Table) (string, error) {
	tmpl, err := template.New("model").Parse(modelTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	data, err := r.buildModelData(m, t)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

var dateFields = []string{"deleted_at", "created_at", "updated_at"}

func (r *Renderer) buildModelData(m *schema.Model, t *schema.Table) (modelData, error) {
	data := modelData{Table: schema.Literal(t.Name)}

	var dates []string
	for _, name := range dateFields {
		if t.HasField(name) {
			dates = append(dates, name)
		}
	}
	if t.HasField("deleted_at") {
		data.Traits = append(data.Traits, softDeletes)
	}
	if len(dates) > 0 {
		data.Dates = schema.Literal(dates)
	}

	excluded := map[string]bool{"id": true}
	for _, name := range dateFields {
		excluded[name] = true
	}
	for _, name := range t.Blacklist {
		excluded[name] = true
	}
	fillable := []string{}
	for _, f := range t.Fields {
		if !excluded[f.Name] {
			fillable = append(fillable, f.Name)
		}
	}
	data.Fillable = schema.Literal(fillable)

	if len(t.Casts) > 0 {
		data.Casts = schema.Literal(t.Casts)
	}

	rels, err := r.relations(m, t)
	if err != nil {
		return modelData{}, err
	}
	data.Relations = rels
	return data, nil
}

// relations builds one accessor per foreign key and relation source.
// Identical accessors are emitted once; different accessors sharing a name
// are disambiguated by the key column.
func (r *Renderer) relations(m *schema.Model, t *schema.Table) ([]relationData, error) {
	calls := append(t.ForeignKeyCalls(), t.RelationSources...)

	var result []relationData
	byMethod := make(map[string]relationData)
	for _, c := range calls {
		related, ok := m.Related(c)
		if !ok {
			return nil, fmt.Errorf("table %q: foreign key on %q is not resolved", t.Name, c.FK.Column)
		}
		rel := r.relation(c, related)

		if prev, dup := byMethod[rel.Method]; dup {
			if prev == rel {
				continue
			}
			rel.Method = disambiguate(rel, c)
			if _, dup := byMethod[rel.Method]; dup {
				continue
			}
		}
		byMethod[rel.Method] = rel
		result = append(result, rel)
	}
	return result, nil
}

func (r *Renderer) relation(c *schema.Call, related *schema.Table) relationData {
	model := r.modelRef(related)
	rel := relationData{Table: related.Name}

	switch {
	case c.FK.Source:
		if c.FK.Many {
			rel.Kind = "hasMany"
			rel.Method = related.Name
		} else {
			rel.Kind = "hasOne"
			rel.Method = related.ModelName()
		}
		rel.Body = fmt.Sprintf("return $this->%s(%s, %s);", rel.Kind, model, schema.Literal(c.FK.Column))
	case c.FK.Pivot:
		rel.Kind = "belongsToMany"
		rel.Method = related.Name
		rel.Body = fmt.Sprintf("return $this->%s(%s, %s);", rel.Kind, model, schema.Literal(c.FK.PivotTable))
	default:
		rel.Kind = "belongsTo"
		rel.Method = related.ModelName()
		rel.Body = fmt.Sprintf("return $this->%s(%s, %s);", rel.Kind, model, schema.Literal(c.FK.Column))
	}
	rel.Method = schema.CamelCase(rel.Method)
	rel.Kind = schema.UpperFirst(rel.Kind)
	return rel
}

// disambiguate names an accessor after its key column, e.g. "editor" for
// a second belongsTo on editor_id.
func disambiguate(rel relationData, c *schema.Call) string {
	key := schema.CamelCase(strings.TrimSuffix(c.FK.Column, "_id"))
	if rel.Kind == "BelongsTo" {
		return key
	}
	return rel.Method + "By" + schema.UpperFirst(key)
}

func (r *Renderer) modelRef(t *schema.Table) string {
	ns := strings.Trim(r.Namespace, `\`)
	if ns == "" {
		return `\` + t.ModelName() + "::class"
	}
	return `\` + ns + `\` + t.ModelName() + "::class"
}

var modelTemplate = `{{ range .Traits }}    use {{ . }};

{{ end }}    /**
     * The database table used by the model.
     *
     * @var string
     */
    protected $table = {{ .Table }};

    /**
     * The attributes that are mass assignable.
     *
     * @var array
     */
    protected $fillable = {{ .Fillable }};
{{ if .Dates }}
    /**
     * The attributes that should be mutated to dates.
     *
     * @var array
     */
    protected $dates = {{ .Dates }};
{{ end }}{{ if .Casts }}
    /**
     * The attributes that should be cast to native types.
     *
     * @var array
     */
    protected $casts = {{ .Casts }};
{{ end }}{{ range .Relations }}
    /**
     * Getter for {{ .Table }}.
     *
     * @return ` + relationsNS + `{{ .Kind }}
     */
    public function {{ .Method }}()
    {
        {{ .Body }}
    }
{{ end }}`
