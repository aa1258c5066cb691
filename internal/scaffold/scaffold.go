// Package scaffold creates the blank Laravel migration and model files that
// generated fragments are spliced into, and runs the optional formatter.
package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

//go:embed stubs/*.stub
var stubFS embed.FS

var stubs = template.Must(template.ParseFS(stubFS, "stubs/*.stub"))

// ErrPlaceholder is returned by Splice when the marker is not in the file.
var ErrPlaceholder = errors.New("placeholder not found")

// ExistsError reports a scaffold file that is already on disk.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s already exists", e.Path)
}

// Scaffolder creates empty migration and model files.
type Scaffolder interface {
	CreateMigration(table string) (string, error)
	CreateModel(model string) (string, error)
}

// Files writes Laravel stubs to the configured directories.
type Files struct {
	MigrationsDir string
	ModelsDir     string
	Namespace     string

	// Now defaults to time.Now.
	Now func() time.Time

	start time.Time
	seq   int
}

// NewFiles returns a scaffolder writing to the given directories.
func NewFiles(migrationsDir, modelsDir, namespace string) *Files {
	return &Files{MigrationsDir: migrationsDir, ModelsDir: modelsDir, Namespace: namespace}
}

// CreateMigration writes database/migrations/<timestamp>_create_<table>_table.php.
// Every call is one second later than the previous one so that Laravel runs
// the migrations in creation order.
func (f *Files) CreateMigration(table string) (string, error) {
	if f.start.IsZero() {
		now := time.Now
		if f.Now != nil {
			now = f.Now
		}
		f.start = now()
	}
	data := struct{ Class, Table string }{
		Class: "Create" + Studly(table) + "Table",
		Table: table,
	}

	// A rerun within the same second would reuse a timestamp.
	for range maxAttempts {
		ts := f.start.Add(time.Duration(f.seq) * time.Second)
		f.seq++

		name := fmt.Sprintf("%s_create_%s_table.php", ts.Format("2006_01_02_150405"), table)
		path := filepath.Join(f.MigrationsDir, name)

		err := f.write(path, "migration.stub", data)
		var exists *ExistsError
		if errors.As(err, &exists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("no free migration name for %s", table)
}

const maxAttempts = 100

// CreateModel writes <models dir>/<model>.php.
func (f *Files) CreateModel(model string) (string, error) {
	path := filepath.Join(f.ModelsDir, model+".php")

	ns := strings.Trim(f.Namespace, `\`)
	if ns == "" {
		ns = "App"
	}
	data := struct{ Namespace, Class string }{Namespace: ns, Class: model}
	if err := f.write(path, "model.stub", data); err != nil {
		return "", err
	}
	return path, nil
}

func (f *Files) write(path, stub string, data any) error {
	var buf bytes.Buffer
	if err := stubs.ExecuteTemplate(&buf, stub, data); err != nil {
		return fmt.Errorf("rendering %s: %w", stub, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return &ExistsError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

// Splice replaces the first occurrence of placeholder in the file with text.
func Splice(path, placeholder, text string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(data)
	if !strings.Contains(content, placeholder) {
		return fmt.Errorf("%s: %w", path, ErrPlaceholder)
	}
	content = strings.Replace(content, placeholder, text, 1)
	return os.WriteFile(path, []byte(content), 0o644)
}

// Studly turns snake_case into StudlyCase: author_book -> AuthorBook.
func Studly(s string) string {
	var b strings.Builder
	for _, w := range strings.Split(s, "_") {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String()
}
