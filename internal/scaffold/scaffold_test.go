package scaffold

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mwbgen/mwbgen/internal/codegen"
)

func fixedFiles(dir string) *Files {
	f := NewFiles(filepath.Join(dir, "migrations"), filepath.Join(dir, "Models"), "App")
	f.Now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 58, 0, time.UTC) }
	return f
}

func TestCreateMigration(t *testing.T) {
	f := fixedFiles(t.TempDir())

	first, err := f.CreateMigration("authors")
	if err != nil {
		t.Fatalf("CreateMigration: %v", err)
	}
	second, err := f.CreateMigration("author_book")
	if err != nil {
		t.Fatalf("CreateMigration: %v", err)
	}
	third, err := f.CreateMigration("books")
	if err != nil {
		t.Fatalf("CreateMigration: %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{first, "2024_03_01_100058_create_authors_table.php"},
		{second, "2024_03_01_100059_create_author_book_table.php"},
		{third, "2024_03_01_100100_create_books_table.php"},
	}
	for _, tt := range tests {
		if got := filepath.Base(tt.path); got != tt.want {
			t.Errorf("file = %s, want %s", got, tt.want)
		}
	}

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"class CreateAuthorBookTable extends Migration",
		"Schema::create('author_book', function (Blueprint $table) {",
		codegen.MigrationPlaceholder,
		"Schema::dropIfExists('author_book');",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("migration missing %q:\n%s", want, content)
		}
	}
}

func TestCreateModel(t *testing.T) {
	f := fixedFiles(t.TempDir())
	f.Namespace = `App\Models\`

	path, err := f.CreateModel("Book")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	if filepath.Base(path) != "Book.php" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		`namespace App\Models;`,
		"class Book extends Model",
		codegen.ModelPlaceholder,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("model missing %q:\n%s", want, content)
		}
	}
}

func TestCreateModelExists(t *testing.T) {
	f := fixedFiles(t.TempDir())
	if _, err := f.CreateModel("Book"); err != nil {
		t.Fatal(err)
	}
	_, err := f.CreateModel("Book")
	var exists *ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("second CreateModel error = %v, want ExistsError", err)
	}
}

func TestSplice(t *testing.T) {
	f := fixedFiles(t.TempDir())
	path, err := f.CreateMigration("authors")
	if err != nil {
		t.Fatal(err)
	}

	body := "            $table->string('name', 45);"
	if err := Splice(path, codegen.MigrationPlaceholder, body); err != nil {
		t.Fatalf("Splice: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "{\n"+body+"\n        });") {
		t.Errorf("body not spliced in place:\n%s", content)
	}
	if strings.Contains(content, "increments") {
		t.Error("placeholder still present")
	}

	if err := Splice(path, codegen.MigrationPlaceholder, body); !errors.Is(err, ErrPlaceholder) {
		t.Errorf("second Splice error = %v, want ErrPlaceholder", err)
	}
}

func TestStudly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"authors", "Authors"},
		{"author_book", "AuthorBook"},
		{"user__roles", "UserRoles"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Studly(tt.in); got != tt.want {
			t.Errorf("Studly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandFormat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX tools")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "Book.php")
	if err := os.WriteFile(path, []byte("<?php\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := (&Command{Line: "test -f {file}"}).Format(context.Background(), path); err != nil {
		t.Errorf("Format: %v", err)
	}
	// exit code 1 means files were fixed
	if err := (&Command{Line: "false {file}"}).Format(context.Background(), path); err != nil {
		t.Errorf("exit code 1 should not be an error: %v", err)
	}
	if err := (&Command{Line: "mwbgen-no-such-formatter {file}"}).Format(context.Background(), path); err == nil {
		t.Error("expected an error for a missing formatter")
	}
}

func TestCreateMigrationSkipsTakenTimestamp(t *testing.T) {
	dir := t.TempDir()
	first, err := fixedFiles(dir).CreateMigration("authors")
	if err != nil {
		t.Fatal(err)
	}
	second, err := fixedFiles(dir).CreateMigration("authors")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if first == second {
		t.Fatal("rerun reused the migration file")
	}
	if got := filepath.Base(second); got != "2024_03_01_100059_create_authors_table.php" {
		t.Errorf("rerun file = %s", got)
	}
}
