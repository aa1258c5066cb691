//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

type app struct {
	root       string
	configPath string
}

// setupApp creates an empty Laravel application directory and a config
// file pointing at it. MWBGEN_TEST_FORMATTER enables a real formatter run.
func setupApp(t *testing.T) app {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MWBGEN_TEST_APP", root)

	formatter := "enabled: false"
	if cmd := os.Getenv("MWBGEN_TEST_FORMATTER"); cmd != "" {
		formatter = "enabled: true\n  command: " + cmd
	}

	content := `version: 1
output:
  migrations: ${ENV:MWBGEN_TEST_APP}/database/migrations
  models: ${ENV:MWBGEN_TEST_APP}/app/Models
  report: ${ENV:MWBGEN_TEST_APP}/storage/mwbgen-report.json
laravel:
  namespace: App\Models
formatter:
  ` + formatter + `
logging:
  level: debug
  directory: ${ENV:MWBGEN_TEST_APP}/storage/logs
`
	path := filepath.Join(root, "mwbgen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return app{root: root, configPath: path}
}

func readDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
