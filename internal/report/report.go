package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Report summarizes one generator run.
type Report struct {
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	ModelFile   string         `json:"model_file"`
	DryRun      bool           `json:"dry_run,omitempty"`
	Tables      []TableSummary `json:"tables"`
	Skipped     []Skipped      `json:"skipped,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// TableSummary describes the files generated for one table, in migration
// order.
type TableSummary struct {
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Pivot     bool   `json:"pivot,omitempty"`
	Fields    int    `json:"fields"`
	Relations int    `json:"relations"`
	Migration string `json:"migration,omitempty"`
	ModelFile string `json:"model_file,omitempty"`
}

// Skipped is a file that was not written.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// New returns an empty report for the given model file.
func New(modelFile string) *Report {
	return &Report{
		Version:     "1",
		GeneratedAt: time.Now(),
		ModelFile:   modelFile,
	}
}

// Warn records a warning.
func (r *Report) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Files returns every written file in order.
func (r *Report) Files() []string {
	var files []string
	for _, t := range r.Tables {
		if t.Migration != "" {
			files = append(files, t.Migration)
		}
		if t.ModelFile != "" {
			files = append(files, t.ModelFile)
		}
	}
	return files
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &Report{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *Report) string {
	var b strings.Builder

	b.WriteString("=== mwbgen Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Model:     %s\n", report.ModelFile))
	if report.DryRun {
		b.WriteString("Mode:      dry run, nothing written\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Tables (%d, migration order):\n", len(report.Tables)))
	for i, t := range report.Tables {
		kind := t.Model
		if t.Pivot {
			kind = "pivot"
		}
		if kind == "" {
			kind = "no model"
		}
		b.WriteString(fmt.Sprintf("  %d. %s (%s) fields=%d relations=%d\n", i+1, t.Name, kind, t.Fields, t.Relations))
	}
	b.WriteString("\n")

	if files := report.Files(); len(files) > 0 {
		b.WriteString("Files:\n")
		for _, f := range files {
			b.WriteString(fmt.Sprintf("  %s\n", f))
		}
		b.WriteString("\n")
	}

	if len(report.Skipped) > 0 {
		b.WriteString("Skipped:\n")
		for _, s := range report.Skipped {
			b.WriteString(fmt.Sprintf("  %s: %s\n", s.Path, s.Reason))
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range report.Warnings {
			b.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}

	return b.String()
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// Styled renders a short colored console summary.
func Styled(report *Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mwbgen") + "\n\n")

	for _, t := range report.Tables {
		line := nameStyle.Render(t.Name)
		if t.Pivot {
			line += dimStyle.Render(" (pivot)")
		} else if t.Model != "" {
			line += dimStyle.Render(" -> " + t.Model)
		}
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\n")

	for _, s := range report.Skipped {
		b.WriteString(warnStyle.Render("skipped "+s.Path+": "+s.Reason) + "\n")
	}
	for _, w := range report.Warnings {
		b.WriteString(warnStyle.Render("warning: "+w) + "\n")
	}

	files := len(report.Files())
	if report.DryRun {
		b.WriteString(successStyle.Render(fmt.Sprintf("Dry run: %d tables rendered, nothing written.", len(report.Tables))))
	} else {
		b.WriteString(successStyle.Render(fmt.Sprintf("%d tables, %d files written.", len(report.Tables), files)))
	}
	b.WriteString("\n")
	return b.String()
}

var bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))

// ProgressLine renders a static progress bar for done out of total followed
// by the current item.
func ProgressLine(done, total int, item string) string {
	pct := 1.0
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	return fmt.Sprintf("%s %d/%d %s", bar.ViewAs(pct), done, total, item)
}
