package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/mwbgen/mwbgen/internal/codegen"
	"github.com/mwbgen/mwbgen/internal/config"
	"github.com/mwbgen/mwbgen/internal/loader"
	"github.com/mwbgen/mwbgen/internal/mwb"
	"github.com/mwbgen/mwbgen/internal/relation"
	"github.com/mwbgen/mwbgen/internal/report"
	"github.com/mwbgen/mwbgen/internal/scaffold"
	"github.com/mwbgen/mwbgen/internal/schema"
)

// Engine runs the model file to Laravel files pipeline shared by all
// commands.
type Engine struct {
	Config     *config.Config
	Logger     *slog.Logger
	Scaffolder scaffold.Scaffolder
	Formatter  scaffold.Formatter // nil disables formatting
	Renderer   *codegen.Renderer

	// Pivots are forced pivot tables in addition to Config.Pivots.
	Pivots []string
	DryRun bool
	// AllowIgnoredRefs drops foreign keys to ignored tables instead of failing.
	AllowIgnoredRefs bool
}

// Output is the rendered text for one table.
type Output struct {
	Table     *schema.Table
	Migration string
	Model     string // empty when the table needs no model
}

// Progress is called after each table is written.
type Progress func(done, total int, table string)

// New creates an Engine writing to the directories of cfg.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		Config:     cfg,
		Logger:     logger,
		Scaffolder: scaffold.NewFiles(cfg.Output.Migrations, cfg.Output.Models, cfg.Laravel.Namespace),
		Renderer:   &codegen.Renderer{Namespace: cfg.Laravel.Namespace},
	}
	if cfg.Formatter.Enabled {
		e.Formatter = &scaffold.Command{Line: cfg.Formatter.Command}
	}
	return e
}

// Load reads every table of the model archive at path.
func (e *Engine) Load(path string) (*schema.Model, error) {
	r, err := mwb.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return e.Read(r)
}

// Read loads every table from an open reader. Tables annotated with
// ignore=1 are recorded as ignored.
func (e *Engine) Read(r *mwb.Reader) (*schema.Model, error) {
	if err := r.CheckVersion(); err != nil {
		return nil, err
	}
	e.Logger.Debug("reading model document", "version", r.Version())

	m := schema.NewModel()
	for r.Read() {
		if !r.IsTable() {
			continue
		}
		node, err := r.Expand()
		if err != nil {
			return nil, fmt.Errorf("expanding table node: %w", err)
		}

		t, err := loader.Load(node, e.Logger)
		if errors.Is(err, loader.ErrIgnored) {
			e.Logger.Info("ignoring table", "table", t.Name)
			m.Ignore(t.ID, t.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := m.Add(t); err != nil {
			return nil, err
		}
		e.Logger.Debug("loaded table", "table", t.Name, "fields", len(t.Fields), "calls", len(t.Calls))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return m, nil
}

// Plan resolves relationships and returns the tables in migration order.
func (e *Engine) Plan(m *schema.Model) ([]*schema.Table, error) {
	pivots := slices.Clone(e.Config.Pivots)
	for _, p := range e.Pivots {
		if !slices.Contains(pivots, p) {
			pivots = append(pivots, p)
		}
	}

	opts := relation.Options{Pivots: pivots, AllowIgnoredRefs: e.AllowIgnoredRefs}
	if err := relation.Resolve(m, opts, e.Logger); err != nil {
		return nil, fmt.Errorf("resolving relations: %w", err)
	}
	order, err := relation.Order(m)
	if err != nil {
		return nil, fmt.Errorf("ordering tables: %w", err)
	}
	return order, nil
}

// Render produces the migration and model text of every planned table.
func (e *Engine) Render(m *schema.Model, plan []*schema.Table) ([]Output, error) {
	outputs := make([]Output, 0, len(plan))
	for _, t := range plan {
		out := Output{Table: t, Migration: e.Renderer.Migration(m, t)}
		if t.NeedsModel() {
			text, err := e.Renderer.Model(m, t)
			if err != nil {
				return nil, fmt.Errorf("rendering model for %s: %w", t.Name, err)
			}
			out.Model = text
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// Write creates and fills the scaffold files for every output. Existing
// model files are skipped; formatter failures are only reported.
func (e *Engine) Write(ctx context.Context, outputs []Output, rep *report.Report, progress Progress) error {
	for i, out := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := indexOf(rep, out.Table.Name)
		summary := &rep.Tables[idx]

		path, err := e.Scaffolder.CreateMigration(out.Table.Name)
		if err != nil {
			return fmt.Errorf("creating migration for %s: %w", out.Table.Name, err)
		}
		if err := scaffold.Splice(path, codegen.MigrationPlaceholder, out.Migration); err != nil {
			return fmt.Errorf("writing migration for %s: %w", out.Table.Name, err)
		}
		summary.Migration = path
		e.format(ctx, path, rep)

		if out.Model != "" {
			path, err := e.Scaffolder.CreateModel(out.Table.ModelName())
			var exists *scaffold.ExistsError
			switch {
			case errors.As(err, &exists):
				e.Logger.Warn("model file exists, skipping", "table", out.Table.Name, "path", exists.Path)
				rep.Skipped = append(rep.Skipped, report.Skipped{Path: exists.Path, Reason: "already exists"})
			case err != nil:
				return fmt.Errorf("creating model for %s: %w", out.Table.Name, err)
			default:
				if err := scaffold.Splice(path, codegen.ModelPlaceholder, out.Model); err != nil {
					return fmt.Errorf("writing model for %s: %w", out.Table.Name, err)
				}
				summary.ModelFile = path
				e.format(ctx, path, rep)
			}
		}

		if progress != nil {
			progress(i+1, len(outputs), out.Table.Name)
		}
	}
	return nil
}

func (e *Engine) format(ctx context.Context, path string, rep *report.Report) {
	if e.Formatter == nil {
		return
	}
	if err := e.Formatter.Format(ctx, path); err != nil {
		e.Logger.Warn("formatting failed", "file", path, "error", err)
		rep.Warn("formatting %s failed: %v", filepath.Base(path), err)
	}
}

func indexOf(rep *report.Report, table string) int {
	for i, t := range rep.Tables {
		if t.Name == table {
			return i
		}
	}
	rep.Tables = append(rep.Tables, report.TableSummary{Name: table})
	return len(rep.Tables) - 1
}

// Run loads, plans and renders the model at path, then writes the files
// unless DryRun is set. Nothing is written when any earlier step fails.
func (e *Engine) Run(ctx context.Context, path string, progress Progress) (*report.Report, error) {
	m, err := e.Load(path)
	if err != nil {
		return nil, err
	}
	e.Logger.Info(m.Summary())

	plan, err := e.Plan(m)
	if err != nil {
		return nil, err
	}
	outputs, err := e.Render(m, plan)
	if err != nil {
		return nil, err
	}

	rep := Summarize(path, outputs)
	rep.DryRun = e.DryRun
	if e.DryRun {
		return rep, nil
	}
	if err := e.Write(ctx, outputs, rep, progress); err != nil {
		return rep, err
	}
	return rep, nil
}

// Summarize returns a report listing every rendered table in order.
func Summarize(modelFile string, outputs []Output) *report.Report {
	rep := report.New(modelFile)
	for _, out := range outputs {
		t := out.Table
		s := report.TableSummary{
			Name:      t.Name,
			Pivot:     t.Pivot,
			Fields:    len(t.Fields),
			Relations: len(t.ForeignKeyCalls()) + len(t.RelationSources),
		}
		if out.Model != "" {
			s.Model = t.ModelName()
		}
		rep.Tables = append(rep.Tables, s)
	}
	return rep
}
