// Package rollup wires the configured inputs and sinks into a pipeline runner
// and runs it once from the command line.
package rollup

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"

	"command-centre/connectors/csv"
	"command-centre/connectors/files"
	"command-centre/connectors/store"
	"command-centre/connectors/xlsx"
	"command-centre/domain/config"
	"command-centre/domain/dashboard"
	"command-centre/pipeline"
)

// Env is a runner with its sinks opened from a config. The store is also the
// read side of the web API.
type Env struct {
	Config *config.Config
	Runner *pipeline.Runner
	Store  *store.Store
}

// Open builds the runner for cfg. Close releases the store.
func Open(cfg *config.Config, logger *slog.Logger) (*Env, error) {
	st, err := store.Open(cfg.Output.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	src := files.NewSource(cfg)
	sinks := []pipeline.Sink{
		xlsx.WorkbookSink{Dir: cfg.Output.Dir, Prefix: cfg.Output.WorkbookPrefix},
		st,
	}
	if cfg.Output.CSV {
		sinks = append(sinks, csv.DirSink{Dir: cfg.Output.CSVDir})
	}

	opts := pipeline.Options{
		Engine:   cfg.Engine(),
		LockFile: cfg.LockFile,
		Logger:   logger,
	}
	for _, l := range cfg.Layouts {
		opts.Layouts = append(opts.Layouts, l.LayoutSpec())
	}
	if cfg.Executive.Name != "" {
		spec := cfg.Executive.ExecutiveSpec()
		opts.Executive = &spec
	}
	if cfg.Users.Name != "" {
		opts.Users = &pipeline.View{Name: cfg.Users.Name, Sheet: cfg.Users.Sheet}
	}
	if cfg.Calendar.Name != "" {
		opts.Calendar = &pipeline.View{Name: cfg.Calendar.Name, Sheet: cfg.Calendar.Sheet}
	}

	deps := pipeline.Deps{
		Records:   src,
		Layouts:   src,
		Mapping:   src,
		Documents: src,
		Roster:    src,
		Calendar:  src,
		Sinks:     sinks,
		Recorder:  st,
	}
	return &Env{Config: cfg, Runner: pipeline.NewRunner(deps, opts), Store: st}, nil
}

func (e *Env) Close() error { return e.Store.Close() }

// Run executes one rollup. With out set, every produced table is rendered to
// it. A partial run still prints what it produced and returns its errors.
func Run(ctx context.Context, cfg *config.Config, trigger string, out io.Writer) error {
	env, err := Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.Runner.Run(ctx, trigger)
	if res != nil && out != nil {
		for _, t := range res.Tables {
			Print(out, t)
		}
	}
	return err
}

// Print renders t as a text table.
func Print(w io.Writer, t *dashboard.MetricTable) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(t.Name)

	header := table.Row{t.LabelHeader}
	for _, c := range t.Columns {
		header = append(header, c)
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := table.Row{r.Label}
		for _, c := range t.Columns {
			row = append(row, r.Value(c))
		}
		tw.AppendRow(row)
	}
	tw.Render()
}
