// Package pipeline runs one dashboard refresh: it loads every input, rolls up
// each organizational layout, builds the derived views and hands the tables to
// the sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"command-centre/domain/calendar"
	"command-centre/domain/dashboard"
	"command-centre/domain/roster"
	"command-centre/domain/run"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

type RecordSource interface {
	Records(ctx context.Context) ([]dashboard.Record, error)
}

type SheetSource interface {
	LayoutSheet(ctx context.Context, sheet string) (dashboard.Sheet, error)
}

type MappingSource interface {
	Mapping(ctx context.Context) (dashboard.DocTypeMapping, error)
}

type DocumentSource interface {
	Extracts() []string
	Documents(ctx context.Context, name string) ([]dashboard.Document, error)
}

type RosterSource interface {
	Members(ctx context.Context) ([]roster.Member, error)
}

type CalendarSource interface {
	Events(ctx context.Context) ([]calendar.Event, error)
}

// Sink receives the finished tables of a run, in output order.
type Sink interface {
	Name() string
	Write(ctx context.Context, tables []*dashboard.MetricTable) error
}

type RunRecorder interface {
	RecordRun(ctx context.Context, r run.Run) error
}

// Deps are the collaborators of a run. Roster, Calendar and Recorder are
// optional.
type Deps struct {
	Records   RecordSource
	Layouts   SheetSource
	Mapping   MappingSource
	Documents DocumentSource
	Roster    RosterSource
	Calendar  CalendarSource
	Sinks     []Sink
	Recorder  RunRecorder
}

// View names an output table and the sheet it comes from or goes to.
type View struct {
	Name  string
	Sheet string
}

// Options configure what a run produces.
type Options struct {
	Engine    *dashboard.Engine
	Layouts   []dashboard.LayoutSpec
	Executive *dashboard.ExecutiveSpec
	// Users is read from the layout workbook.
	Users *View
	// Calendar is the output sheet of the calendar view.
	Calendar *View
	// LockFile serializes runs across processes when set.
	LockFile string
	Now      func() time.Time
	Logger   *slog.Logger
}

// Result is what a run produced. Tables are in output order.
type Result struct {
	Run         run.Run
	Tables      []*dashboard.MetricTable
	Diagnostics []dashboard.Diagnostics
	// Unmapped lists, per extract, the doc types without a mapping entry.
	Unmapped map[string][]string
}

// Table returns the produced table called name.
func (r *Result) Table(name string) (*dashboard.MetricTable, bool) {
	return lo.Find(r.Tables, func(t *dashboard.MetricTable) bool { return t.Name == name })
}

// Runner executes runs. At most one run is active at a time.
type Runner struct {
	deps Deps
	opts Options
	mu   sync.Mutex
}

func NewRunner(deps Deps, opts Options) *Runner {
	if opts.Engine == nil {
		opts.Engine = dashboard.NewEngine()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Engine.Now == nil {
		opts.Engine.Now = opts.Now
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = opts.Logger
	}
	return &Runner{deps: deps, opts: opts}
}

// Run performs one refresh. trigger names what started it (cli, web, poll,
// watch). A run that produced some tables but hit errors returns both the
// result and the joined errors. ErrRunInProgress is returned without a result
// when another run is active.
func (r *Runner) Run(ctx context.Context, trigger string) (*Result, error) {
	unlock, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := r.opts.Logger
	res := &Result{
		Run:      run.Run{ID: uuid.NewString(), Trigger: trigger, StartedAt: r.opts.Now()},
		Unmapped: map[string][]string{},
	}
	log.Info("rollup.start", "run", res.Run.ID, "trigger", trigger, "layouts", len(r.opts.Layouts))

	errs := r.execute(ctx, res)

	res.Run.FinishedAt = r.opts.Now()
	res.Run.Tables = lo.Map(res.Tables, func(t *dashboard.MetricTable, _ int) string { return t.Name })
	switch {
	case len(errs) == 0:
		res.Run.Status = run.StatusSucceeded
	case len(res.Tables) > 0:
		res.Run.Status = run.StatusPartial
	default:
		res.Run.Status = run.StatusFailed
	}
	err = errors.Join(errs...)
	if err != nil {
		res.Run.Error = err.Error()
	}
	r.record(res)

	log.Info("rollup.done",
		"run", res.Run.ID,
		"status", res.Run.Status,
		"tables", len(res.Tables),
		"duration", res.Run.Duration().String())
	return res, err
}

func (r *Runner) acquire() (func(), error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	if r.opts.LockFile == "" {
		return r.mu.Unlock, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.opts.LockFile), 0o755); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	fl := flock.New(r.opts.LockFile)
	ok, err := fl.TryLock()
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			r.opts.Logger.Warn("rollup.unlock.failed", "lock", r.opts.LockFile, "err", err)
		}
		r.mu.Unlock()
	}, nil
}

// loaded holds the materialized inputs of a run. Optional inputs keep their
// load error instead of failing the run.
type loaded struct {
	records    []dashboard.Record
	mapping    dashboard.DocTypeMapping
	mappingErr error
	extracts   []string
	docs       [][]dashboard.Document
	docErrs    []error
	layouts    []dashboard.Sheet
	layoutErrs []error
	users      dashboard.Sheet
	usersErr   error
	members    []roster.Member
	membersErr error
	events     []calendar.Event
	eventsErr  error
}

func (r *Runner) load(ctx context.Context) (*loaded, error) {
	in := &loaded{}
	if r.deps.Documents != nil {
		in.extracts = r.deps.Documents.Extracts()
	}
	in.docs = make([][]dashboard.Document, len(in.extracts))
	in.docErrs = make([]error, len(in.extracts))
	in.layouts = make([]dashboard.Sheet, len(r.opts.Layouts))
	in.layoutErrs = make([]error, len(r.opts.Layouts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		recs, err := r.deps.Records.Records(egCtx)
		if err != nil {
			return fmt.Errorf("operational snapshot: %w", err)
		}
		in.records = recs
		return nil
	})
	if r.deps.Mapping != nil {
		eg.Go(func() error {
			in.mapping, in.mappingErr = r.deps.Mapping.Mapping(egCtx)
			return nil
		})
	}
	for i, name := range in.extracts {
		eg.Go(func() error {
			in.docs[i], in.docErrs[i] = r.deps.Documents.Documents(egCtx, name)
			return nil
		})
	}
	for i, spec := range r.opts.Layouts {
		eg.Go(func() error {
			in.layouts[i], in.layoutErrs[i] = r.deps.Layouts.LayoutSheet(egCtx, spec.Sheet)
			return nil
		})
	}
	if r.opts.Users != nil {
		eg.Go(func() error {
			in.users, in.usersErr = r.deps.Layouts.LayoutSheet(egCtx, r.opts.Users.Sheet)
			return nil
		})
		if r.deps.Roster != nil {
			eg.Go(func() error {
				in.members, in.membersErr = r.deps.Roster.Members(egCtx)
				return nil
			})
		}
	}
	if r.opts.Calendar != nil && r.deps.Calendar != nil {
		eg.Go(func() error {
			in.events, in.eventsErr = r.deps.Calendar.Events(egCtx)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

func (r *Runner) execute(ctx context.Context, res *Result) []error {
	log := r.opts.Logger
	in, err := r.load(ctx)
	if err != nil {
		return []error{err}
	}
	var errs []error

	engine := r.opts.Engine
	inputs := dashboard.Inputs{
		Records:   in.records,
		Metrics:   engine.Aggregate(in.records),
		Secondary: map[string]dashboard.Counts{},
	}
	if in.mappingErr != nil {
		log.Warn("rollup.mapping.unavailable", "err", in.mappingErr)
		errs = append(errs, fmt.Errorf("doc type mapping: %w", in.mappingErr))
	}
	for i, name := range in.extracts {
		if in.docErrs[i] != nil {
			log.Warn("rollup.extract.unavailable", "extract", name, "err", in.docErrs[i])
			errs = append(errs, fmt.Errorf("extract %s: %w", name, in.docErrs[i]))
			continue
		}
		if in.mappingErr != nil {
			continue
		}
		mapped := dashboard.MapDocuments(in.docs[i], in.mapping)
		inputs.Secondary[name] = mapped.Counts
		res.Unmapped[name] = mapped.Unmapped
		unmappedDocTypes.WithLabelValues(name).Set(float64(len(mapped.Unmapped)))
		res.Run.Unmapped += len(mapped.Unmapped)
		if len(mapped.Unmapped) > 0 {
			log.Warn("rollup.extract.unmapped", "extract", name, "doc_types", len(mapped.Unmapped))
		}
	}

	rolled := map[string]*dashboard.MetricTable{}
	var layoutTables []*dashboard.MetricTable
	for i, spec := range r.opts.Layouts {
		if err := in.layoutErrs[i]; err != nil {
			log.Error("rollup.layout.failed", "layout", spec.Name, "err", err)
			errs = append(errs, fmt.Errorf("layout %s: %w", spec.Name, err))
			continue
		}
		t, diag, err := engine.Rollup(spec, in.layouts[i], inputs)
		if err != nil {
			log.Error("rollup.layout.failed", "layout", spec.Name, "err", err)
			errs = append(errs, fmt.Errorf("layout %s: %w", spec.Name, err))
			continue
		}
		rolled[spec.Name] = t
		layoutTables = append(layoutTables, t)
		res.Diagnostics = append(res.Diagnostics, diag)
		res.Run.Unmatched += len(diag.UnmatchedQueues)
		unmatchedQueues.WithLabelValues(spec.Name).Set(float64(len(diag.UnmatchedQueues)))
		log.Info("rollup.layout.done",
			"layout", spec.Name,
			"rows", len(t.Rows),
			"unmatched", len(diag.UnmatchedQueues),
			"overridden", len(diag.Overridden),
			"skipped_secondary", len(diag.SkippedSecondary))
	}
	res.Tables = append(res.Tables, layoutTables...)

	now := engine.Now()
	if v := r.opts.Users; v != nil {
		if in.usersErr != nil {
			log.Warn("rollup.users.unavailable", "sheet", v.Sheet, "err", in.usersErr)
			errs = append(errs, fmt.Errorf("users: %w", in.usersErr))
		} else {
			if in.membersErr != nil {
				log.Warn("rollup.roster.unavailable", "err", in.membersErr)
				errs = append(errs, fmt.Errorf("roster: %w", in.membersErr))
			}
			res.Tables = append(res.Tables, roster.Enrich(v.Name, v.Sheet, in.users, in.members, now))
		}
	}

	if spec := r.opts.Executive; spec != nil {
		exec, err := dashboard.BuildExecutiveView(*spec, rolled, now)
		if err != nil {
			log.Error("rollup.executive.failed", "err", err)
			errs = append(errs, err)
		} else {
			res.Tables = append(res.Tables, exec)
		}
	}

	if v := r.opts.Calendar; v != nil && r.deps.Calendar != nil {
		if in.eventsErr != nil {
			log.Warn("rollup.calendar.unavailable", "err", in.eventsErr)
			errs = append(errs, fmt.Errorf("calendar: %w", in.eventsErr))
		} else {
			res.Tables = append(res.Tables, calendar.Build(v.Name, v.Sheet, in.events))
		}
	}

	if len(res.Tables) == 0 {
		return errs
	}
	for _, s := range r.deps.Sinks {
		if err := s.Write(ctx, res.Tables); err != nil {
			sinkErrors.WithLabelValues(s.Name()).Inc()
			log.Error("rollup.sink.error", "sink", s.Name(), "err", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errs
}

func (r *Runner) record(res *Result) {
	runsTotal.WithLabelValues(res.Run.Status, res.Run.Trigger).Inc()
	runDuration.Observe(res.Run.Duration().Seconds())
	if res.Run.Status == run.StatusSucceeded {
		lastSuccess.Set(float64(res.Run.FinishedAt.Unix()))
	}
	if r.deps.Recorder == nil {
		return
	}
	// the audit row is written even when the run context was cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Recorder.RecordRun(ctx, res.Run); err != nil {
		r.opts.Logger.Error("rollup.record.failed", "run", res.Run.ID, "err", err)
	}
}
