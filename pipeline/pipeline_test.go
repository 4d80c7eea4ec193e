package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-centre/domain/calendar"
	"command-centre/domain/dashboard"
	"command-centre/domain/roster"
	"command-centre/domain/run"
)

var fixedNow = time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)

type fakeSource struct {
	records    []dashboard.Record
	recordsErr error
	sheets     map[string]dashboard.Sheet
	mapping    dashboard.DocTypeMapping
	docs       map[string][]dashboard.Document
	members    []roster.Member
	events     []calendar.Event
	eventsErr  error
	// entered and block, when set, hold Records until the test releases it
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeSource) Records(context.Context) ([]dashboard.Record, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	return f.records, f.recordsErr
}

func (f *fakeSource) LayoutSheet(_ context.Context, sheet string) (dashboard.Sheet, error) {
	s, ok := f.sheets[sheet]
	if !ok {
		return nil, errors.New("no such sheet")
	}
	return s, nil
}

func (f *fakeSource) Mapping(context.Context) (dashboard.DocTypeMapping, error) {
	return f.mapping, nil
}

func (f *fakeSource) Extracts() []string { return []string{"reso"} }

func (f *fakeSource) Documents(_ context.Context, name string) ([]dashboard.Document, error) {
	return f.docs[name], nil
}

func (f *fakeSource) Members(context.Context) ([]roster.Member, error) { return f.members, nil }

func (f *fakeSource) Events(context.Context) ([]calendar.Event, error) { return f.events, f.eventsErr }

type memSink struct {
	mu     sync.Mutex
	name   string
	err    error
	writes [][]string
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Write(_ context.Context, tables []*dashboard.MetricTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	s.writes = append(s.writes, names)
	return s.err
}

type memRecorder struct {
	runs []run.Run
}

func (m *memRecorder) RecordRun(_ context.Context, r run.Run) error {
	m.runs = append(m.runs, r)
	return nil
}

func layoutSheet(marker string, queues ...string) dashboard.Sheet {
	sheet := dashboard.Sheet{
		{"Dashboard"},
		{"", dashboard.ColPRO, dashboard.ColQC, dashboard.ColReso, "Bulletin Board"},
		{marker},
	}
	for _, q := range queues {
		sheet = append(sheet, []string{q})
	}
	return append(sheet, []string{dashboard.DefaultGrandTotal})
}

func newSource() *fakeSource {
	mapping := dashboard.NewDocTypeMapping()
	mapping.Add("INV", "Q1")
	return &fakeSource{
		records: []dashboard.Record{
			{Queue: "Q1", DocumentID: "d1", Lock: dashboard.Locked},
			{Queue: "Q1", DocumentID: "d2"},
			{Queue: "Q1QC", DocumentID: "d1", Lock: dashboard.Locked},
			{Queue: "Q2", DocumentID: "d3"},
			{Queue: "H1", DocumentID: "h1"},
		},
		sheets: map[string]dashboard.Sheet{
			"GDC":   layoutSheet("catA - Total", "Q1", "Q2"),
			"HNW":   layoutSheet("catH - Total", "H1"),
			"USERS": {{"Agent", "Bulletin Board"}, {"Ana Reyes", "hi"}},
		},
		mapping: mapping,
		docs: map[string][]dashboard.Document{
			"reso": {{DocType: "INV", DocumentID: "1"}, {DocType: "ZZZ", DocumentID: "2"}},
		},
		members: []roster.Member{{Name: "Ana Reyes", Shift: "Day"}},
		events:  []calendar.Event{{Name: "Close", Start: "2024-03-29T17:00"}},
	}
}

func layoutSpec(name, sheet, marker string) dashboard.LayoutSpec {
	return dashboard.LayoutSpec{
		Name:  name,
		Sheet: sheet,
		Hierarchy: dashboard.Hierarchy{
			Markers:    []string{marker},
			GrandTotal: dashboard.DefaultGrandTotal,
		},
		Secondary: []dashboard.SecondaryColumn{{Column: dashboard.ColReso, Source: "reso"}},
	}
}

func newOptions() Options {
	engine := dashboard.NewEngine()
	engine.Overrides = nil
	return Options{
		Engine: engine,
		Layouts: []dashboard.LayoutSpec{
			layoutSpec("gdc_gta", "GDC", "catA - Total"),
			layoutSpec("hnw", "HNW", "catH - Total"),
		},
		Executive: &dashboard.ExecutiveSpec{
			Name: "executive_view",
			Organizations: []dashboard.OrgSection{
				{Label: "GDC", Source: "gdc_gta", Categories: []string{"catA - Total"}},
				{Label: "HNW", Source: "hnw", Categories: []string{"catH - Total"}},
			},
		},
		Users:    &View{Name: "users_productivity", Sheet: "USERS"},
		Calendar: &View{Name: "calendar_of_events", Sheet: "Calendar of Events"},
		Now:      func() time.Time { return fixedNow },
	}
}

func deps(src *fakeSource, sinks ...Sink) Deps {
	return Deps{
		Records: src, Layouts: src, Mapping: src, Documents: src,
		Roster: src, Calendar: src, Sinks: sinks,
	}
}

func TestRunProducesAllTables(t *testing.T) {
	src := newSource()
	sink := &memSink{name: "mem"}
	rec := &memRecorder{}
	d := deps(src, sink)
	d.Recorder = rec

	res, err := NewRunner(d, newOptions()).Run(context.Background(), "test")
	require.NoError(t, err)

	order := []string{"gdc_gta", "hnw", "users_productivity", "executive_view", "calendar_of_events"}
	assert.Equal(t, [][]string{order}, sink.writes)
	assert.Equal(t, order, res.Run.Tables)
	assert.Equal(t, run.StatusSucceeded, res.Run.Status)
	assert.NotEmpty(t, res.Run.ID)
	assert.Equal(t, []string{"ZZZ"}, res.Unmapped["reso"])
	assert.Equal(t, 1, res.Run.Unmapped)

	gdc, ok := res.Table("gdc_gta")
	require.True(t, ok)
	cat, _ := gdc.Row("catA - Total")
	assert.Equal(t, 3, cat.Int(dashboard.ColPRO))
	q1, _ := gdc.Row("Q1")
	assert.Equal(t, 1, q1.Int(dashboard.ColReso))

	exec, _ := res.Table("executive_view")
	hnw, _ := exec.Row("HNW")
	assert.Equal(t, 1, hnw.Int(dashboard.ColExecProcessing))

	users, _ := res.Table("users_productivity")
	ana, _ := users.Row("Ana Reyes")
	assert.Equal(t, "Day", ana.Text(roster.ColShiftSchedule))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.Run.ID, rec.runs[0].ID)
	assert.Equal(t, "test", rec.runs[0].Trigger)
}

func TestRunLayoutFailureSkipsExecutiveOnly(t *testing.T) {
	src := newSource()
	src.sheets["HNW"] = dashboard.Sheet{{"no header here"}}
	sink := &memSink{name: "mem"}

	res, err := NewRunner(deps(src, sink), newOptions()).Run(context.Background(), "test")
	require.Error(t, err)

	var perr *dashboard.LayoutParseError
	assert.ErrorAs(t, err, &perr)
	var missing *dashboard.MissingRowError
	assert.ErrorAs(t, err, &missing)

	assert.Equal(t, run.StatusPartial, res.Run.Status)
	assert.Equal(t, []string{"gdc_gta", "users_productivity", "calendar_of_events"}, res.Run.Tables)
	assert.Len(t, sink.writes, 1)
}

func TestRunSnapshotFailureAborts(t *testing.T) {
	src := newSource()
	src.recordsErr = errors.New("disk gone")
	sink := &memSink{name: "mem"}
	rec := &memRecorder{}
	d := deps(src, sink)
	d.Recorder = rec

	res, err := NewRunner(d, newOptions()).Run(context.Background(), "test")
	assert.ErrorContains(t, err, "operational snapshot: disk gone")
	assert.Equal(t, run.StatusFailed, res.Run.Status)
	assert.Empty(t, sink.writes)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.StatusFailed, rec.runs[0].Status)
}

func TestRunSinkErrorKeepsOtherSinks(t *testing.T) {
	src := newSource()
	bad := &memSink{name: "bad", err: errors.New("read-only")}
	good := &memSink{name: "good"}

	res, err := NewRunner(deps(src, bad, good), newOptions()).Run(context.Background(), "test")
	assert.ErrorContains(t, err, "sink bad: read-only")
	assert.Len(t, good.writes, 1)
	assert.Equal(t, run.StatusPartial, res.Run.Status)
}

func TestRunOptionalInputsDegrade(t *testing.T) {
	src := newSource()
	src.eventsErr = errors.New("calendar missing")
	opts := newOptions()
	opts.Users = nil

	res, err := NewRunner(deps(src), opts).Run(context.Background(), "test")
	assert.ErrorContains(t, err, "calendar missing")
	assert.Equal(t, []string{"gdc_gta", "hnw", "executive_view"}, res.Run.Tables)
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	src := newSource()
	src.entered = make(chan struct{})
	src.block = make(chan struct{})
	r := NewRunner(deps(src), newOptions())

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), "first")
		done <- err
	}()
	<-src.entered

	res, err := r.Run(context.Background(), "second")
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, res)

	close(src.block)
	require.NoError(t, <-done)
}

func TestRunHonorsLockFile(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "run.lock")
	held := flock.New(lock)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	opts := newOptions()
	opts.LockFile = lock
	r := NewRunner(deps(newSource()), opts)

	_, err = r.Run(context.Background(), "test")
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, held.Unlock())
	_, err = r.Run(context.Background(), "test")
	assert.NoError(t, err)
}

func TestRunIsRepeatable(t *testing.T) {
	src := newSource()
	r := NewRunner(deps(src), newOptions())
	first, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	second, err := r.Run(context.Background(), "test")
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	for i := range first.Tables {
		a, b := first.Tables[i], second.Tables[i]
		assert.Equal(t, a.Columns, b.Columns)
		for j := range a.Rows {
			for _, c := range a.Columns {
				assert.Equal(t, a.Rows[j].Text(c), b.Rows[j].Text(c))
			}
		}
	}
}
