package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"command-centre/domain/dashboard"
)

// Config represents the structure of config.yml used by the tool. Every input
// source and every sink of a run is named here.
type Config struct {
	QCSuffix  string     `yaml:"qc_suffix"`
	Sentinel  string     `yaml:"sentinel"`
	Inputs    Inputs     `yaml:"inputs"`
	Layouts   []Layout   `yaml:"layouts"`
	Overrides []Override `yaml:"overrides"`
	Executive Executive  `yaml:"executive"`
	Users     Users      `yaml:"users"`
	Calendar  Calendar   `yaml:"calendar"`
	Output    Output     `yaml:"output"`
	Web       Web        `yaml:"web"`
	Remote    Remote     `yaml:"remote"`
	LockFile  string     `yaml:"lock_file"`
}

// Inputs locates the source workbooks, relative to UploadDir unless absolute.
type Inputs struct {
	UploadDir string    `yaml:"upload_dir"`
	Snapshot  Snapshot  `yaml:"snapshot"`
	Layout    FileRef   `yaml:"layout"`
	Mapping   Mapping   `yaml:"mapping"`
	Extracts  []Extract `yaml:"extracts"`
	Roster    Roster    `yaml:"roster"`
	Calendar  FileRef   `yaml:"calendar"`
}

// FileRef is a workbook (or .csv file) and the sheet to read. An empty sheet
// means the first one.
type FileRef struct {
	File  string `yaml:"file"`
	Sheet string `yaml:"sheet"`
}

// Snapshot is the operational data dump.
type Snapshot struct {
	FileRef        `yaml:",inline"`
	QueueColumn    string `yaml:"queue_column"`
	DocumentColumn string `yaml:"document_column"`
	LockColumn     string `yaml:"lock_column"`
}

// Mapping is the doc-type to queue-description table.
type Mapping struct {
	FileRef       `yaml:",inline"`
	DocTypeColumn string `yaml:"doc_type_column"`
	QueueColumn   string `yaml:"queue_column"`
}

// Extract is a named per-document extract keyed by doc type.
type Extract struct {
	Name           string `yaml:"name"`
	FileRef        `yaml:",inline"`
	DocTypeColumn  string `yaml:"doc_type_column"`
	DocumentColumn string `yaml:"document_column"`
}

// Roster is the member master list used for shift schedules.
type Roster struct {
	FileRef          `yaml:",inline"`
	NameColumn       string `yaml:"name_column"`
	SupervisorColumn string `yaml:"supervisor_column"`
	ShiftColumn      string `yaml:"shift_column"`
}

// Layout configures one organizational rollup.
type Layout struct {
	Name       string            `yaml:"name"`
	Sheet      string            `yaml:"sheet"`
	Markers    []string          `yaml:"markers"`
	GrandTotal string            `yaml:"grand_total"`
	Other      OtherBucket       `yaml:"other"`
	Secondary  []SecondaryColumn `yaml:"secondary"`
}

type OtherBucket struct {
	Header  string   `yaml:"header"`
	Members []string `yaml:"members"`
}

type SecondaryColumn struct {
	Column  string `yaml:"column"`
	Extract string `yaml:"extract"`
	Inject  bool   `yaml:"inject"`
}

type Override struct {
	Label string `yaml:"label"`
	Queue string `yaml:"queue"`
}

// Executive configures the cross-organization summary.
type Executive struct {
	Name          string        `yaml:"name"`
	Sheet         string        `yaml:"sheet"`
	Organizations []OrgSection  `yaml:"organizations"`
	Resolution    *Resolution   `yaml:"resolution"`
	Other         *OtherSection `yaml:"other"`
}

type OrgSection struct {
	Label      string   `yaml:"label"`
	Layout     string   `yaml:"layout"`
	Categories []string `yaml:"categories"`
}

type Resolution struct {
	Label      string   `yaml:"label"`
	Layout     string   `yaml:"layout"`
	Column     string   `yaml:"column"`
	Categories []string `yaml:"categories"`
}

type OtherSection struct {
	Label  string   `yaml:"label"`
	Layout string   `yaml:"layout"`
	Header string   `yaml:"header"`
	Rows   []string `yaml:"rows"`
}

// Users is the users productivity view.
type Users struct {
	Name  string `yaml:"name"`
	Sheet string `yaml:"sheet"`
}

// Calendar is the calendar-of-events view.
type Calendar struct {
	Name  string `yaml:"name"`
	Sheet string `yaml:"sheet"`
}

// Output names the sinks of a run.
type Output struct {
	Dir            string `yaml:"dir"`
	WorkbookPrefix string `yaml:"workbook_prefix"`
	SQLitePath     string `yaml:"sqlite_path"`
	CSV            bool   `yaml:"csv"`
	CSVDir         string `yaml:"csv_dir"`
}

type Web struct {
	Addr     string        `yaml:"addr"`
	Debounce time.Duration `yaml:"debounce"`
}

// Remote is the file drop polled by the cron job.
type Remote struct {
	ListURL         string        `yaml:"list_url"`
	FunctionKeyEnv  string        `yaml:"function_key_env"`
	TokenURL        string        `yaml:"token_url"`
	ClientIDEnv     string        `yaml:"client_id_env"`
	ClientSecretEnv string        `yaml:"client_secret_env"`
	Scope           string        `yaml:"scope"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Table names reserved by the tabular store.
var reservedTables = []string{"runs", "schema_version"}

// Validate checks the structural preconditions of a run.
func (c *Config) Validate() error {
	var errs []error
	names := map[string]bool{}
	claim := func(name string) {
		switch {
		case name == "":
			errs = append(errs, errors.New("table name must not be empty"))
		case lo.Contains(reservedTables, name):
			errs = append(errs, fmt.Errorf("table name %q is reserved", name))
		case names[name]:
			errs = append(errs, fmt.Errorf("duplicate table name %q", name))
		}
		names[name] = true
	}

	layouts := map[string]bool{}
	for _, l := range c.Layouts {
		claim(l.Name)
		layouts[l.Name] = true
		if l.Sheet == "" {
			errs = append(errs, fmt.Errorf("layout %q: sheet is required", l.Name))
		}
		if len(lo.Compact(l.Markers)) == 0 {
			errs = append(errs, fmt.Errorf("layout %q: at least one category marker is required", l.Name))
		}
		if l.GrandTotal == "" {
			errs = append(errs, fmt.Errorf("layout %q: grand_total label is required", l.Name))
		}
		for _, s := range l.Secondary {
			if !lo.ContainsBy(c.Inputs.Extracts, func(e Extract) bool { return e.Name == s.Extract }) {
				errs = append(errs, fmt.Errorf("layout %q: column %q uses unknown extract %q", l.Name, s.Column, s.Extract))
			}
		}
	}
	claim(c.Executive.Name)
	claim(c.Users.Name)
	claim(c.Calendar.Name)

	ref := func(layout string) {
		if !layouts[layout] {
			errs = append(errs, fmt.Errorf("executive: unknown layout %q", layout))
		}
	}
	for _, o := range c.Executive.Organizations {
		ref(o.Layout)
	}
	if r := c.Executive.Resolution; r != nil {
		ref(r.Layout)
	}
	if o := c.Executive.Other; o != nil {
		ref(o.Layout)
	}
	if c.Web.Debounce < 0 {
		errs = append(errs, errors.New("web.debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// InputPath resolves file against the upload directory.
func (c *Config) InputPath(file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Inputs.UploadDir, file)
}

// Qualifier returns the QC suffix, defaulting to the dashboard one.
func (c *Config) Qualifier() string {
	if c.QCSuffix == "" {
		return dashboard.DefaultQCSuffix
	}
	return c.QCSuffix
}

// HeaderSentinel returns the layout header sentinel.
func (c *Config) HeaderSentinel() string {
	if c.Sentinel == "" {
		return dashboard.DefaultSentinel
	}
	return c.Sentinel
}

// Engine returns a dashboard engine configured from c.
func (c *Config) Engine() *dashboard.Engine {
	e := dashboard.NewEngine()
	e.Sentinel = c.HeaderSentinel()
	e.QCSuffix = c.Qualifier()
	if c.Overrides != nil {
		e.Overrides = lo.Map(c.Overrides, func(o Override, _ int) dashboard.Override {
			return dashboard.Override{Label: o.Label, Queue: o.Queue}
		})
	}
	return e
}

// LayoutSpec converts l for the dashboard engine.
func (l Layout) LayoutSpec() dashboard.LayoutSpec {
	grand := l.GrandTotal
	if grand == "" {
		grand = dashboard.DefaultGrandTotal
	}
	return dashboard.LayoutSpec{
		Name:  l.Name,
		Sheet: l.Sheet,
		Hierarchy: dashboard.Hierarchy{
			Markers:    l.Markers,
			GrandTotal: grand,
			Other:      dashboard.OtherBucket{Header: l.Other.Header, Members: l.Other.Members},
		},
		Secondary: lo.Map(l.Secondary, func(s SecondaryColumn, _ int) dashboard.SecondaryColumn {
			return dashboard.SecondaryColumn{Column: s.Column, Source: s.Extract, Inject: s.Inject}
		}),
	}
}

// ExecutiveSpec converts the executive section, with layouts resolved to table
// names.
func (e Executive) ExecutiveSpec() dashboard.ExecutiveSpec {
	out := dashboard.ExecutiveSpec{
		Name:  e.Name,
		Sheet: e.Sheet,
		Organizations: lo.Map(e.Organizations, func(o OrgSection, _ int) dashboard.OrgSection {
			return dashboard.OrgSection{Label: o.Label, Source: o.Layout, Categories: o.Categories}
		}),
	}
	if r := e.Resolution; r != nil {
		out.Resolution = &dashboard.ResolutionSection{Label: r.Label, Source: r.Layout, Column: r.Column, Categories: r.Categories}
	}
	if o := e.Other; o != nil {
		out.Other = &dashboard.OtherSection{Label: o.Label, Source: o.Layout, Header: o.Header, Rows: o.Rows}
	}
	return out
}
