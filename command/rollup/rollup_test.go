package rollup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-centre/connectors/store"
	"command-centre/connectors/xlsx"
	"command-centre/domain/config"
	"command-centre/domain/dashboard"
	"command-centre/domain/run"
)

func layoutTable(sheet, marker string, queues ...string) *dashboard.MetricTable {
	t := dashboard.NewTable(sheet, sheet, "", []string{dashboard.ColPRO, dashboard.ColQC})
	t.AddRow(marker)
	for _, q := range queues {
		t.AddRow(q)
	}
	t.AddRow(dashboard.DefaultGrandTotal)
	return t
}

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"dump.csv":     "Queue,Document ID,Lock Status\nQ1,d1,Y\nQ1,d2,\nQ1QC,d1,\nQ2,d3,\n",
		"mapping.csv":  "Doc_Type,Queue_Desc\nINV,Q1\n",
		"reso.csv":     "Doc Type,Doc ID\nINV,1\nINV,2\n",
		"calendar.csv": "Event,Start Day (YYYY-MM-DD),Start Time (HH:MM),End Day (YYYY-MM-DD),End Time (HH:MM)\nClose,2024-03-29,17:00,2024-03-29,18:00\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	require.NoError(t, xlsx.WriteWorkbook(filepath.Join(dir, "layout.xlsx"), []*dashboard.MetricTable{
		layoutTable("GDC", "catA - Total", "Q1", "Q2"),
	}))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		LockFile: filepath.Join(dir, "run.lock"),
		Inputs: config.Inputs{
			UploadDir: filepath.Join(dir, "uploads"),
			Snapshot: config.Snapshot{
				FileRef:        config.FileRef{File: "dump.csv"},
				QueueColumn:    "Queue",
				DocumentColumn: "Document ID",
				LockColumn:     "Lock Status",
			},
			Layout: config.FileRef{File: "layout.xlsx"},
			Mapping: config.Mapping{
				FileRef:       config.FileRef{File: "mapping.csv"},
				DocTypeColumn: "Doc_Type",
				QueueColumn:   "Queue_Desc",
			},
			Extracts: []config.Extract{{
				Name:           "reso",
				FileRef:        config.FileRef{File: "reso.csv"},
				DocTypeColumn:  "Doc Type",
				DocumentColumn: "Doc ID",
			}},
			Calendar: config.FileRef{File: "calendar.csv"},
		},
		Layouts: []config.Layout{{
			Name:       "gdc_gta",
			Sheet:      "GDC",
			Markers:    []string{"catA - Total"},
			GrandTotal: dashboard.DefaultGrandTotal,
			Secondary:  []config.SecondaryColumn{{Column: dashboard.ColReso, Extract: "reso", Inject: true}},
		}},
		Overrides: []config.Override{},
		Executive: config.Executive{
			Name:          "executive_view",
			Sheet:         "Executive View",
			Organizations: []config.OrgSection{{Label: "GDC", Layout: "gdc_gta", Categories: []string{"catA - Total"}}},
		},
		Calendar: config.Calendar{Name: "calendar_of_events", Sheet: "Calendar of Events"},
		Output: config.Output{
			Dir:            filepath.Join(dir, "out"),
			WorkbookPrefix: "Processed_Dashboard_Output",
			SQLitePath:     filepath.Join(dir, "data", "db.sqlite"),
			CSV:            true,
			CSVDir:         filepath.Join(dir, "csv"),
		},
	}
}

func TestRunWritesEverySink(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	require.NoError(t, os.MkdirAll(cfg.Inputs.UploadDir, 0o755))
	writeInputs(t, cfg.Inputs.UploadDir)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, "cli", &out))
	assert.Contains(t, out.String(), "gdc_gta")
	assert.Contains(t, out.String(), "calendar_of_events")

	books, err := filepath.Glob(filepath.Join(cfg.Output.Dir, "Processed_Dashboard_Output_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.FileExists(t, filepath.Join(cfg.Output.CSVDir, "executive_view.csv"))

	st, err := store.Open(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	gdc, err := st.ReadTable(ctx, "gdc_gta")
	require.NoError(t, err)
	require.NotEmpty(t, gdc.Rows)
	assert.Equal(t, "catA - Total", gdc.Rows[0]["QueueName"])
	assert.EqualValues(t, 3, gdc.Rows[0]["PRO_Queue"])
	assert.EqualValues(t, 2, gdc.Rows[0]["Reso_Queue"])

	r, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cli", r.Trigger)
	assert.Equal(t, run.StatusSucceeded, r.Status)
	assert.Equal(t, []string{"gdc_gta", "executive_view", "calendar_of_events"}, r.Tables)
}

func TestRunMissingSnapshotFails(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	err := Run(context.Background(), cfg, "cli", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operational snapshot")

	st, err := store.Open(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer st.Close()
	r, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.StatusFailed, r.Status)
	assert.Empty(t, r.Tables)
}

func TestPrint(t *testing.T) {
	tbl := dashboard.NewTable("demo", "Demo", dashboard.ColQueueName, []string{dashboard.ColPRO})
	tbl.AddRow("Q1").SetInt(dashboard.ColPRO, 4)

	var buf bytes.Buffer
	Print(&buf, tbl)
	assert.Contains(t, buf.String(), "demo")
	assert.Contains(t, buf.String(), "Q1")
	assert.Contains(t, buf.String(), "4")
}
