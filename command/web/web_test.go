package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-centre/connectors/store"
	"command-centre/connectors/xlsx"
	"command-centre/domain/dashboard"
	"command-centre/domain/run"
	"command-centre/pipeline"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(context.Context, string) (*pipeline.Result, error) {
	r.calls.Add(1)
	return &pipeline.Result{}, nil
}

func newServer(t *testing.T) (*Server, *echo.Echo, *store.Store, *countingRunner) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := &countingRunner{}
	s := &Server{
		UploadDir: filepath.Join(dir, "uploads"),
		Runner:    runner,
		Store:     st,
		Debounce:  20 * time.Millisecond,
	}
	e := s.Echo(context.Background())
	t.Cleanup(s.Stop)
	return s, e, st, runner
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func uploadBody(t *testing.T, filename string, data []byte) string {
	t.Helper()
	b, err := json.Marshal(uploadRequest{Filename: filename, Content: base64.StdEncoding.EncodeToString(data)})
	require.NoError(t, err)
	return string(b)
}

func TestUploadWorkbook(t *testing.T) {
	s, e, _, _ := newServer(t)

	tbl := dashboard.NewTable("dump", "Data", "Queue", []string{"Document ID"})
	for _, q := range []string{"Q1", "Q2", "Q3", "Q4"} {
		tbl.AddRow(q).SetText("Document ID", "d-"+q)
	}
	src := filepath.Join(t.TempDir(), "dump.xlsx")
	require.NoError(t, xlsx.WriteWorkbook(src, []*dashboard.MetricTable{tbl}))
	data, err := os.ReadFile(src)
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/command_centre", uploadBody(t, `C:\drop\dump.xlsx`, data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "command_centre", out["api"])
	assert.Equal(t, "dump.xlsx", out["filename"])
	assert.EqualValues(t, 4, out["rows"])
	assert.EqualValues(t, 2, out["cols"])
	preview := out["preview"].([]any)
	require.Len(t, preview, 3)
	assert.Equal(t, "d-Q1", preview[0].(map[string]any)["Document ID"])

	assert.FileExists(t, filepath.Join(s.UploadDir, "dump.xlsx"))
}

func TestUploadCSV(t *testing.T) {
	_, e, _, _ := newServer(t)

	rec := do(e, http.MethodPost, "/api/command_centre", uploadBody(t, "mapping.csv", []byte("Doc_Type,Queue_Desc\nINV,Claims\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["rows"])
	assert.EqualValues(t, 2, out["cols"])
}

func TestUploadRejectsMissingContent(t *testing.T) {
	_, e, _, _ := newServer(t)

	rec := do(e, http.MethodPost, "/api/command_centre", `{"filename":"x.xlsx"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file content received", decode(t, rec)["message"])
}

func TestUploadBadContent(t *testing.T) {
	_, e, _, _ := newServer(t)

	rec := do(e, http.MethodPost, "/api/command_centre", `{"filename":"x.xlsx","content":"!!not base64!!"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(e, http.MethodPost, "/api/command_centre", uploadBody(t, "x.xlsx", []byte("not a workbook")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestScheduleCoalescesRequests(t *testing.T) {
	_, e, _, runner := newServer(t)

	for range 3 {
		rec := do(e, http.MethodPost, "/api/run_preprocessing", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "scheduled", decode(t, rec)["status"])
	}

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestReadTable(t *testing.T) {
	_, e, st, _ := newServer(t)

	rec := do(e, http.MethodGet, "/api/tables/gdc_gta", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tbl := dashboard.NewTable("gdc_gta", "GDC", dashboard.ColQueueName, []string{dashboard.ColPRO})
	tbl.AddRow("Q1").SetInt(dashboard.ColPRO, 7)
	require.NoError(t, st.Write(context.Background(), []*dashboard.MetricTable{tbl}))

	rec = do(e, http.MethodGet, "/api/tables/gdc_gta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"QueueName", "PRO_Queue"}, got.Columns)
	require.Len(t, got.Rows, 1)
	assert.EqualValues(t, 7, got.Rows[0]["PRO_Queue"])

	rec = do(e, http.MethodGet, "/api/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["gdc_gta"]`, rec.Body.String())
}

func TestLatestRun(t *testing.T) {
	_, e, st, _ := newServer(t)

	rec := do(e, http.MethodGet, "/api/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	now := time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)
	require.NoError(t, st.RecordRun(context.Background(), run.Run{
		ID: "r1", Trigger: "web", StartedAt: now, FinishedAt: now.Add(time.Second),
		Status: run.StatusPartial, Tables: []string{"gdc_gta"},
	}))

	rec = do(e, http.MethodGet, "/api/runs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got run.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, run.StatusPartial, got.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	_, e, _, _ := newServer(t)

	rec := do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
