package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type capturedPush struct {
	method string
	path   string
	body   string
}

func newGateway(t *testing.T, status int) (*httptest.Server, *capturedPush) {
	t.Helper()
	captured := &capturedPush{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestPushRun_Success(t *testing.T) {
	srv, captured := newGateway(t, http.StatusOK)

	svc := New(testLogger())
	err := svc.PushRun(context.Background(), models.MetricsConfig{PushgatewayURL: srv.URL, Job: "mysql_dr_dump"}, RunOutcome{
		Host:      "db.local",
		Success:   true,
		Finished:  time.Unix(1700000000, 0),
		Duration:  90 * time.Second,
		SizeBytes: 2048,
		Stages: []models.StageTiming{
			{Stage: "dump", Duration: time.Minute},
			{Stage: "upload", Duration: 30 * time.Second},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/metrics/job/mysql_dr_dump/host/db.local", captured.path)
	assert.Contains(t, captured.body, "mysql_dr_dump_last_success_timestamp_seconds")
	assert.Contains(t, captured.body, "mysql_dr_dump_artifact_size_bytes")
	assert.Contains(t, captured.body, "mysql_dr_dump_stage_duration_seconds")
	assert.Contains(t, captured.body, "mysql_dr_dump_failed_stage")
}

func TestPushRun_Failure(t *testing.T) {
	srv, captured := newGateway(t, http.StatusOK)

	svc := New(testLogger())
	err := svc.PushRun(context.Background(), models.MetricsConfig{PushgatewayURL: srv.URL, Job: "mysql_dr_dump"}, RunOutcome{
		Host:        "db.local",
		FailedStage: "check_databases",
		Finished:    time.Now(),
	})

	require.NoError(t, err)
	assert.Contains(t, captured.body, "mysql_dr_dump_failed_stage")
	assert.Contains(t, captured.body, "check_databases")
	assert.NotContains(t, captured.body, "mysql_dr_dump_last_success_timestamp_seconds")
}

func TestPushRun_GatewayError(t *testing.T) {
	srv, _ := newGateway(t, http.StatusInternalServerError)

	svc := NewWithClient(testLogger(), srv.Client())
	err := svc.PushRun(context.Background(), models.MetricsConfig{PushgatewayURL: srv.URL, Job: "j"}, RunOutcome{Host: "h", Success: true})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushing metrics")
}

// gaugeSeries returns the values of the named gauge family keyed by stage label.
func gaugeSeries(t *testing.T, outcome RunOutcome, name string) map[string]float64 {
	t.Helper()
	families, err := runRegistry(outcome).Gather()
	require.NoError(t, err)

	series := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			stage := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" {
					stage = l.GetValue()
				}
			}
			series[stage] = m.GetGauge().GetValue()
		}
	}
	return series
}

func TestRunRegistry_SuccessClearsFailedStage(t *testing.T) {
	series := gaugeSeries(t, RunOutcome{Host: "db.local", Success: true, Finished: time.Now()}, "mysql_dr_dump_failed_stage")

	assert.Equal(t, map[string]float64{"": 0}, series)
}

func TestRunRegistry_FailureMarksStage(t *testing.T) {
	outcome := RunOutcome{Host: "db.local", FailedStage: "upload", Finished: time.Now()}

	assert.Equal(t, map[string]float64{"upload": 1}, gaugeSeries(t, outcome, "mysql_dr_dump_failed_stage"))
	assert.Equal(t, map[string]float64{"": 0}, gaugeSeries(t, outcome, "mysql_dr_dump_last_run_success"))
	assert.Empty(t, gaugeSeries(t, outcome, "mysql_dr_dump_artifact_size_bytes"))
}
