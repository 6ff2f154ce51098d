// Package metrics pushes dump run metrics to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

// RunOutcome summarizes one dump run.
type RunOutcome struct {
	Host        string
	Success     bool
	FailedStage string
	Finished    time.Time
	Duration    time.Duration
	SizeBytes   int64
	Stages      []models.StageTiming
}

// Service defines the interface for metrics publishing.
type Service interface {
	PushRun(ctx context.Context, cfg models.MetricsConfig, outcome RunOutcome) error
}

// Impl implements the Service interface.
type Impl struct {
	httpClient push.HTTPDoer
	logger     zerolog.Logger
}

// New creates a new metrics service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// NewWithClient creates a new metrics service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient push.HTTPDoer) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
	}
}

// PushRun publishes the outcome under the configured job, grouped by host.
// Metrics are added rather than replaced so the last success timestamp
// survives failed runs.
func (s *Impl) PushRun(ctx context.Context, cfg models.MetricsConfig, outcome RunOutcome) error {
	registry := runRegistry(outcome)

	pusher := push.New(cfg.PushgatewayURL, cfg.Job).
		Gatherer(registry).
		Grouping("host", outcome.Host).
		Client(s.httpClient)

	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", cfg.PushgatewayURL, err)
	}

	s.logger.Debug().
		Str("pushgateway", cfg.PushgatewayURL).
		Str("job", cfg.Job).
		Msg("metrics pushed")
	return nil
}

// runRegistry builds the metrics of one run. The failed stage gauge is part
// of every push: an added family replaces all of its series on the gateway,
// so a success clears the series left by an earlier failure.
func runRegistry(outcome RunOutcome) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_last_run_timestamp_seconds",
		Help: "Unix time the last dump run finished",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_last_run_success",
		Help: "Whether the last dump run succeeded (1) or failed (0)",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_last_run_duration_seconds",
		Help: "Duration of the last dump run in seconds",
	})
	stageDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_stage_duration_seconds",
		Help: "Duration of each completed stage of the last dump run",
	}, []string{"stage"})
	failed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_failed_stage",
		Help: "Stage at which the last dump run stopped (1), or an empty stage (0) after a success",
	}, []string{"stage"})
	registry.MustRegister(lastRun, success, duration, stageDuration, failed)

	lastRun.Set(float64(outcome.Finished.Unix()))
	duration.Set(outcome.Duration.Seconds())
	for _, st := range outcome.Stages {
		stageDuration.WithLabelValues(st.Stage).Set(st.Duration.Seconds())
	}

	if !outcome.Success {
		failed.WithLabelValues(outcome.FailedStage).Set(1)
		return registry
	}

	success.Set(1)
	failed.WithLabelValues("").Set(0)

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_last_success_timestamp_seconds",
		Help: "Unix time of the last successful dump run",
	})
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysql_dr_dump_artifact_size_bytes",
		Help: "Size of the last uploaded dump artifact",
	})
	registry.MustRegister(lastSuccess, size)
	lastSuccess.Set(float64(outcome.Finished.Unix()))
	size.Set(float64(outcome.SizeBytes))

	return registry
}
