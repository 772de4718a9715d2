// Package observability — metrics.go
//
// Prometheus metrics for the netheal healing pipeline.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only by default — no external exposure.
//
// Metric naming convention: netheal_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not
// the default global registry) to avoid collisions with other
// instrumented libraries in the same process.
//
// Cardinality control:
//   - event_type/severity/analyzer labels use the small fixed string
//     sets defined in internal/model.
//   - device hostname is NOT used as a label (unbounded cardinality).
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for netheal.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Telemetry ────────────────────────────────────────────────────

	// TelemetryEventsTotal counts ingested telemetry datagrams.
	// Labels: source (syslog, snmp)
	TelemetryEventsTotal *prometheus.CounterVec

	// TelemetryEventsDroppedTotal counts events dropped due to queue
	// overflow or rate limiting.
	// Labels: reason (queue_full, rate_limited)
	TelemetryEventsDroppedTotal *prometheus.CounterVec

	// TelemetryQueueDepth is the current in-memory event queue depth.
	TelemetryQueueDepth prometheus.Gauge

	// TelemetryAlertsGeneratedTotal counts alerts emitted from raw events.
	TelemetryAlertsGeneratedTotal prometheus.Counter

	// TelemetryNormalizationErrorsTotal counts unparseable datagrams.
	TelemetryNormalizationErrorsTotal prometheus.Counter

	// ─── Correlation ──────────────────────────────────────────────────

	// CorrelationIncidentsTotal counts incidents created or joined.
	// Labels: outcome (created, joined, fallback_attached)
	CorrelationIncidentsTotal *prometheus.CounterVec

	// CorrelationConfidenceHistogram records computed confidence scores.
	CorrelationConfidenceHistogram prometheus.Histogram

	// CorrelationErrorsTotal counts correlation rule evaluation errors.
	CorrelationErrorsTotal prometheus.Counter

	// ─── RCA ──────────────────────────────────────────────────────────

	// RCAAnalysesTotal counts RCA analysis runs.
	RCAAnalysesTotal prometheus.Counter

	// RCAConfidenceHistogram records the top-ranked cause's confidence.
	RCAConfidenceHistogram prometheus.Histogram

	// RCATimeoutsTotal counts analyses abandoned at the timeout.
	RCATimeoutsTotal prometheus.Counter

	// ─── Remediation ──────────────────────────────────────────────────

	// RemediationActionsTotal counts actions by terminal status.
	// Labels: status (completed, failed, rolled_back, rollback_failed)
	RemediationActionsTotal *prometheus.CounterVec

	// RemediationSafetyCheckFailuresTotal counts safety gate rejections.
	// Labels: reason
	RemediationSafetyCheckFailuresTotal *prometheus.CounterVec

	// RemediationActiveActions is the number of actions currently
	// executing (holding one of the engine's concurrency slots).
	RemediationActiveActions prometheus.Gauge

	// RemediationRetriesTotal counts action retry attempts.
	RemediationRetriesTotal prometheus.Counter

	// ─── Orchestrator ─────────────────────────────────────────────────

	// OrchestratorHealingTimeSeconds records incident-open-to-resolved
	// latency.
	OrchestratorHealingTimeSeconds prometheus.Histogram

	// OrchestratorHealingTimeEMASeconds is the rolling average healing
	// time (spec §4.5).
	OrchestratorHealingTimeEMASeconds prometheus.Gauge

	// OrchestratorFailedHealingsTotal counts pipeline entries that ended
	// in the failed stage (action failure, RCA timeout, no action, or
	// incident_timeout).
	OrchestratorFailedHealingsTotal prometheus.Counter

	// OrchestratorActivePipelines is the number of tracked pipeline
	// entries, including terminal ones not yet evicted.
	OrchestratorActivePipelines prometheus.Gauge

	// ─── Storage ──────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// StorageAuditEntries is the current number of audit trail entries.
	StorageAuditEntries prometheus.Gauge

	// ─── Process ──────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since process start.
	UptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers all netheal Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		TelemetryEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "telemetry",
			Name:      "events_total",
			Help:      "Total telemetry datagrams ingested, by source.",
		}, []string{"source"}),

		TelemetryEventsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "telemetry",
			Name:      "events_dropped_total",
			Help:      "Total telemetry events dropped, by reason.",
		}, []string{"reason"}),

		TelemetryQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "telemetry",
			Name:      "queue_depth",
			Help:      "Current depth of the in-memory telemetry event queue.",
		}),

		TelemetryAlertsGeneratedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "telemetry",
			Name:      "alerts_generated_total",
			Help:      "Total alerts generated from raw telemetry events.",
		}),

		TelemetryNormalizationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "telemetry",
			Name:      "normalization_errors_total",
			Help:      "Total telemetry datagrams that failed to parse.",
		}),

		CorrelationIncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "correlation",
			Name:      "incidents_total",
			Help:      "Total incidents created or joined, by outcome.",
		}, []string{"outcome"}),

		CorrelationConfidenceHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netheal",
			Subsystem: "correlation",
			Name:      "confidence",
			Help:      "Distribution of correlation confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		CorrelationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "correlation",
			Name:      "errors_total",
			Help:      "Total correlation rule evaluation errors.",
		}),

		RCAAnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "rca",
			Name:      "analyses_total",
			Help:      "Total RCA analysis runs performed.",
		}),

		RCAConfidenceHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netheal",
			Subsystem: "rca",
			Name:      "top_confidence",
			Help:      "Distribution of the top-ranked root cause's confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		RCATimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "rca",
			Name:      "timeouts_total",
			Help:      "Total RCA analyses abandoned at the analysis timeout.",
		}),

		RemediationActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "remediation",
			Name:      "actions_total",
			Help:      "Total remediation actions, by terminal status.",
		}, []string{"status"}),

		RemediationSafetyCheckFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "remediation",
			Name:      "safety_check_failures_total",
			Help:      "Total safety check rejections, by reason.",
		}, []string{"reason"}),

		RemediationActiveActions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "remediation",
			Name:      "active_actions",
			Help:      "Current number of remediation actions executing.",
		}),

		RemediationRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "remediation",
			Name:      "retries_total",
			Help:      "Total action retry attempts.",
		}),

		OrchestratorHealingTimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netheal",
			Subsystem: "orchestrator",
			Name:      "healing_time_seconds",
			Help:      "Incident open-to-resolved latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),

		OrchestratorHealingTimeEMASeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "orchestrator",
			Name:      "healing_time_ema_seconds",
			Help:      "Exponentially weighted moving average of healing time.",
		}),

		OrchestratorFailedHealingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netheal",
			Subsystem: "orchestrator",
			Name:      "failed_healings_total",
			Help:      "Total pipeline entries that ended in the failed stage.",
		}),

		OrchestratorActivePipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "orchestrator",
			Name:      "active_pipelines",
			Help:      "Current number of tracked incident pipeline entries.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netheal",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageAuditEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "storage",
			Name:      "audit_entries",
			Help:      "Current number of audit trail entries in the store.",
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netheal",
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the process started.",
		}),
	}

	reg.MustRegister(
		m.TelemetryEventsTotal,
		m.TelemetryEventsDroppedTotal,
		m.TelemetryQueueDepth,
		m.TelemetryAlertsGeneratedTotal,
		m.TelemetryNormalizationErrorsTotal,
		m.CorrelationIncidentsTotal,
		m.CorrelationConfidenceHistogram,
		m.CorrelationErrorsTotal,
		m.RCAAnalysesTotal,
		m.RCAConfidenceHistogram,
		m.RCATimeoutsTotal,
		m.RemediationActionsTotal,
		m.RemediationSafetyCheckFailuresTotal,
		m.RemediationActiveActions,
		m.RemediationRetriesTotal,
		m.OrchestratorHealingTimeSeconds,
		m.OrchestratorHealingTimeEMASeconds,
		m.OrchestratorFailedHealingsTotal,
		m.OrchestratorActivePipelines,
		m.StorageWriteLatency,
		m.StorageAuditEntries,
		m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr.
// Blocks until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
