// Package config provides configuration loading, validation, and
// hot-reload for the healing pipeline process.
//
// Configuration file: /etc/netheal/config.yaml (default).
// Schema version: 1.
//
// Hot-reload:
//   - The process listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml.
//   - Apply non-destructive changes only (thresholds, weights, rate
//     limits, log level).
//   - Destructive changes (listener ports, storage path, operator
//     socket path) require a restart.
//   - If the new config is invalid, the old config remains active and
//     an error is logged. The process does NOT crash on invalid
//     hot-reload config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (confidence thresholds in [0,1], weights
//     >= 0, ports in range).
//   - Invalid config on startup: process refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the build via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for the healing pipeline.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1".
	SchemaVersion string `yaml:"schema_version"`

	// NodeID identifies this process instance in logs and metrics.
	// Default: hostname.
	NodeID string `yaml:"node_id"`

	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Correlation   CorrelationConfig   `yaml:"correlation"`
	RCA           RCAConfig           `yaml:"rca"`
	Remediation   RemediationConfig   `yaml:"remediation"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Operator      OperatorConfig      `yaml:"operator"`
}

// TelemetryConfig configures the UDP syslog/SNMP-trap collector.
type TelemetryConfig struct {
	// SyslogPort is the UDP port for RFC3164 syslog. Default: 514,
	// falls back to 1514 if the privileged port cannot be bound.
	SyslogPort int `yaml:"syslog_port"`

	// SNMPPort is the UDP port for SNMP traps. Default: 162, falls
	// back to 1162.
	SNMPPort int `yaml:"snmp_port"`

	// Sources restricts which listeners are active.
	// Default: ["snmp", "syslog"].
	Sources []string `yaml:"sources"`

	// MaxEventsPerSecond caps accepted datagrams per second, shared
	// across all sources. Datagrams
	// beyond this are dropped silently. Default: 1000.
	MaxEventsPerSecond int `yaml:"max_events_per_second"`

	// BufferSize is the in-memory event queue depth. On overflow the
	// oldest event is discarded. Default: 10000.
	BufferSize int `yaml:"buffer_size"`

	// CorrelationWindow is the dedup window for repeated (device,type)
	// events at ingestion time. Default: 30s.
	CorrelationWindow time.Duration `yaml:"correlation_window"`
}

// CorrelationConfig configures the alert correlation engine.
type CorrelationConfig struct {
	// DedupWindow is the suppression window for duplicate
	// (device,type) alerts before correlation runs. Default: 60s.
	DedupWindow time.Duration `yaml:"dedup_window"`

	// BatchSize is how many queued alerts are drained per tick.
	// Default: 10.
	BatchSize int `yaml:"batch_size"`

	// TickInterval is how often the batch drains. Default: 5s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MinConfidence is the minimum correlation confidence required to
	// join/create an incident. Default: 0.6.
	MinConfidence float64 `yaml:"min_confidence"`

	// MaxCorrelationDistance bounds topology-aware device scope
	// expansion. Default: 3.
	MaxCorrelationDistance int `yaml:"max_correlation_distance"`

	// MaxCoSiteDevices bounds how many co-site devices are added to
	// scope. Default: 10.
	MaxCoSiteDevices int `yaml:"max_co_site_devices"`

	// FallbackWindow is the no-rule-matched same-device attach window.
	// Default: 5m.
	FallbackWindow time.Duration `yaml:"fallback_window"`
}

// RCAConfig configures the root-cause analysis engine.
type RCAConfig struct {
	// MaxRootCauses caps the number of ranked causes returned.
	// Default: 5.
	MaxRootCauses int `yaml:"max_root_causes"`

	// MinConfidenceThreshold drops causes below this confidence.
	// Default: 0.5.
	MinConfidenceThreshold float64 `yaml:"min_confidence_threshold"`

	// AnalysisTimeout bounds a single analysis run. Default: 30s.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`

	// TickInterval is how often the analysis queue is drained.
	// Default: 10s.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// AutomationMode controls remediation concurrency.
type AutomationMode string

const (
	ModeConservative AutomationMode = "conservative"
	ModeModerate      AutomationMode = "moderate"
	ModeAggressive    AutomationMode = "aggressive"
)

// RemediationConfig configures the remediation engine.
type RemediationConfig struct {
	// Mode selects max concurrent actions: conservative=2, moderate=5,
	// aggressive=10. Default: moderate.
	Mode AutomationMode `yaml:"mode"`

	// AutoApprovalEnabled allows low-risk auto-approvable templates to
	// skip the pending_approval gate. Default: true.
	AutoApprovalEnabled bool `yaml:"auto_approval_enabled"`

	// CooldownPeriod is the per-device quiet period after any terminal
	// action state. Default: 300s.
	CooldownPeriod time.Duration `yaml:"cooldown_period"`

	// MaxRetries bounds execution-failure retries. Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the requeue delay after a retryable failure.
	// Default: 60s.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ExecutionTimeout bounds a single action's total execution time.
	// Default: 300s.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`

	// RollbackEnabled gates automatic rollback on verification failure.
	// Default: true.
	RollbackEnabled bool `yaml:"rollback_enabled"`

	// DryRun prevents any executor invocation; safety checks still run
	// and fail the action at the "not_dry_run" check. Default: false.
	DryRun bool `yaml:"dry_run"`
}

// MaxConcurrentActions returns the concurrency cap for the configured mode.
func (c RemediationConfig) MaxConcurrentActions() int {
	switch c.Mode {
	case ModeConservative:
		return 2
	case ModeAggressive:
		return 10
	default:
		return 5
	}
}

// OrchestratorConfig configures the pipeline-state tracker.
type OrchestratorConfig struct {
	// IncidentTimeout forcibly fails a pipeline entry that hasn't
	// completed within this duration. Default: 3600s.
	IncidentTimeout time.Duration `yaml:"incident_timeout"`

	// AuditRetention is how long a completed/failed pipeline entry is
	// kept in memory for audit before eviction. Default: 5m.
	AuditRetention time.Duration `yaml:"audit_retention"`

	// HealingTimeEMAAlpha is the smoothing factor for the rolling
	// average healing time. Default: 0.1.
	HealingTimeEMAAlpha float64 `yaml:"healing_time_ema_alpha"`
}

// StorageConfig configures the persistent Store.
type StorageConfig struct {
	// Backend selects "bolt" or "memory". Default: bolt.
	Backend string `yaml:"backend"`

	// DBPath is the absolute path to the BoltDB file.
	// Default: /var/lib/netheal/netheal.db.
	DBPath string `yaml:"db_path"`

	// RetentionDays bounds audit-trail and terminal-action retention.
	// Default: 30.
	RetentionDays int `yaml:"retention_days"`
}

// ObservabilityConfig configures metrics and logging.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat controls log output (json, console). Default: json.
	LogFormat string `yaml:"log_format"`
}

// OperatorConfig configures the operator override Unix socket.
type OperatorConfig struct {
	// SocketPath is the Unix domain socket path. Default:
	// /run/netheal/operator.sock.
	SocketPath string `yaml:"socket_path"`

	// Enabled controls whether the operator socket is active.
	Enabled bool `yaml:"enabled"`
}

// DefaultDBPath mirrors the storage package constant for config defaults.
const DefaultDBPath = "/var/lib/netheal/netheal.db"

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Telemetry: TelemetryConfig{
			SyslogPort:         514,
			SNMPPort:           162,
			Sources:            []string{"snmp", "syslog"},
			MaxEventsPerSecond: 1000,
			BufferSize:         10000,
			CorrelationWindow:  30 * time.Second,
		},
		Correlation: CorrelationConfig{
			DedupWindow:            60 * time.Second,
			BatchSize:              10,
			TickInterval:           5 * time.Second,
			MinConfidence:          0.6,
			MaxCorrelationDistance: 3,
			MaxCoSiteDevices:       10,
			FallbackWindow:         5 * time.Minute,
		},
		RCA: RCAConfig{
			MaxRootCauses:          5,
			MinConfidenceThreshold: 0.5,
			AnalysisTimeout:        30 * time.Second,
			TickInterval:           10 * time.Second,
		},
		Remediation: RemediationConfig{
			Mode:                ModeModerate,
			AutoApprovalEnabled: true,
			CooldownPeriod:      300 * time.Second,
			MaxRetries:          3,
			RetryDelay:          60 * time.Second,
			ExecutionTimeout:    300 * time.Second,
			RollbackEnabled:     true,
		},
		Orchestrator: OrchestratorConfig{
			IncidentTimeout:     3600 * time.Second,
			AuditRetention:      5 * time.Minute,
			HealingTimeEMAAlpha: 0.1,
		},
		Storage: StorageConfig{
			Backend:       "bolt",
			DBPath:        DefaultDBPath,
			RetentionDays: 30,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Operator: OperatorConfig{
			Enabled:    true,
			SocketPath: "/run/netheal/operator.sock",
		},
	}
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness, returning a
// descriptive error listing every violation found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}
	if cfg.Telemetry.SyslogPort <= 0 || cfg.Telemetry.SyslogPort > 65535 {
		errs = append(errs, fmt.Sprintf("telemetry.syslog_port must be in [1,65535], got %d", cfg.Telemetry.SyslogPort))
	}
	if cfg.Telemetry.SNMPPort <= 0 || cfg.Telemetry.SNMPPort > 65535 {
		errs = append(errs, fmt.Sprintf("telemetry.snmp_port must be in [1,65535], got %d", cfg.Telemetry.SNMPPort))
	}
	if cfg.Telemetry.MaxEventsPerSecond < 1 {
		errs = append(errs, "telemetry.max_events_per_second must be >= 1")
	}
	if cfg.Telemetry.BufferSize < 1 {
		errs = append(errs, "telemetry.buffer_size must be >= 1")
	}
	if cfg.Correlation.MinConfidence < 0.0 || cfg.Correlation.MinConfidence > 1.0 {
		errs = append(errs, fmt.Sprintf("correlation.min_confidence must be in [0,1], got %f", cfg.Correlation.MinConfidence))
	}
	if cfg.Correlation.BatchSize < 1 {
		errs = append(errs, "correlation.batch_size must be >= 1")
	}
	if cfg.RCA.MaxRootCauses < 1 {
		errs = append(errs, "rca.max_root_causes must be >= 1")
	}
	if cfg.RCA.MinConfidenceThreshold < 0.0 || cfg.RCA.MinConfidenceThreshold > 1.0 {
		errs = append(errs, fmt.Sprintf("rca.min_confidence_threshold must be in [0,1], got %f", cfg.RCA.MinConfidenceThreshold))
	}
	switch cfg.Remediation.Mode {
	case ModeConservative, ModeModerate, ModeAggressive:
	default:
		errs = append(errs, fmt.Sprintf("remediation.mode must be one of conservative|moderate|aggressive, got %q", cfg.Remediation.Mode))
	}
	if cfg.Remediation.MaxRetries < 0 {
		errs = append(errs, "remediation.max_retries must be >= 0")
	}
	if cfg.Remediation.CooldownPeriod < 0 {
		errs = append(errs, "remediation.cooldown_period must be >= 0")
	}
	if cfg.Orchestrator.HealingTimeEMAAlpha < 0.0 || cfg.Orchestrator.HealingTimeEMAAlpha > 1.0 {
		errs = append(errs, fmt.Sprintf("orchestrator.healing_time_ema_alpha must be in [0,1], got %f", cfg.Orchestrator.HealingTimeEMAAlpha))
	}
	if cfg.Orchestrator.IncidentTimeout <= 0 {
		errs = append(errs, "orchestrator.incident_timeout must be > 0")
	}
	switch cfg.Storage.Backend {
	case "bolt", "memory":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be bolt|memory, got %q", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "bolt" && cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty when backend=bolt")
	}
	if cfg.Storage.RetentionDays < 1 {
		errs = append(errs, "storage.retention_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}

// ApplyHotReload copies the hot-reloadable fields from src into dst,
// leaving destructive fields (ports, paths) untouched. Both must be
// non-nil. Matches the "non-destructive changes only" contract above.
func ApplyHotReload(dst *Config, src *Config) {
	dst.Correlation.MinConfidence = src.Correlation.MinConfidence
	dst.Correlation.MaxCorrelationDistance = src.Correlation.MaxCorrelationDistance
	dst.RCA.MinConfidenceThreshold = src.RCA.MinConfidenceThreshold
	dst.RCA.MaxRootCauses = src.RCA.MaxRootCauses
	dst.Remediation.Mode = src.Remediation.Mode
	dst.Remediation.AutoApprovalEnabled = src.Remediation.AutoApprovalEnabled
	dst.Remediation.MaxRetries = src.Remediation.MaxRetries
	dst.Remediation.RetryDelay = src.Remediation.RetryDelay
	dst.Orchestrator.HealingTimeEMAAlpha = src.Orchestrator.HealingTimeEMAAlpha
	dst.Telemetry.MaxEventsPerSecond = src.Telemetry.MaxEventsPerSecond
	dst.Observability.LogLevel = src.Observability.LogLevel
}
