package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/ratelimit"
	"github.com/sanketsnayak/netheal/internal/store"
)

// alertWorthy is the set of event types that always generate an Alert
// regardless of severity (spec §4.1). device_unreachable and
// authentication_failure aren't produced by the classification table
// in syslog.go today, but are kept here since the predicate is spec'd
// against the event_type, not the parser that happens to emit it.
var alertWorthy = map[string]bool{
	"interface_down":         true,
	"bgp_peer_down":          true,
	"high_cpu":               true,
	"high_memory":            true,
	"device_unreachable":     true,
	"authentication_failure": true,
}

// Collector runs the UDP syslog/SNMP listeners and turns classified
// events into Alerts.
type Collector struct {
	cfg     config.TelemetryConfig
	store   store.Store
	metrics *observability.Metrics
	log     *zap.Logger
	bus     *events.Bus

	queue   *Queue
	limiter *ratelimit.Bucket
}

// New creates a Collector. Call ListenAndServe to start it.
func New(cfg config.TelemetryConfig, st store.Store, m *observability.Metrics, bus *events.Bus, log *zap.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		store:   st,
		metrics: m,
		log:     log,
		bus:     bus,
		queue:   NewQueue(cfg.BufferSize),
		limiter: ratelimit.New(cfg.MaxEventsPerSecond, time.Second),
	}
}

// sourceEnabled reports whether src is in cfg.Sources.
func (c *Collector) sourceEnabled(src string) bool {
	for _, s := range c.cfg.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// ListenAndServe opens the configured UDP listeners and blocks
// consuming the event queue until ctx is cancelled.
func (c *Collector) ListenAndServe(ctx context.Context) error {
	defer c.limiter.Close()

	if c.sourceEnabled("syslog") {
		conn, port, err := listenUDPWithFallback(c.cfg.SyslogPort, 1514)
		if err != nil {
			return fmt.Errorf("telemetry: syslog listen: %w", err)
		}
		c.log.Info("syslog listener started", zap.Int("port", port))
		go c.readLoop(ctx, conn, "syslog")
	}

	if c.sourceEnabled("snmp") {
		conn, port, err := listenUDPWithFallback(c.cfg.SNMPPort, 1162)
		if err != nil {
			return fmt.Errorf("telemetry: snmp listen: %w", err)
		}
		c.log.Info("snmp listener started", zap.Int("port", port))
		go c.readLoop(ctx, conn, "snmp")
	}

	c.consumeLoop(ctx)
	return nil
}

// listenUDPWithFallback binds to primary, falling back to alt if the
// privileged primary port cannot be bound (e.g. running unprivileged).
func listenUDPWithFallback(primary, alt int) (*net.UDPConn, int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: primary})
	if err == nil {
		return conn, primary, nil
	}
	conn, err2 := net.ListenUDP("udp", &net.UDPAddr{Port: alt})
	if err2 != nil {
		return nil, 0, fmt.Errorf("bind %d failed (%v), fallback %d failed (%w)", primary, err, alt, err2)
	}
	return conn, alt, nil
}

// readLoop reads datagrams off conn and pushes them to the bounded
// queue. Must never block on downstream processing (spec §5).
func (c *Collector) readLoop(ctx context.Context, conn *net.UDPConn, source string) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 4096)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		if !c.limiter.Allow() {
			c.metrics.TelemetryEventsDroppedTotal.WithLabelValues("rate_limited").Inc()
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		host := ""
		if addr != nil {
			host = addr.IP.String()
		}

		if c.queue.Push(RawDatagram{Source: source, SourceAddr: host, Payload: payload}) {
			c.metrics.TelemetryEventsDroppedTotal.WithLabelValues("queue_full").Inc()
		}
		c.metrics.TelemetryQueueDepth.Set(float64(c.queue.Depth()))
	}
}

// consumeLoop drains the queue and normalizes each datagram into an
// Alert (or a dedup bump of an existing one).
func (c *Collector) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.queue.Notify():
			for {
				d, ok := c.queue.Pop()
				if !ok {
					break
				}
				c.process(d)
			}
		}
	}
}

// process normalizes one datagram end to end: parse, enrich, dedup,
// alert-generation decision, persist, publish.
func (c *Collector) process(d RawDatagram) {
	now := time.Now().UTC()

	var pe ParsedEvent
	switch d.Source {
	case "snmp":
		pe = parseSNMPTrap(d.SourceAddr, d.Payload, now)
	default:
		pe = parseSyslog(d.SourceAddr, d.Payload, now)
	}

	c.metrics.TelemetryEventsTotal.WithLabelValues(d.Source).Inc()
	if pe.ParseError {
		c.metrics.TelemetryNormalizationErrorsTotal.Inc()
	}

	device := c.resolveDevice(pe)

	if !c.shouldAlert(pe) {
		return
	}

	if existing, err := c.store.FindOpenAlert(device, pe.EventType, now, c.cfg.CorrelationWindow); err != nil {
		c.log.Warn("dedup lookup failed", zap.Error(err))
	} else if existing != nil {
		existing.OccurrenceCount++
		existing.LastOccurrence = now
		if err := c.store.PutAlert(*existing); err != nil {
			c.log.Warn("failed to update deduped alert", zap.String("alert_id", existing.AlertID), zap.Error(err))
		}
		return
	}

	alert := model.Alert{
		AlertID:         model.NewAlertID(now),
		Device:          device,
		Type:            pe.EventType,
		Category:        categoryFor(pe.EventType),
		Severity:        pe.Severity,
		Status:          model.AlertOpen,
		FirstOccurrence: now,
		LastOccurrence:  now,
		OccurrenceCount: 1,
		CorrelationKey:  device + ":" + pe.EventType,
		CreatedAt:       now,
		ParseError:      pe.ParseError,
		RawMessage:      pe.Message,
	}

	if err := c.store.PutAlert(alert); err != nil {
		c.log.Warn("failed to persist alert", zap.Error(err))
		return
	}

	c.metrics.TelemetryAlertsGeneratedTotal.Inc()
	c.bus.PublishAlert(events.AlertCreated{AlertID: alert.AlertID, At: now})
}

// resolveDevice looks up the reporting device by mgmt_ip; falls back
// to the source IP if unknown (spec §4.1 enrichment).
func (c *Collector) resolveDevice(pe ParsedEvent) string {
	if pe.SourceAddr == "" {
		return pe.Host
	}
	dev, err := c.store.GetDeviceByMgmtIP(pe.SourceAddr)
	if err != nil || dev == nil {
		if pe.Host != "" {
			return pe.Host
		}
		return pe.SourceAddr
	}
	return dev.Hostname
}

// shouldAlert implements the spec §4.1 alert-generation predicate.
func (c *Collector) shouldAlert(pe ParsedEvent) bool {
	if alertWorthy[pe.EventType] {
		return true
	}
	return pe.Severity == model.SeverityCritical || pe.Severity == model.SeverityMajor
}

func categoryFor(eventType string) model.AlertCategory {
	switch eventType {
	case "interface_down", "interface_up", "bgp_peer_down", "bgp_peer_up", "snmp_trap":
		return model.CategoryNetwork
	case "high_cpu", "high_memory":
		return model.CategorySystem
	case "authentication_event", "authentication_failure":
		return model.CategorySecurity
	default:
		return model.CategorySystem
	}
}
