package telemetry

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/ratelimit"
	"github.com/sanketsnayak/netheal/internal/store"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	cfg := config.Defaults().Telemetry
	cfg.CorrelationWindow = time.Minute
	st := store.NewMemStore()
	bus := events.NewBus(64)
	m := observability.NewMetrics()
	return New(cfg, st, m, bus, zap.NewNop())
}

// TestProcess_DedupIsIdempotentAcrossReplays exercises spec §8's
// dedup property directly: replaying the same (device, type) alert N
// times within the correlation window must produce exactly one Alert
// whose OccurrenceCount equals N.
func TestProcess_DedupIsIdempotentAcrossReplays(t *testing.T) {
	c := newTestCollector(t)
	datagram := RawDatagram{
		Source:     "syslog",
		SourceAddr: "10.0.0.1",
		Payload:    []byte("<28>Jan 2 15:04:05 sw1 %LINK-3-UPDOWN: Interface GigabitEthernet0/1, changed state to down"),
	}

	const replays = 5
	for i := 0; i < replays; i++ {
		c.process(datagram)
	}

	alerts, err := c.store.ListAlerts()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one Alert after %d replays, got %d", replays, len(alerts))
	}
	if alerts[0].OccurrenceCount != replays {
		t.Errorf("expected occurrence_count=%d, got %d", replays, alerts[0].OccurrenceCount)
	}
}

// TestProcess_DedupWindowExpiryStartsNewAlert confirms replays outside
// the correlation window are NOT folded into the prior Alert.
func TestProcess_DedupWindowExpiryStartsNewAlert(t *testing.T) {
	c := newTestCollector(t)
	c.cfg.CorrelationWindow = time.Millisecond
	datagram := RawDatagram{
		Source:     "syslog",
		SourceAddr: "10.0.0.1",
		Payload:    []byte("<28>Jan 2 15:04:05 sw1 %LINK-3-UPDOWN: Interface GigabitEthernet0/1, changed state to down"),
	}

	c.process(datagram)
	time.Sleep(5 * time.Millisecond)
	c.process(datagram)

	alerts, err := c.store.ListAlerts()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected a fresh Alert once the correlation window elapses, got %d", len(alerts))
	}
}

// TestReadLoop_RateLimiterAdmitsExactlyConfiguredBurst exercises spec
// §8's rate-limiter property: more than max_events_per_second within 1s
// results in exactly max_events_per_second accepted events.
func TestReadLoop_RateLimiterAdmitsExactlyConfiguredBurst(t *testing.T) {
	c := newTestCollector(t)
	c.limiter.Close()
	// A refill period far longer than the test keeps this deterministic:
	// the burst below must land entirely inside one window.
	c.limiter = ratelimit.New(3, time.Hour)
	defer c.limiter.Close()

	admitted := 0
	for i := 0; i < 10; i++ {
		if c.limiter.Allow() {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("expected exactly 3 admitted events for a burst of 10 against a cap of 3, got %d", admitted)
	}
}
