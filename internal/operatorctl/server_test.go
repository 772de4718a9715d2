package operatorctl

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/orchestrator"
	"github.com/sanketsnayak/netheal/internal/store"
)

type fakeRemediator struct {
	approveCalled string
	rejectCalled  string
	rejectReason  string
	err           error
}

func (f *fakeRemediator) Approve(ctx context.Context, actionID string) error {
	f.approveCalled = actionID
	return f.err
}

func (f *fakeRemediator) Reject(actionID, reason string) error {
	f.rejectCalled = actionID
	f.rejectReason = reason
	return f.err
}

func newTestServer(t *testing.T) (*Server, store.Store, *orchestrator.Engine, *fakeRemediator, string) {
	t.Helper()
	st := store.NewMemStore()
	bus := events.NewBus(16)
	m := observability.NewMetrics()
	orch := orchestrator.New(config.Defaults().Orchestrator, st, m, bus, zap.NewNop())

	rem := &fakeRemediator{}
	sockPath := filepath.Join(t.TempDir(), "operator.sock")
	s := NewServer(sockPath, st, orch, rem, zap.NewNop())
	return s, st, orch, rem, sockPath
}

func roundTrip(t *testing.T, sockPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, maxRequestBytes)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		select {
		case <-deadline:
			t.Fatal("socket never appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestServer_AcknowledgeAndEscalateIncident(t *testing.T) {
	s, st, _, _, sockPath := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ListenAndServe(ctx)
	waitForSocket(t, sockPath)

	now := time.Now().UTC()
	if err := st.PutIncident(model.Incident{IncidentID: "INC-1", State: model.IncidentOpen, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "acknowledge_incident", IncidentID: "INC-1"})
	if !resp.OK || resp.Incident == nil || resp.Incident.State != model.IncidentInProgress {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "escalate_incident", IncidentID: "INC-1", Reason: "no response from on-call"})
	if !resp.OK || resp.Incident == nil || resp.Incident.State != model.IncidentEscalated {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "acknowledge_incident", IncidentID: "INC-missing"})
	if resp.OK {
		t.Fatalf("expected failure for unknown incident, got %+v", resp)
	}
}

func TestServer_ApproveRejectDelegateToRemediator(t *testing.T) {
	s, st, _, rem, sockPath := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ListenAndServe(ctx)
	waitForSocket(t, sockPath)

	now := time.Now().UTC()
	if err := st.PutAction(model.Action{ActionID: "ACT-1", Status: model.ActionPendingApproval, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "approve_action", ActionID: "ACT-1"})
	if !resp.OK || rem.approveCalled != "ACT-1" {
		t.Fatalf("expected approve delegated, got resp=%+v rem=%+v", resp, rem)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "reject_action", ActionID: "ACT-1", Reason: "blast radius too high"})
	if !resp.OK || rem.rejectCalled != "ACT-1" || rem.rejectReason != "blast radius too high" {
		t.Fatalf("expected reject delegated, got resp=%+v rem=%+v", resp, rem)
	}
}

func TestServer_CancelAction(t *testing.T) {
	s, st, _, _, sockPath := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ListenAndServe(ctx)
	waitForSocket(t, sockPath)

	now := time.Now().UTC()
	if err := st.PutAction(model.Action{ActionID: "ACT-2", Status: model.ActionQueued, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "cancel_action", ActionID: "ACT-2", Reason: "manual override"})
	if !resp.OK || resp.Action == nil || resp.Action.Status != model.ActionCancelled {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "cancel_action", ActionID: "ACT-2"})
	if resp.OK {
		t.Fatalf("expected failure cancelling already-terminal action, got %+v", resp)
	}
}

func TestServer_StatusAndList(t *testing.T) {
	s, st, _, _, sockPath := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ListenAndServe(ctx)
	waitForSocket(t, sockPath)

	now := time.Now().UTC()
	if err := st.PutIncident(model.Incident{IncidentID: "INC-2", State: model.IncidentOpen, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutAction(model.Action{ActionID: "ACT-3", Status: model.ActionQueued, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "status"})
	if !resp.OK || resp.Snapshot == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "list_incidents"})
	if !resp.OK || len(resp.Incidents) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, sockPath, Request{Cmd: "list_actions"})
	if !resp.OK || len(resp.Actions) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	s, _, _, _, sockPath := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ListenAndServe(ctx)
	waitForSocket(t, sockPath)

	resp := roundTrip(t, sockPath, Request{Cmd: "bogus"})
	if resp.OK {
		t.Fatalf("expected failure for unknown command, got %+v", resp)
	}
}
