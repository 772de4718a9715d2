// Package operatorctl exposes a Unix domain socket control surface for
// human operators: acknowledge/escalate incidents, approve/reject/
// cancel remediation actions, and query pipeline status — structurally
// a port of internal/operator/server.go's newline-delimited-JSON
// protocol, with PID-centric commands replaced by incident/action ones
// (spec §4.6).
package operatorctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/orchestrator"
	"github.com/sanketsnayak/netheal/internal/store"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// Remediator is the subset of *remediation.Engine the control server
// needs. Declared locally to avoid an import-cycle-prone dependency on
// the concrete engine type.
type Remediator interface {
	Approve(ctx context.Context, actionID string) error
	Reject(actionID, reason string) error
}

// Server is the operator control Unix domain socket server.
type Server struct {
	socketPath string
	store      store.Store
	orch       *orchestrator.Engine
	remediator Remediator
	log        *zap.Logger
	sem        chan struct{}
}

// NewServer creates a Server.
func NewServer(socketPath string, st store.Store, orch *orchestrator.Engine, remediator Remediator, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		store:      st,
		orch:       orch,
		remediator: remediator,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd        string `json:"cmd"`
	IncidentID string `json:"incident_id,omitempty"`
	ActionID   string `json:"action_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	Incident  *model.Incident       `json:"incident,omitempty"`
	Action    *model.Action         `json:"action,omitempty"`
	Incidents []model.Incident      `json:"incidents,omitempty"`
	Actions   []model.Action        `json:"actions,omitempty"`
	Snapshot  *orchestrator.Snapshot `json:"snapshot,omitempty"`
}

// ListenAndServe starts the operator socket server, removing any stale
// socket file first. Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operatorctl: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("operatorctl: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operatorctl: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operatorctl: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operatorctl socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("operatorctl: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operatorctl: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operatorctl: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(ctx, req)
	s.writeResponse(conn, resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Cmd {
	case "acknowledge_incident":
		return s.cmdAcknowledgeIncident(req)
	case "escalate_incident":
		return s.cmdEscalateIncident(req)
	case "approve_action":
		return s.cmdApproveAction(ctx, req)
	case "reject_action":
		return s.cmdRejectAction(req)
	case "cancel_action":
		return s.cmdCancelAction(req)
	case "status":
		return s.cmdStatus()
	case "list_actions":
		return s.cmdListActions()
	case "list_incidents":
		return s.cmdListIncidents()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdAcknowledgeIncident(req Request) Response {
	return s.transitionIncident(req.IncidentID, model.IncidentInProgress, "acknowledged", req.Reason)
}

func (s *Server) cmdEscalateIncident(req Request) Response {
	return s.transitionIncident(req.IncidentID, model.IncidentEscalated, "escalated", req.Reason)
}

func (s *Server) transitionIncident(incidentID string, state model.IncidentState, event, detail string) Response {
	if incidentID == "" {
		return Response{OK: false, Error: "incident_id required"}
	}
	inc, err := s.store.GetIncident(incidentID)
	if err != nil || inc == nil {
		return Response{OK: false, Error: fmt.Sprintf("incident %q not found", incidentID)}
	}
	inc.State = state
	inc.UpdatedAt = time.Now().UTC()
	if err := s.store.PutIncident(*inc); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.audit("incident", incidentID, event, detail)
	return Response{OK: true, Incident: inc}
}

func (s *Server) cmdApproveAction(ctx context.Context, req Request) Response {
	if req.ActionID == "" {
		return Response{OK: false, Error: "action_id required"}
	}
	if err := s.remediator.Approve(ctx, req.ActionID); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.audit("action", req.ActionID, "approved", req.Reason)
	a, _ := s.store.GetAction(req.ActionID)
	return Response{OK: true, Action: a}
}

func (s *Server) cmdRejectAction(req Request) Response {
	if req.ActionID == "" {
		return Response{OK: false, Error: "action_id required"}
	}
	if err := s.remediator.Reject(req.ActionID, req.Reason); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.audit("action", req.ActionID, "rejected", req.Reason)
	a, _ := s.store.GetAction(req.ActionID)
	return Response{OK: true, Action: a}
}

func (s *Server) cmdCancelAction(req Request) Response {
	if req.ActionID == "" {
		return Response{OK: false, Error: "action_id required"}
	}
	a, err := s.store.GetAction(req.ActionID)
	if err != nil || a == nil {
		return Response{OK: false, Error: fmt.Sprintf("action %q not found", req.ActionID)}
	}
	if a.Status.IsTerminal() {
		return Response{OK: false, Error: fmt.Sprintf("action %q already terminal (status=%s)", req.ActionID, a.Status)}
	}
	a.Status = model.ActionCancelled
	a.ErrorMessage = req.Reason
	a.UpdatedAt = time.Now().UTC()
	if err := s.store.PutAction(*a); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.audit("action", req.ActionID, "cancelled", req.Reason)
	return Response{OK: true, Action: a}
}

func (s *Server) cmdStatus() Response {
	snap := s.orch.Snapshot()
	return Response{OK: true, Snapshot: &snap}
}

func (s *Server) cmdListActions() Response {
	actions, err := s.store.ListActions()
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Actions: actions}
}

func (s *Server) cmdListIncidents() Response {
	incidents, err := s.store.ListIncidents()
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Incidents: incidents}
}

func (s *Server) audit(entity, entityID, event, detail string) {
	_ = s.store.AppendAudit(store.AuditEntry{
		Timestamp: time.Now().UTC(), Actor: "operator", Entity: entity, EntityID: entityID,
		Event: event, Detail: detail,
	})
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}
