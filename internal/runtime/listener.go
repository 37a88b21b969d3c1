package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/vitrine/internal/dispatch"
	"github.com/aretw0/vitrine/internal/runstate"
	"github.com/aretw0/vitrine/pkg/domain"
)

// OnMessage implements ports.GatewayListener.
func (s *Session) OnMessage(msg domain.Inbound) {
	s.post(func() {
		s.receive(context.Background(), msg)
		s.publish()
	})
}

// OnConnectionStateChanged implements ports.GatewayListener.
func (s *Session) OnConnectionStateChanged(state domain.ConnectionState) {
	s.post(func() {
		if s.conn == state {
			return
		}
		s.logger.Info("Connection state changed", "from", s.conn, "to", state)
		s.conn = state
		s.publish()
	})
}

// OnError implements ports.GatewayListener.
// Undecodable frames are treated like unknown envelopes; anything else is a
// connection error. Both replace the document with a single error element.
func (s *Session) OnError(err error) {
	s.post(func() {
		if !errors.Is(err, domain.ErrProtocol) {
			err = fmt.Errorf("connection error: %w", err)
		}
		s.fault(context.Background(), err)
		s.publish()
	})
}

func (s *Session) receive(ctx context.Context, msg domain.Inbound) {
	s.emitInbound(ctx, msg)
	if err := dispatch.Dispatch(ctx, handlers{s}, msg); err != nil {
		s.fault(ctx, err)
	}
}

func (s *Session) fault(ctx context.Context, err error) {
	s.logger.Error("Replacing document with error", "err", err)
	s.doc.ReplaceWithError(err, s.reportID)
	s.emitFault(ctx, err)
}

// handlers keeps the dispatch methods off the Session API.
type handlers struct {
	s *Session
}

func (h handlers) HandleInitialize(ctx context.Context, msg domain.Initialize) error {
	s := h.s
	s.sharing = msg.SharingEnabled
	s.serverVersion = msg.ServerVersion
	s.logger.Info("Session initialized",
		"server_version", msg.ServerVersion,
		"sharing_enabled", msg.SharingEnabled,
	)
	return h.applySessionState(msg.SessionState)
}

func (h handlers) HandleSessionStateChanged(ctx context.Context, msg domain.SessionStateChanged) error {
	return h.applySessionState(msg.SessionState)
}

func (h handlers) applySessionState(state domain.SessionState) error {
	h.s.settings.RunOnSave = state.RunOnSave
	h.s.run.Fire(runstate.ServerState{Running: state.ReportIsRunning})
	return nil
}

func (h handlers) HandleSessionEvent(ctx context.Context, msg domain.SessionEvent) error {
	s := h.s
	if s.relay != nil {
		s.relay.Handle(ctx, msg)
	}

	switch msg.Type {
	case domain.EventScriptCompilationException:
		for _, eff := range s.run.Fire(runstate.CompileError{}) {
			if eff == runstate.OpenCompileDialog {
				d := &domain.Dialog{Kind: domain.DialogCompileError, Exception: msg.Exception}
				if msg.Exception != nil {
					d.Message = msg.Exception.Message
				}
				s.dialog = d
			}
		}
	case domain.EventReportChangedOnDisk:
		// With run-on-save the server reruns on its own.
		if !s.settings.RunOnSave {
			s.dialog = &domain.Dialog{Kind: domain.DialogScriptChanged, Message: "The source of this report changed on disk."}
		}
	default:
		s.logger.Debug("Relayed session event", "type", msg.Type)
	}
	return nil
}

func (h handlers) HandleNewReport(ctx context.Context, msg domain.NewReport) error {
	s := h.s
	s.reportID = msg.ID
	s.reportName = msg.Name
	s.commandLine = strings.Join(msg.CommandLine, " ")
	s.logger.Info("New report", "report_id", msg.ID, "name", msg.Name)
	return nil
}

func (h handlers) HandleDelta(ctx context.Context, msg domain.Delta) error {
	s := h.s
	if s.run.State() != domain.RunRunning && s.conn != domain.ConnStatic {
		s.logger.Debug("Ignoring delta outside a run", "element_id", msg.ID, "run_state", s.run.State())
		return nil
	}

	switch body := msg.Body.(type) {
	case domain.NewElement:
		el := s.doc.ApplyNewElement(msg.ID, body.Payload, s.reportID)
		s.emitDelta(ctx, msg.ID, "newElement", el.Kind(), nil)
		return nil
	case domain.AddRows:
		el, err := s.doc.ApplyAddRows(msg.ID, body.Rows)
		var kind domain.ElementKind
		if !errors.Is(err, domain.ErrNotFound) {
			kind = el.Kind()
		}
		s.emitDelta(ctx, msg.ID, "addRows", kind, err)
		return err
	default:
		return &domain.ProtocolError{Tag: domain.TagDelta, Err: fmt.Errorf("delta %d has no body", msg.ID)}
	}
}

func (h handlers) HandleReportFinished(ctx context.Context, msg domain.ReportFinished) error {
	s := h.s
	for _, eff := range s.run.Fire(runstate.Finished{}) {
		if eff == runstate.SweepStale {
			swept := s.doc.SweepStale(s.reportID)
			s.emitSweep(ctx, swept)
		}
	}
	return nil
}

func (h handlers) HandleUploadReportProgress(ctx context.Context, msg domain.UploadReportProgress) error {
	h.s.dialog = &domain.Dialog{Kind: domain.DialogUploadProgress, Progress: msg.Percent}
	return nil
}

func (h handlers) HandleReportUploaded(ctx context.Context, msg domain.ReportUploaded) error {
	h.s.dialog = &domain.Dialog{Kind: domain.DialogUploaded, URL: msg.URL}
	return nil
}
