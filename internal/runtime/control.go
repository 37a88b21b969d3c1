package runtime

import (
	"context"
	"errors"

	"github.com/aretw0/vitrine/internal/runstate"
	"github.com/aretw0/vitrine/pkg/domain"
)

// Rerun asks the server to run the script again. With alwaysRunOnSave the
// run-on-save setting is switched on first. A rerun while one is already
// running or requested is ignored.
func (s *Session) Rerun(ctx context.Context, alwaysRunOnSave bool) error {
	return s.do(ctx, func(ctx context.Context) error {
		s.dialog = nil
		if err := s.gate("rerun the report"); err != nil {
			s.emitDropped(ctx, domain.RerunScript{CommandLine: s.commandLine}, err)
			return err
		}
		if !runstate.Admits(s.run.State(), runstate.Rerun{}) {
			s.logger.Debug("Ignoring rerun request", "run_state", s.run.State())
			return nil
		}
		if alwaysRunOnSave {
			next := s.settings
			next.RunOnSave = true
			if err := s.saveSettings(ctx, next); err != nil {
				return err
			}
		}
		return s.fire(ctx, runstate.Rerun{})
	})
}

// Stop asks the server to stop the running script.
// It is ignored when nothing runs or a stop is already requested.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		if err := s.gate("stop the report"); err != nil {
			s.emitDropped(ctx, domain.StopReport{}, err)
			return err
		}
		if !runstate.Admits(s.run.State(), runstate.Stop{}) {
			s.logger.Debug("Ignoring stop request", "run_state", s.run.State())
			return nil
		}
		return s.fire(ctx, runstate.Stop{})
	})
}

// ClearCache asks the server to drop its computation cache.
func (s *Session) ClearCache(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.sendControl(ctx, "clear the cache", domain.ClearCache{})
	})
}

// CloudUpload asks the server to publish the report. While disconnected it
// fails like any other control request. Without sharing a warning dialog
// opens and domain.ErrSharingDisabled is returned.
func (s *Session) CloudUpload(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		if err := s.gate("upload the report"); err != nil {
			s.emitDropped(ctx, domain.CloudUpload{}, err)
			return err
		}
		if !s.sharing {
			s.dialog = &domain.Dialog{Kind: domain.DialogWarning, Message: "Sharing is not configured on the server."}
			return domain.ErrSharingDisabled
		}
		return s.send(ctx, domain.CloudUpload{})
	})
}

// SaveSettings stores the operator settings. The server is told about
// run-on-save only when it changed and the connection is usable.
func (s *Session) SaveSettings(ctx context.Context, settings domain.UserSettings) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.saveSettings(ctx, settings)
	})
}

func (s *Session) saveSettings(ctx context.Context, settings domain.UserSettings) error {
	prev := s.settings
	s.settings = settings
	if prev.RunOnSave == settings.RunOnSave || !s.conn.CanSend() {
		return nil
	}
	return s.send(ctx, domain.SetRunOnSave{Value: settings.RunOnSave})
}

// SetWidgetValue records the value of a widget and sends it to the server
// through the outbound throttle.
func (s *Session) SetWidgetValue(ctx context.Context, widgetID string, value any) error {
	return s.do(ctx, func(ctx context.Context) error {
		s.widgets[widgetID] = value
		msg := domain.UpdateWidget{WidgetID: widgetID, Value: value}
		if err := s.gate("update widget " + widgetID); err != nil {
			s.emitDropped(ctx, msg, err)
			return err
		}
		s.out.Send(widgetID, msg)
		return nil
	})
}

// CloseDialog dismisses the open dialog, if any.
func (s *Session) CloseDialog(ctx context.Context) error {
	return s.do(ctx, func(context.Context) error {
		s.dialog = nil
		return nil
	})
}

// Login implements ports.Authenticator. It opens the login dialog and blocks
// until the operator resolves or rejects the attempt. A second call while one
// is pending supersedes the first.
func (s *Session) Login(ctx context.Context) (domain.Credentials, error) {
	attempt := s.login.Begin()
	if err := s.do(ctx, func(context.Context) error {
		s.dialog = &domain.Dialog{Kind: domain.DialogLogin}
		return nil
	}); err != nil {
		// No dialog means nobody will answer.
		attempt.Cancel()
		return domain.Credentials{}, err
	}

	creds, err := attempt.Wait(ctx)
	if errors.Is(err, domain.ErrLoginSuperseded) {
		return creds, err
	}

	s.post(func() {
		if s.dialog != nil && s.dialog.Kind == domain.DialogLogin {
			s.dialog = nil
			s.publish()
		}
	})
	if err != nil {
		s.logger.Warn("Login failed", "attempt", attempt.ID, "err", err)
	}
	return creds, err
}

// ResolveLogin answers the pending login.
func (s *Session) ResolveLogin(creds domain.Credentials) error {
	return s.login.Resolve(creds)
}

// RejectLogin fails the pending login.
func (s *Session) RejectLogin(reason error) error {
	return s.login.Reject(reason)
}

func (s *Session) fire(ctx context.Context, ev runstate.Event) error {
	for _, eff := range s.run.Fire(ev) {
		var err error
		switch eff {
		case runstate.SendRerun:
			err = s.send(ctx, domain.RerunScript{CommandLine: s.commandLine})
		case runstate.SendStop:
			err = s.send(ctx, domain.StopReport{})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// gate fails with *domain.NotConnectedError while the connection cannot carry envelopes.
func (s *Session) gate(action string) error {
	if s.conn.CanSend() {
		return nil
	}
	err := &domain.NotConnectedError{Action: action, State: s.conn}
	s.logger.Warn("Dropping request", "err", err)
	return err
}

func (s *Session) sendControl(ctx context.Context, action string, msg domain.Outbound) error {
	if err := s.gate(action); err != nil {
		s.emitDropped(ctx, msg, err)
		return err
	}
	return s.send(ctx, msg)
}

func (s *Session) send(ctx context.Context, msg domain.Outbound) error {
	err := s.gateway.Send(ctx, msg)
	if err != nil {
		s.logger.Error("Failed to send envelope", "tag", msg.Tag(), "err", err)
	}
	s.emitOutbound(ctx, msg, err)
	return err
}

// sendThrottled runs on the loop when the throttle releases an envelope.
// The connection may have dropped since the envelope was queued.
func (s *Session) sendThrottled(msg domain.Outbound) {
	ctx := context.Background()
	if err := s.gate("send " + msg.Tag()); err != nil {
		s.emitDropped(ctx, msg, err)
		return
	}
	_ = s.send(ctx, msg)
}
