package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
)

// errQuit ends ReadCommands when the operator asks to leave.
var errQuit = errors.New("quit")

// ReadCommands reads operator commands, one per line, and applies them to
// ctrl. It returns when r is exhausted, ctx ends or "quit" is read.
//
//	rerun [always] | stop | clear | upload | close | wide | login <token> | cancel | set <widget> <value> | quit
func ReadCommands(ctx context.Context, r io.Reader, ctrl ports.Controller, logger *slog.Logger) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line, err := SanitizeCommand(sc.Text())
		if err != nil {
			logger.Warn("Rejected command", "err", err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err = apply(ctx, ctrl, strings.Fields(line))
		if errors.Is(err, errQuit) {
			return errQuit
		}
		if err != nil {
			logger.Warn("Command failed", "command", line, "err", err)
		}
	}
	return sc.Err()
}

func apply(ctx context.Context, ctrl ports.Controller, fields []string) error {
	switch fields[0] {
	case "rerun", "r":
		always := len(fields) > 1 && fields[1] == "always"
		return ctrl.Rerun(ctx, always)
	case "stop", "s":
		return ctrl.Stop(ctx)
	case "clear", "c":
		return ctrl.ClearCache(ctx)
	case "upload":
		return ctrl.CloudUpload(ctx)
	case "close":
		return ctrl.CloseDialog(ctx)
	case "wide":
		v, err := ctrl.View(ctx)
		if err != nil {
			return err
		}
		settings := v.Settings
		settings.WideMode = !settings.WideMode
		return ctrl.SaveSettings(ctx, settings)
	case "login":
		if len(fields) < 2 {
			return errors.New("usage: login <token>")
		}
		return ctrl.ResolveLogin(domain.Credentials{Token: fields[1]})
	case "cancel":
		return ctrl.RejectLogin(errors.New("cancelled by operator"))
	case "set":
		if len(fields) < 3 {
			return errors.New("usage: set <widget> <value>")
		}
		return ctrl.SetWidgetValue(ctx, fields[1], strings.Join(fields[2:], " "))
	case "quit", "q", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", fields[0])
}
