package cli

import (
	"log/slog"

	"github.com/aretw0/vitrine"
	"github.com/aretw0/vitrine/internal/config"
	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/adapters/websocket"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
}

// Setup loads the configuration and builds the logger.
func Setup(opts Options) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level := cfg.Level()
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger, err := logging.New(level, logging.WithFormat(cfg.LogFormat))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func clientOptions(cfg config.Config, logger *slog.Logger) []vitrine.Option {
	return []vitrine.Option{
		vitrine.WithLogger(logger),
		vitrine.WithThrottleWindow(cfg.ThrottleWindow),
		vitrine.WithReconnect(websocket.Backoff{
			Initial: cfg.Reconnect.Initial,
			Max:     cfg.Reconnect.Max,
		}, cfg.Reconnect.MaxAttempts),
	}
}
