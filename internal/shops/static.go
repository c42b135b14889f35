package shops

import (
	"context"
	"log/slog"
)

// static is a subsystem whose working state lives outside this engine (chest
// scanning, server shop GUI). The registry still gates, orders, and reloads
// it like the others.
type static struct {
	name   string
	logger *slog.Logger
}

// NewStatic returns a lifecycle-only subsystem under the given name.
func NewStatic(name string, logger *slog.Logger) Subsystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &static{name: name, logger: logger}
}

func (s *static) Name() string { return s.name }

func (s *static) Initialize(ctx context.Context) error {
	s.logger.Debug("static shop subsystem ready", "subsystem", s.name)
	return nil
}

func (s *static) Shutdown(ctx context.Context) error { return nil }

func (s *static) Reload(ctx context.Context) error { return nil }
