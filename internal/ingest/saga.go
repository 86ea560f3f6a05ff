package ingest

import (
	"context"
	"log/slog"
)

// compensation is one committed side effect's undo action. Compensations
// must be idempotent: undoing an already-absent resource is a no-op.
type compensation struct {
	name string
	fn   func(context.Context) error
}

// saga tracks committed side effects in order so a failure can unwind
// them in reverse. It stands in for a real cross-store transaction: the
// asset directory and the database have no shared commit protocol.
type saga struct {
	committed []compensation
}

// push records a committed side effect and its undo action.
func (s *saga) push(name string, fn func(context.Context) error) {
	s.committed = append(s.committed, compensation{name: name, fn: fn})
}

// rollback executes all compensations in reverse order. Failures are
// logged and do not stop the remaining compensations; the return value
// reports whether every compensation succeeded.
func (s *saga) rollback(ctx context.Context, logger *slog.Logger) bool {
	ok := true
	for i := len(s.committed) - 1; i >= 0; i-- {
		c := s.committed[i]
		if err := c.fn(ctx); err != nil {
			logger.Error("ingest rollback step failed", "step", c.name, "error", err)
			ok = false
			continue
		}
		logger.Debug("ingest rollback step done", "step", c.name)
	}
	return ok
}
