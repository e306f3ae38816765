package logging

import (
	"context"
	"errors"
	"log/slog"
)

// mirrorHandler writes every record to the primary (console) handler and
// copies it to the run log file. Each side applies its own level.
type mirrorHandler struct {
	primary slog.Handler
	mirror  slog.Handler
}

// MirrorHandler returns primary with its records also sent to mirror. A nil
// mirror returns primary unchanged.
func MirrorHandler(primary, mirror slog.Handler) slog.Handler {
	switch {
	case mirror == nil && primary == nil:
		return NoopHandler{}
	case mirror == nil:
		return primary
	case primary == nil:
		return mirror
	}
	return &mirrorHandler{primary: primary, mirror: mirror}
}

func (h *mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.mirror.Enabled(ctx, level)
}

func (h *mirrorHandler) Handle(ctx context.Context, record slog.Record) error {
	var primaryErr, mirrorErr error
	if h.mirror.Enabled(ctx, record.Level) {
		mirrorErr = h.mirror.Handle(ctx, record.Clone())
	}
	if h.primary.Enabled(ctx, record.Level) {
		primaryErr = h.primary.Handle(ctx, record)
	}
	return errors.Join(primaryErr, mirrorErr)
}

func (h *mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &mirrorHandler{primary: h.primary.WithAttrs(attrs), mirror: h.mirror.WithAttrs(attrs)}
}

func (h *mirrorHandler) WithGroup(name string) slog.Handler {
	return &mirrorHandler{primary: h.primary.WithGroup(name), mirror: h.mirror.WithGroup(name)}
}
