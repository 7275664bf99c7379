package slogx

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/neupass/pkg/idx"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithFlowID tags the contextual logger with a flow id so every hop of one
// login or request chain shares it.
func WithFlowID(ctx context.Context, flowID idx.ID) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("flow_id", flowID.String()))
}
