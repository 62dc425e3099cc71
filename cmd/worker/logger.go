package main

import (
	"log/slog"
	"os"

	"github.com/foliostack/tradeledger/internal/observability"
)

// slogAdapter bridges the structured logging interface onto log/slog.
type slogAdapter struct {
	logger *slog.Logger
}

func newSlogAdapter() *slogAdapter {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &slogAdapter{logger: slog.New(handler)}
}

func (a *slogAdapter) Debug(msg string, fields ...observability.Field) {
	a.logger.Debug(msg, attrs(fields)...)
}

func (a *slogAdapter) Info(msg string, fields ...observability.Field) {
	a.logger.Info(msg, attrs(fields)...)
}

func (a *slogAdapter) Warn(msg string, fields ...observability.Field) {
	a.logger.Warn(msg, attrs(fields)...)
}

func (a *slogAdapter) Error(msg string, fields ...observability.Field) {
	a.logger.Error(msg, attrs(fields)...)
}

func attrs(fields []observability.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		out = append(out, field.Key, field.Value)
	}
	return out
}

var _ observability.Logger = (*slogAdapter)(nil)
