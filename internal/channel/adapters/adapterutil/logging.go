// Package adapterutil provides shared utilities for channel adapters.
package adapterutil

import (
	"log/slog"
	"strings"
)

// SummarizeText returns a truncated preview of the text, limited to 120 characters.
func SummarizeText(text string) string {
	value := strings.TrimSpace(text)
	if value == "" {
		return ""
	}
	const limit = 120
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

// Logger scopes log to one adapter, falling back to slog.Default.
func Logger(log *slog.Logger, adapter string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With(slog.String("adapter", adapter))
}
