package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. LOG_FORMAT=json selects the JSON
// handler for log shippers; anything else stays human-readable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
