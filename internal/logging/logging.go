// Package logging wires zerolog's structured JSON-line logger through the
// size-based file Rotator that the teacher's internal/logger package
// implements, so every component emits the key set spec §7 requires:
// {ts, service, event, stock_code?, signal_type?, reason, duration_ms}.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/korea-trading-core/core/internal/logger"
)

// Setup builds a zerolog.Logger for service that writes to both stdout and
// a rotating file, named the way the teacher's logger.Setup does.
func Setup(service, filename string, maxSizeMB int64, maxBackups int) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	rotator := &logger.Rotator{
		Filename:   filename,
		MaxSize:    maxSizeMB * 1024 * 1024,
		MaxBackups: maxBackups,
	}

	var w io.Writer = os.Stdout
	if filename != "" {
		w = io.MultiWriter(os.Stdout, rotator)
	}

	return zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Event is a convenience wrapper matching the §7 key set. Callers fill in
// only the fields that apply; zero values are omitted by zerolog.
type Event struct {
	Event      string
	StockCode  string
	SignalType string
	Reason     string
	Duration   time.Duration
}

// Log emits e at the given level.
func Log(l zerolog.Logger, level zerolog.Level, e Event) {
	le := l.WithLevel(level).Str("event", e.Event)
	if e.StockCode != "" {
		le = le.Str("stock_code", e.StockCode)
	}
	if e.SignalType != "" {
		le = le.Str("signal_type", e.SignalType)
	}
	if e.Reason != "" {
		le = le.Str("reason", e.Reason)
	}
	if e.Duration > 0 {
		le = le.Dur("duration_ms", e.Duration)
	}
	le.Send()
}
