package ado

import (
	"io"
	"log/slog"
)

// CallEvent records metadata about one platform API call.
type CallEvent struct {
	Operation string
	Project   string
	Count     int
	LatencyMs int64
	Success   bool
	ErrorCode string
}

// Observer receives events about platform calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver writes platform call events to the provided writer.
func NewLogObserver(w io.Writer) Observer {
	if w == nil {
		return NoopObserver{}
	}
	return &logObserver{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

func (o *logObserver) OnCallComplete(event CallEvent) {
	attrs := []any{
		"op", event.Operation,
		"latency_ms", event.LatencyMs,
		"success", event.Success,
	}
	if event.Project != "" {
		attrs = append(attrs, "project", event.Project)
	}
	if event.Count > 0 {
		attrs = append(attrs, "count", event.Count)
	}
	if !event.Success {
		attrs = append(attrs, "error_code", event.ErrorCode)
		o.logger.Error("ado_call", attrs...)
		return
	}
	o.logger.Info("ado_call", attrs...)
}
