package mutation

import (
	"io"
	"log/slog"
)

// Phase is one step of a mutation's lifecycle.
type Phase string

const (
	PhaseApplied    Phase = "optimistic-applied"
	PhaseConfirmed  Phase = "settled-confirmed"
	PhaseRolledBack Phase = "rolled-back"
	PhaseRefetch    Phase = "refetch-issued"
)

// Event records one mutation lifecycle transition.
type Event struct {
	Kind   string
	ItemID int
	Phase  Phase
	Err    error
}

// Observer receives mutation lifecycle events.
type Observer interface {
	OnMutation(e Event)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnMutation(Event) {}

// LogObserver writes mutation events as structured logs.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver writing to w.
func NewLogObserver(w io.Writer) *LogObserver {
	return &LogObserver{logger: slog.New(slog.NewTextHandler(w, nil))}
}

func (o *LogObserver) OnMutation(e Event) {
	attrs := []any{
		"kind", e.Kind,
		"item_id", e.ItemID,
		"phase", string(e.Phase),
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err.Error())
		o.logger.Warn("mutation", attrs...)
		return
	}
	o.logger.Info("mutation", attrs...)
}
