package fetch

import (
	"io"
	"log/slog"
)

// GroupDegradedEvent records one area group whose queries failed while the
// rest of the fetch continued.
type GroupDegradedEvent struct {
	ProjectID string
	TeamID    string
	Err       error
}

// RunEvent summarizes one completed fetch run.
type RunEvent struct {
	Key        string
	Items      int
	TopParents int
}

// Observer receives pipeline lifecycle events.
type Observer interface {
	OnGroupDegraded(e GroupDegradedEvent)
	OnRunCompleted(e RunEvent)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnGroupDegraded(GroupDegradedEvent) {}
func (NoopObserver) OnRunCompleted(RunEvent)            {}

// LogObserver writes events as structured logs.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver writing to w.
func NewLogObserver(w io.Writer) *LogObserver {
	return &LogObserver{logger: slog.New(slog.NewTextHandler(w, nil))}
}

func (o *LogObserver) OnGroupDegraded(e GroupDegradedEvent) {
	o.logger.Warn("area group degraded",
		"project_id", e.ProjectID,
		"team_id", e.TeamID,
		"error", e.Err,
	)
}

func (o *LogObserver) OnRunCompleted(e RunEvent) {
	o.logger.Info("fetch completed",
		"key", e.Key,
		"items", e.Items,
		"top_parents", e.TopParents,
	)
}
