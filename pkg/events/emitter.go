// Package events publishes warehouse change events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type EventType string

const (
	EventTypeUpserted     EventType = "warehouse.upserted"
	EventTypeLinked       EventType = "warehouse.linked"
	EventTypeMerged       EventType = "warehouse.merged"
	EventTypeDeleted      EventType = "warehouse.deleted"
	EventTypeDetached     EventType = "warehouse.detached"
	EventTypeRunCompleted EventType = "run.completed"
)

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	PublishEntityEvents(ctx context.Context, events []*kafka.EntityEvent) error
	PublishRunEvent(ctx context.Context, event *kafka.RunEvent) error
}

// Emitter buffers row events for a stage and publishes them on Flush.
// Publishing failures are logged and never fail the run. A nil Emitter is
// valid and drops everything.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	runID     string
	pending   []*kafka.EntityEvent
}

func NewEmitter(publisher Publisher, runID string, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		runID:     runID,
	}
}

// Record queues the event matching a successful outcome. row is the
// warehouse row written, if any.
func (e *Emitter) Record(outcome result.Outcome, warehouseID int64, row any) {
	if e == nil || outcome.IsFailure() {
		return
	}

	eventType, ok := eventTypeFor(outcome.Status)
	if !ok {
		return
	}

	event := &kafka.EntityEvent{
		EventType:  string(eventType),
		RunID:      e.runID,
		EntityID:   fmt.Sprint(warehouseID),
		EntityType: string(outcome.Kind),
		Source:     string(outcome.Source),
		SourceKey:  outcome.Key,
	}
	if row != nil {
		data, err := json.Marshal(row)
		if err == nil {
			event.Data = data
		}
	}
	e.pending = append(e.pending, event)
}

// Pending reports how many events wait for Flush.
func (e *Emitter) Pending() int {
	if e == nil {
		return 0
	}
	return len(e.pending)
}

func (e *Emitter) Flush(ctx context.Context) {
	if e == nil || len(e.pending) == 0 {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Flush")
	defer span.End()

	batch := e.pending
	e.pending = nil
	if err := e.publisher.PublishEntityEvents(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("events", len(batch)).Warn("Dropped warehouse change events")
	}
}

// RunCompleted flushes what is left and publishes the run summary.
func (e *Emitter) RunCompleted(ctx context.Context, report *result.Report) {
	if e == nil {
		return
	}
	e.Flush(ctx)

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.RunCompleted")
	defer span.End()

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunCompleted),
		RunID:     e.runID,
		Success:   report.Success(),
		Documents: report.Documents(),
	}
	if err := e.publisher.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit run.completed event")
	}
}

func eventTypeFor(status result.Status) (EventType, bool) {
	switch status {
	case result.StatusInserted, result.StatusUpdated:
		return EventTypeUpserted, true
	case result.StatusLinked:
		return EventTypeLinked, true
	case result.StatusMerged:
		return EventTypeMerged, true
	case result.StatusDeleted:
		return EventTypeDeleted, true
	case result.StatusDetached:
		return EventTypeDetached, true
	default:
		return "", false
	}
}
