// Package worker turns trigger events into workflow runs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/events"
	"pdfrag/internal/indexer"
	"pdfrag/internal/rag"
	"pdfrag/internal/workflow"
)

// Admitter blocks until an ingestion for key may start.
type Admitter interface {
	Wait(ctx context.Context, key string) error
}

// Starter records and executes runs.
type Starter interface {
	Start(ctx context.Context, eventID, function string, input any) (*workflow.Run, error)
	StartGated(ctx context.Context, eventID, function string, input any, gate workflow.Gate) (*workflow.Run, error)
}

// Worker consumes trigger events and starts one run per event.
// Ingest runs are held by the admission policy; query runs start at once.
type Worker struct {
	consumer  events.Consumer
	runner    Starter
	admission Admitter
}

// New creates a worker. admission may be nil to start ingestion immediately.
func New(consumer events.Consumer, runner Starter, admission Admitter) *Worker {
	return &Worker{
		consumer:  consumer,
		runner:    runner,
		admission: admission,
	}
}

// Run consumes events until ctx ends or the consumer is closed.
func (w *Worker) Run(ctx context.Context) error {
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "worker started")
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle starts the run for one event. It returns once the run is recorded;
// ctx bounds any admission wait.
func (w *Worker) Handle(ctx context.Context, event *events.Event) error {
	logger := contextutil.LoggerFromContext(ctx).With(
		slog.String("event_id", event.ID),
		slog.String("event", event.Name),
	)
	ctx = contextutil.WithLogger(ctx, logger)

	var (
		run *workflow.Run
		err error
	)
	input := json.RawMessage(event.Data)

	switch event.Name {
	case events.NameIngestPDF:
		key := event.Key()
		if w.admission == nil {
			run, err = w.runner.Start(ctx, event.ID, indexer.FunctionName, input)
			break
		}
		run, err = w.runner.StartGated(ctx, event.ID, indexer.FunctionName, input, w.admit(key))
	case events.NameQueryPDF:
		run, err = w.runner.Start(ctx, event.ID, rag.FunctionName, input)
	default:
		logger.WarnContext(ctx, "ignoring unknown event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to start run for event %s: %w", event.ID, err)
	}

	logger.DebugContext(ctx, "event dispatched", "run_id", run.ID, "status", run.Status)
	return nil
}

// ResumeGate returns the admission gate for a run resumed after a restart.
// Ingest runs that never started are admitted again under their source key.
func (w *Worker) ResumeGate(run *workflow.Run) workflow.Gate {
	if w.admission == nil || run.Function != indexer.FunctionName {
		return nil
	}
	event := &events.Event{ID: run.EventID, Name: events.NameIngestPDF, Data: run.Input}
	return w.admit(event.Key())
}

func (w *Worker) admit(key string) workflow.Gate {
	return func(ctx context.Context) error {
		return w.admission.Wait(ctx, key)
	}
}
