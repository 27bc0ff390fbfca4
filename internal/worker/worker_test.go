package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/events"
	"pdfrag/internal/indexer"
	"pdfrag/internal/rag"
	"pdfrag/internal/workflow"
)

type recordingAdmitter struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *recordingAdmitter) Wait(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

func (a *recordingAdmitter) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}

func newTestRunner(store workflow.Store) *workflow.Runner {
	r := workflow.NewRunner(store, workflow.RetryPolicy{MaxAttempts: 1})
	r.Register(indexer.FunctionName, workflow.Handle(func(ctx context.Context, _ *workflow.Steps, in indexer.IngestInput) (indexer.IngestResult, error) {
		return indexer.IngestResult{Ingested: len(in.PDFPath)}, nil
	}))
	r.Register(rag.FunctionName, workflow.Handle(func(ctx context.Context, _ *workflow.Steps, in rag.QueryInput) (rag.QueryResult, error) {
		return rag.QueryResult{Answer: in.Question, Sources: []string{}}, nil
	}))
	return r
}

func mustEvent(t *testing.T, name string, data any) *events.Event {
	t.Helper()
	event, err := events.New(name, data)
	require.NoError(t, err)
	return event
}

func TestWorker_HandleIngestPassesAdmission(t *testing.T) {
	store := workflow.NewMemoryStore()
	runner := newTestRunner(store)
	admitter := &recordingAdmitter{}
	w := New(events.NewChannelBus(1), runner, admitter)

	event := mustEvent(t, events.NameIngestPDF, indexer.IngestInput{PDFPath: "/docs/a.pdf", SourceID: "a"})
	require.NoError(t, w.Handle(context.Background(), event))
	runner.Wait()

	assert.Equal(t, []string{"a"}, admitter.Keys())
	run, err := store.GetRun(context.Background(), workflow.RunID(event.ID, indexer.FunctionName))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, run.Status)
	assert.JSONEq(t, `{"ingested":11}`, string(run.Output))
}

func TestWorker_HandleIngestNotAdmitted(t *testing.T) {
	store := workflow.NewMemoryStore()
	runner := newTestRunner(store)
	w := New(events.NewChannelBus(1), runner, &recordingAdmitter{err: context.Canceled})

	event := mustEvent(t, events.NameIngestPDF, indexer.IngestInput{PDFPath: "/docs/a.pdf"})
	require.NoError(t, w.Handle(context.Background(), event))
	runner.Wait()

	run, err := store.GetRun(context.Background(), workflow.RunID(event.ID, indexer.FunctionName))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusQueued, run.Status)
}

func TestWorker_HandleQuerySkipsAdmission(t *testing.T) {
	store := workflow.NewMemoryStore()
	runner := newTestRunner(store)
	admitter := &recordingAdmitter{}
	w := New(events.NewChannelBus(1), runner, admitter)

	event := mustEvent(t, events.NameQueryPDF, map[string]any{"question": "What is X?", "top_k": 3})
	require.NoError(t, w.Handle(context.Background(), event))
	runner.Wait()

	assert.Empty(t, admitter.Keys())
	run, err := store.GetRun(context.Background(), workflow.RunID(event.ID, rag.FunctionName))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, run.Status)
	assert.JSONEq(t, `{"answer":"What is X?","sources":[],"num_contexts":0}`, string(run.Output))
}

func TestWorker_HandleUnknownEvent(t *testing.T) {
	store := workflow.NewMemoryStore()
	w := New(events.NewChannelBus(1), newTestRunner(store), nil)

	require.NoError(t, w.Handle(context.Background(), &events.Event{ID: "x", Name: "rag/unknown"}))
	runs, err := store.ListRunsByEvent(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

type failingStarter struct{}

func (failingStarter) Start(context.Context, string, string, any) (*workflow.Run, error) {
	return nil, errors.New("database is locked")
}

func (failingStarter) StartGated(context.Context, string, string, any, workflow.Gate) (*workflow.Run, error) {
	return nil, errors.New("database is locked")
}

func TestWorker_HandleStartError(t *testing.T) {
	w := New(events.NewChannelBus(1), failingStarter{}, nil)
	err := w.Handle(context.Background(), mustEvent(t, events.NameQueryPDF, map[string]string{"question": "q"}))
	assert.Error(t, err)
}

func TestWorker_RunConsumesBus(t *testing.T) {
	store := workflow.NewMemoryStore()
	runner := newTestRunner(store)
	bus := events.NewChannelBus(4)
	w := New(bus, runner, nil)

	event := mustEvent(t, events.NameIngestPDF, indexer.IngestInput{PDFPath: "a.pdf"})
	require.NoError(t, bus.Publish(context.Background(), event))

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	runID := workflow.RunID(event.ID, indexer.FunctionName)
	require.Eventually(t, func() bool {
		run, err := store.GetRun(context.Background(), runID)
		return err == nil && run.Status == workflow.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Close())
	assert.NoError(t, <-done)
	runner.Wait()
}

func TestWorker_ResumeGateReadmitsIngest(t *testing.T) {
	store := workflow.NewMemoryStore()
	ctx := context.Background()

	// Left queued by an admission wait cut short at shutdown.
	first := newTestRunner(store)
	ingest := mustEvent(t, events.NameIngestPDF, indexer.IngestInput{PDFPath: "/inbox/a.pdf", SourceID: "reports/a.pdf"})
	query := mustEvent(t, events.NameQueryPDF, rag.QueryInput{Question: "q"})
	rejected := New(events.NewChannelBus(1), first, &recordingAdmitter{err: context.Canceled})
	require.NoError(t, rejected.Handle(ctx, ingest))
	first.Wait()

	admitter := &recordingAdmitter{}
	restarted := newTestRunner(store)
	w := New(events.NewChannelBus(1), restarted, admitter)

	queryRun := &workflow.Run{ID: workflow.RunID(query.ID, rag.FunctionName), Function: rag.FunctionName}
	assert.Nil(t, w.ResumeGate(queryRun))

	n, err := restarted.Resume(ctx, w.ResumeGate)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	restarted.Wait()

	assert.Equal(t, []string{"reports/a.pdf"}, admitter.Keys())
	run, err := store.GetRun(ctx, workflow.RunID(ingest.ID, indexer.FunctionName))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, run.Status)
}

func TestWorker_ResumeGateWithoutAdmission(t *testing.T) {
	w := New(events.NewChannelBus(1), newTestRunner(workflow.NewMemoryStore()), nil)
	assert.Nil(t, w.ResumeGate(&workflow.Run{Function: indexer.FunctionName, Input: []byte(`{"pdf_path":"a.pdf"}`)}))
}
