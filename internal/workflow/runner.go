package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/contextutil"
)

// Func is a registered function. Its result must be JSON-serialisable.
type Func func(ctx context.Context, steps *Steps, input json.RawMessage) (any, error)

// Handle adapts a typed function to Func, decoding the run input into In.
// A malformed input is an InvalidArgument failure.
func Handle[In, Out any](fn func(ctx context.Context, steps *Steps, in In) (Out, error)) Func {
	return func(ctx context.Context, steps *Steps, input json.RawMessage) (any, error) {
		var in In
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, NewError(ErrInvalidArgument, "decode-input", err)
			}
		}
		return fn(ctx, steps, in)
	}
}

// Runner executes registered functions as durable runs.
// Run records and step outputs live in the Store, so runs interrupted by a
// restart can be resumed and will skip the steps they already completed.
type Runner struct {
	store  Store
	policy RetryPolicy
	now    func() time.Time

	mu     sync.RWMutex
	funcs  map[string]Func
	active map[string]struct{}

	wg sync.WaitGroup
}

// NewRunner creates a runner backed by store.
func NewRunner(store Store, policy RetryPolicy) *Runner {
	return &Runner{
		store:  store,
		policy: policy,
		now:    time.Now,
		funcs:  make(map[string]Func),
		active: make(map[string]struct{}),
	}
}

// Register makes fn available under name.
func (r *Runner) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// RunID derives the run id for an event and function.
// Redelivered events therefore map onto the run they already started.
func RunID(eventID, function string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID+"/"+function)).String()
}

// Start records a run for the event and executes it in the background.
// If the event already has a run for this function, that run is returned
// and only re-executed when it has not reached a terminal status.
func (r *Runner) Start(ctx context.Context, eventID, function string, input any) (*Run, error) {
	return r.start(ctx, eventID, function, input, nil)
}

// Gate blocks until a recorded run may execute. It receives the context of
// the Start or Resume call, so cancelling that context abandons the wait.
type Gate func(ctx context.Context) error

// StartGated is Start with execution held until gate returns.
// The run is recorded before gate is called; if gate fails the run stays
// queued and is picked up by the next Resume.
func (r *Runner) StartGated(ctx context.Context, eventID, function string, input any, gate Gate) (*Run, error) {
	return r.start(ctx, eventID, function, input, gate)
}

func (r *Runner) start(ctx context.Context, eventID, function string, input any, gate Gate) (*Run, error) {
	logger := contextutil.LoggerFromContext(ctx)

	r.mu.RLock()
	_, ok := r.funcs[function]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("function %q is not registered", function)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run input: %w", err)
	}

	now := r.now()
	run := &Run{
		ID:        RunID(eventID, function),
		EventID:   eventID,
		Function:  function,
		Status:    StatusQueued,
		Input:     raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The record survives a cancelled ctx so a shutdown drain can still
	// persist runs for the next Resume; only the gate observes ctx.
	storeCtx := context.WithoutCancel(ctx)
	created, err := r.store.CreateRun(storeCtx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if !created {
		existing, err := r.store.GetRun(storeCtx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing run: %w", err)
		}
		if existing.Status.Terminal() {
			logger.InfoContext(ctx, "run already finished, skipping", "run_id", existing.ID, "status", existing.Status)
			return existing, nil
		}
		run = existing
	}

	logger.InfoContext(ctx, "run queued", "run_id", run.ID, "function", function, "event_id", eventID)
	r.execAsync(ctx, run, gate)
	return run, nil
}

// GateFor returns the gate a resumed run must pass, or nil for none.
type GateFor func(run *Run) Gate

// Resume re-executes runs left queued or running, e.g. after a restart.
// Queued runs never started executing, so they pass gateFor's gate again;
// running runs were already admitted and continue at once.
func (r *Runner) Resume(ctx context.Context, gateFor GateFor) (int, error) {
	runs, err := r.store.ListRunsByStatus(ctx, StatusQueued, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished runs: %w", err)
	}
	for _, run := range runs {
		var gate Gate
		if gateFor != nil && run.Status == StatusQueued {
			gate = gateFor(run)
		}
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "resuming run", "run_id", run.ID, "function", run.Function, "stage", run.Stage, "gated", gate != nil)
		r.execAsync(ctx, run, gate)
	}
	return len(runs), nil
}

// Wait blocks until every run started by this runner has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execAsync(ctx context.Context, run *Run, gate Gate) {
	r.mu.Lock()
	if _, busy := r.active[run.ID]; busy {
		r.mu.Unlock()
		return
	}
	r.active[run.ID] = struct{}{}
	r.mu.Unlock()

	// Runs outlive the request that triggered them.
	runCtx := context.WithoutCancel(ctx)
	owned := *run
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, owned.ID)
			r.mu.Unlock()
		}()
		if gate != nil {
			if err := gate(ctx); err != nil {
				contextutil.LoggerFromContext(runCtx).WarnContext(runCtx, "run not admitted, left queued", "run_id", owned.ID, "error", err)
				return
			}
		}
		_ = r.Execute(runCtx, &owned)
	}()
}

// Execute runs a recorded run to completion in the calling goroutine and
// stores its final status. The returned error is the function's failure.
func (r *Runner) Execute(ctx context.Context, run *Run) error {
	logger := contextutil.LoggerFromContext(ctx).With(
		slog.String("run_id", run.ID),
		slog.String("event_id", run.EventID),
		slog.String("function", run.Function),
	)
	ctx = contextutil.WithLogger(ctx, logger)

	r.mu.RLock()
	fn, ok := r.funcs[run.Function]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("function %q is not registered", run.Function)
		r.finish(ctx, run, nil, err)
		return err
	}

	run.Status = StatusRunning
	run.UpdatedAt = r.now()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		logger.ErrorContext(ctx, "failed to mark run running", "error", err)
	}

	steps := NewSteps(run.ID, r.store, r.policy)
	steps.onStage = func(ctx context.Context, name string) {
		run.Stage = name
		run.UpdatedAt = r.now()
		if err := r.store.UpdateRun(ctx, run); err != nil {
			logger.WarnContext(ctx, "failed to record run stage", "stage", name, "error", err)
		}
	}

	started := r.now()
	out, err := fn(ctx, steps, run.Input)
	r.finish(ctx, run, out, err)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "run completed", "duration", r.now().Sub(started))
	return nil
}

func (r *Runner) finish(ctx context.Context, run *Run, out any, runErr error) {
	logger := contextutil.LoggerFromContext(ctx)
	run.UpdatedAt = r.now()

	switch {
	case runErr == nil:
		encoded, err := json.Marshal(out)
		if err != nil {
			runErr = fmt.Errorf("failed to encode run output: %w", err)
			break
		}
		run.Status = StatusCompleted
		run.Output = encoded
		run.Error = ""
	case errors.Is(runErr, context.Canceled):
		run.Status = StatusCancelled
		run.Error = runErr.Error()
	}

	if runErr != nil && run.Status != StatusCancelled {
		run.Status = StatusFailed
		run.Error = runErr.Error()
		if stage := StageOf(runErr); stage != "" {
			run.Stage = stage
		}
		logger.ErrorContext(ctx, "run failed", "stage", run.Stage, "kind", KindOf(runErr), "error", runErr)
	}

	if err := r.store.UpdateRun(ctx, run); err != nil {
		logger.ErrorContext(ctx, "failed to store run result", "status", run.Status, "error", err)
	}
}
