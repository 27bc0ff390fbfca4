package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds. Every pipeline stage maps its failure to exactly one of these.
var (
	// ErrLoad is returned when a document cannot be read or parsed. Terminal.
	ErrLoad = errors.New("load error")
	// ErrEmbeddingProvider is returned when the embedding model call fails. Retryable.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrUpsert is returned when writing records to the vector store fails. Retryable.
	ErrUpsert = errors.New("upsert error")
	// ErrInvalidArgument is returned for bad caller input such as a non-positive top_k. Terminal.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLLMInference is returned when the language model call fails. Retryable.
	ErrLLMInference = errors.New("llm inference error")
	// ErrVectorStore is returned when a vector store read such as a search fails. Retryable.
	ErrVectorStore = errors.New("vector store error")
)

// Error is a classified pipeline failure.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type Error struct {
	Kind  error
	Stage string
	// FailedIDs lists the record ids that were not written (upsert failures only).
	FailedIDs []string
	Err       error
}

// NewError classifies err as kind at the given stage.
func NewError(kind error, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if len(e.FailedIDs) > 0 {
		msg = fmt.Sprintf("%s (%d failed ids)", msg, len(e.FailedIDs))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the substrate should retry the failed step.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrEmbeddingProvider, ErrUpsert, ErrLLMInference, ErrVectorStore:
		return true
	default:
		return false
	}
}

// KindOf returns the failure kind carried by err, or nil when err is unclassified.
func KindOf(err error) error {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return nil
}

// StageOf returns the stage recorded on err, or "" when err is unclassified.
func StageOf(err error) string {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Stage
	}
	return ""
}

// IsRetryable reports whether err should be retried.
// Unclassified errors are retried; context cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Retryable()
	}
	return true
}
