// Package turn owns the cancellation signal shared by one generation turn:
// the model stream and every tool execution that turn triggers.
package turn

import (
	"context"
	"errors"
	"time"
)

// ErrCancelled is the cause recorded when a turn is cancelled by the user.
var ErrCancelled = errors.New("turn cancelled")

var errTurnFinished = errors.New("turn finished")

// Token is a write-once, many-reader cancellation signal. Once cancelled it
// never resets; a new turn always gets a fresh token.
type Token struct {
	id        string
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelCauseFunc
}

// ID returns the turn id.
func (t *Token) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// StartedAt returns when the turn was opened.
func (t *Token) StartedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.startedAt
}

// Context returns the context every blocking call in the turn must honour.
func (t *Token) Context() context.Context {
	if t == nil {
		return context.Background()
	}
	return t.ctx
}

// Done is closed when the turn is cancelled or finished.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.ctx.Done()
}

// Cancelled reports whether the turn was cancelled, either directly or
// through its parent context. A turn that finished normally is not cancelled.
func (t *Token) Cancelled() bool {
	if t == nil || t.ctx.Err() == nil {
		return false
	}
	return !errors.Is(context.Cause(t.ctx), errTurnFinished)
}

// Err returns ErrCancelled, or the parent's cause, once the turn is cancelled.
func (t *Token) Err() error {
	if !t.Cancelled() {
		return nil
	}
	if cause := context.Cause(t.ctx); cause != nil {
		return cause
	}
	return ErrCancelled
}

func (t *Token) markCancelled() {
	t.cancel(ErrCancelled)
}

func (t *Token) release() {
	t.cancel(errTurnFinished)
}
