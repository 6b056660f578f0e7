package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Coordinator hands out one token per turn and cancels them on request.
type Coordinator struct {
	parent context.Context
	newID  func() string
	now    func() time.Time

	mu     sync.Mutex
	active map[string]*Token
}

// NewCoordinator creates a coordinator whose tokens derive from parent, so
// cancelling parent cancels every open turn.
func NewCoordinator(parent context.Context) *Coordinator {
	if parent == nil {
		parent = context.Background()
	}
	return &Coordinator{
		parent: parent,
		newID:  uuid.NewString,
		now:    time.Now,
		active: make(map[string]*Token),
	}
}

// NewTurn opens a turn with a fresh token.
func (c *Coordinator) NewTurn() *Token {
	ctx, cancel := context.WithCancelCause(c.parent)
	t := &Token{
		id:        c.newID(),
		startedAt: c.now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.mu.Lock()
	c.active[t.id] = t
	c.mu.Unlock()

	slog.Debug("turn opened", "turn_id", t.id)
	return t
}

// Cancel sets the token. It is idempotent and has no effect on a turn that
// already finished.
func (c *Coordinator) Cancel(t *Token) {
	if t == nil {
		return
	}
	wasCancelled := t.Cancelled()
	t.markCancelled()
	if !wasCancelled && t.Cancelled() {
		slog.Info("turn cancelled", "turn_id", t.id)
	}
}

// IsCancelled reports whether t has been cancelled.
func (c *Coordinator) IsCancelled(t *Token) bool {
	return t.Cancelled()
}

// Finish closes the turn and releases its resources without marking it cancelled.
func (c *Coordinator) Finish(t *Token) {
	if t == nil {
		return
	}
	c.mu.Lock()
	delete(c.active, t.id)
	c.mu.Unlock()

	t.release()
	slog.Debug("turn finished", "turn_id", t.id, "cancelled", t.Cancelled(), "duration_ms", c.now().Sub(t.startedAt).Milliseconds())
}

// CancelAll cancels every open turn and returns how many were open.
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	open := make([]*Token, 0, len(c.active))
	for _, t := range c.active {
		open = append(open, t)
	}
	c.mu.Unlock()

	for _, t := range open {
		c.Cancel(t)
	}
	return len(open)
}

// Active returns the number of open turns.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
