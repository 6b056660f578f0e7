package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCoordinator_NewTurnGivesFreshTokens(t *testing.T) {
	c := NewCoordinator(context.Background())
	first := c.NewTurn()
	c.Cancel(first)
	second := c.NewTurn()

	if first.ID() == second.ID() {
		t.Fatal("expected distinct turn ids")
	}
	if !c.IsCancelled(first) {
		t.Fatal("expected first token cancelled")
	}
	if c.IsCancelled(second) {
		t.Fatal("expected fresh token not cancelled")
	}
}

func TestCoordinator_CancelIsIdempotentAndMonotonic(t *testing.T) {
	c := NewCoordinator(context.Background())
	tok := c.NewTurn()

	c.Cancel(tok)
	c.Cancel(tok)

	if !tok.Cancelled() {
		t.Fatal("expected token cancelled")
	}
	if !errors.Is(tok.Err(), ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", tok.Err())
	}

	c.Finish(tok)
	if !tok.Cancelled() {
		t.Fatal("finishing must not reset a cancelled token")
	}

	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to be closed")
	}
}

func TestCoordinator_FinishDoesNotMarkCancelled(t *testing.T) {
	c := NewCoordinator(context.Background())
	tok := c.NewTurn()
	c.Finish(tok)

	if tok.Cancelled() {
		t.Fatal("finished turn must not report cancelled")
	}
	c.Cancel(tok)
	if tok.Cancelled() {
		t.Fatal("cancel after finish must be a no-op")
	}
	if c.Active() != 0 {
		t.Fatalf("expected no active turns, got %d", c.Active())
	}
}

func TestCoordinator_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := NewCoordinator(parent)
	tok := c.NewTurn()

	cancel()

	if !tok.Cancelled() {
		t.Fatal("expected token cancelled through parent")
	}
	if !errors.Is(tok.Err(), context.Canceled) {
		t.Fatalf("expected parent cause, got %v", tok.Err())
	}
}

func TestCoordinator_CancelAll(t *testing.T) {
	c := NewCoordinator(context.Background())
	a := c.NewTurn()
	b := c.NewTurn()
	done := c.NewTurn()
	c.Finish(done)

	if n := c.CancelAll(); n != 2 {
		t.Fatalf("expected 2 open turns cancelled, got %d", n)
	}
	if !a.Cancelled() || !b.Cancelled() {
		t.Fatal("expected both open turns cancelled")
	}
	if done.Cancelled() {
		t.Fatal("finished turn must stay uncancelled")
	}
}

func TestToken_ConcurrentReaders(t *testing.T) {
	c := NewCoordinator(context.Background())
	tok := c.NewTurn()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-tok.Done()
			if !tok.Cancelled() {
				t.Error("reader observed Done without cancellation")
			}
		}()
	}
	c.Cancel(tok)
	wg.Wait()
}

func TestToken_NilIsSafe(t *testing.T) {
	var tok *Token
	if tok.Cancelled() {
		t.Fatal("nil token must not report cancelled")
	}
	if tok.Context() == nil {
		t.Fatal("nil token must still provide a context")
	}
}
