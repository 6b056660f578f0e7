package approval

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Prompter asks a human about one call. It should return when ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, p Prompt) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, p Prompt) (bool, error)

func (f PrompterFunc) Prompt(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Gate records every gated call and blocks on the human decision. An
// unanswered prompt past the TTL resolves as a rejection.
type Gate struct {
	service  *Service
	prompter Prompter
	ttl      time.Duration
}

// NewGate builds a gate. service may be nil, in which case nothing is persisted.
func NewGate(service *Service, prompter Prompter, ttl time.Duration) *Gate {
	if ttl < 0 {
		ttl = 0
	}
	return &Gate{service: service, prompter: prompter, ttl: ttl}
}

type promptOutcome struct {
	approved bool
	err      error
}

// Approve records the request, asks the prompter and records the outcome.
// A cancelled ctx returns ctx's error and marks the record cancelled.
func (g *Gate) Approve(ctx context.Context, p Prompt) (bool, error) {
	if g.prompter == nil {
		return false, errors.New("no approval prompter configured")
	}

	if g.service != nil {
		req, err := g.service.Create(CreateInput{
			TurnID:    p.TurnID,
			CallID:    p.CallID,
			ToolName:  p.ToolName,
			ArgsJSON:  p.ArgsJSON,
			Rationale: p.Rationale,
			TTL:       g.ttl,
		})
		if err != nil {
			slog.Warn("approval record not persisted", "tool", p.ToolName, "call_id", p.CallID, "error", err)
		} else {
			p.RequestID = req.ID
			p.ExpiresAt = req.ExpiresAt
		}
	}
	if p.ExpiresAt.IsZero() && g.ttl > 0 {
		p.ExpiresAt = time.Now().Add(g.ttl)
	}

	promptCtx := ctx
	if g.ttl > 0 {
		var cancel context.CancelFunc
		promptCtx, cancel = context.WithTimeout(ctx, g.ttl)
		defer cancel()
	}

	done := make(chan promptOutcome, 1)
	go func() {
		approved, err := g.prompter.Prompt(promptCtx, p)
		done <- promptOutcome{approved: approved, err: err}
	}()

	var outcome promptOutcome
	select {
	case outcome = <-done:
	case <-promptCtx.Done():
	}

	switch {
	case ctx.Err() != nil:
		g.record(p, (*Service).Cancel)
		return false, context.Cause(ctx)
	case promptCtx.Err() != nil && !outcome.approved:
		slog.Info("approval expired", "tool", p.ToolName, "call_id", p.CallID, "ttl", g.ttl)
		g.record(p, (*Service).Expire)
		return false, nil
	case outcome.err != nil:
		g.record(p, (*Service).Cancel)
		return false, outcome.err
	case outcome.approved:
		g.decide(p, (*Service).Approve)
		return true, nil
	default:
		g.decide(p, (*Service).Reject)
		return false, nil
	}
}

func (g *Gate) record(p Prompt, resolve func(*Service, string) (Request, error)) {
	if g.service == nil || p.RequestID == "" {
		return
	}
	if _, err := resolve(g.service, p.RequestID); err != nil {
		slog.Warn("approval record not updated", "request_id", p.RequestID, "error", err)
	}
}

func (g *Gate) decide(p Prompt, resolve func(*Service, string, DecisionInput) (Request, error)) {
	g.record(p, func(s *Service, id string) (Request, error) {
		return resolve(s, id, DecisionInput{DecidedBy: "user"})
	})
}
