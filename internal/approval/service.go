package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// systemDecider marks resolutions made by tether itself rather than a person.
const systemDecider = "system"

// Service records the lifecycle of approval requests for one workspace.
type Service struct {
	store *fileStore
	now   func() time.Time
}

// NewService creates a service backed by <stateDir>/approvals.json.
func NewService(stateDir string) *Service {
	return &Service{store: newFileStore(stateDir), now: time.Now}
}

// Path returns the backing file.
func (s *Service) Path() string {
	return s.store.path
}

// Create records a new pending request.
func (s *Service) Create(input CreateInput) (Request, error) {
	toolName := strings.TrimSpace(input.ToolName)
	if toolName == "" {
		return Request{}, errors.New("tool_name is required")
	}

	now := s.now().UTC()
	req := Request{
		TurnID:      strings.TrimSpace(input.TurnID),
		CallID:      strings.TrimSpace(input.CallID),
		ToolName:    toolName,
		ArgsJSON:    strings.TrimSpace(input.ArgsJSON),
		Rationale:   strings.TrimSpace(input.Rationale),
		Status:      StatusPending,
		RequestedAt: now,
	}
	if input.TTL > 0 {
		req.ExpiresAt = now.Add(input.TTL)
	}

	err := s.store.update(func(l *ledger) (bool, error) {
		req.ID = l.issueID()
		l.Requests = append(l.Requests, req)
		return true, nil
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// Approve marks a pending request as approved.
func (s *Service) Approve(id string, decision DecisionInput) (Request, error) {
	return s.decide(id, StatusApproved, decision, "approved")
}

// Reject marks a pending request as rejected.
func (s *Service) Reject(id string, decision DecisionInput) (Request, error) {
	return s.decide(id, StatusRejected, decision, "rejected")
}

// Expire marks a pending request as expired.
func (s *Service) Expire(id string) (Request, error) {
	return s.decide(id, StatusExpired, DecisionInput{DecidedBy: systemDecider}, "expired by ttl")
}

// Cancel marks a pending request as cancelled because its turn was cancelled.
func (s *Service) Cancel(id string) (Request, error) {
	return s.decide(id, StatusCancelled, DecisionInput{DecidedBy: systemDecider}, "turn cancelled")
}

// List returns the requests matching query, oldest first.
func (s *Service) List(query Query) ([]Request, error) {
	var result []Request
	err := s.store.view(func(l *ledger) {
		for _, req := range l.Requests {
			if query.matches(req) {
				result = append(result, req)
			}
		}
	})
	return result, err
}

// ExpirePending marks pending requests as expired when TTL has elapsed.
func (s *Service) ExpirePending() ([]Request, error) {
	now := s.now().UTC()
	return s.sweep(StatusExpired, "expired by ttl", func(req Request) bool {
		return !req.ExpiresAt.IsZero() && !req.ExpiresAt.After(now)
	})
}

// CancelPending resolves every pending request as cancelled. It is run at
// start-up: a pending record left by a previous process can no longer be answered.
func (s *Service) CancelPending(note string) ([]Request, error) {
	if strings.TrimSpace(note) == "" {
		note = "abandoned"
	}
	return s.sweep(StatusCancelled, note, func(Request) bool { return true })
}

func (s *Service) sweep(status RequestStatus, note string, match func(Request) bool) ([]Request, error) {
	now := s.now().UTC()
	swept := []Request{}
	err := s.store.update(func(l *ledger) (bool, error) {
		for i := range l.Requests {
			req := &l.Requests[i]
			if req.Status != StatusPending || !match(*req) {
				continue
			}
			req.resolve(status, systemDecider, note, now)
			swept = append(swept, *req)
		}
		return len(swept) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

func (s *Service) decide(id string, status RequestStatus, decision DecisionInput, defaultNote string) (Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Request{}, errors.New("id is required")
	}
	decidedBy := strings.TrimSpace(decision.DecidedBy)
	if decidedBy == "" {
		decidedBy = "unknown"
	}
	note := strings.TrimSpace(decision.Note)
	if note == "" {
		note = defaultNote
	}

	now := s.now().UTC()
	var decided Request
	err := s.store.update(func(l *ledger) (bool, error) {
		req := l.find(id)
		if req == nil {
			return false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if req.Status != StatusPending {
			return false, fmt.Errorf("request %s is %s: %w", id, req.Status, ErrNotPending)
		}
		req.DecisionNote = ""
		req.resolve(status, decidedBy, note, now)
		decided = *req
		return true, nil
	})
	if err != nil {
		return Request{}, err
	}
	return decided, nil
}
