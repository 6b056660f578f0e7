package approval

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotPending is returned when deciding a request that is already resolved.
	ErrNotPending = errors.New("request is not pending")
	// ErrNotFound is returned for unknown request ids.
	ErrNotFound = errors.New("request not found")
)

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusExpired   RequestStatus = "expired"
	StatusCancelled RequestStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Request is a persisted approval request record, one per gated tool call.
type Request struct {
	ID           string        `json:"id"`
	TurnID       string        `json:"turn_id,omitempty"`
	CallID       string        `json:"call_id,omitempty"`
	ToolName     string        `json:"tool_name"`
	ArgsJSON     string        `json:"args_json"`
	Rationale    string        `json:"rationale,omitempty"`
	DecisionNote string        `json:"decision_note,omitempty"`
	Status       RequestStatus `json:"status"`
	RequestedAt  time.Time     `json:"requested_at"`
	ExpiresAt    time.Time     `json:"expires_at,omitempty"`
	DecidedAt    time.Time     `json:"decided_at,omitempty"`
	DecidedBy    string        `json:"decided_by,omitempty"`
}

// resolve moves the request to a terminal status. An existing note is kept.
func (r *Request) resolve(status RequestStatus, by, note string, at time.Time) {
	r.Status = status
	r.DecidedAt = at
	r.DecidedBy = by
	if strings.TrimSpace(r.DecisionNote) == "" {
		r.DecisionNote = note
	}
}

// CreateInput contains fields needed to create an approval request.
// A zero TTL leaves the request without expiry.
type CreateInput struct {
	TurnID    string
	CallID    string
	ToolName  string
	ArgsJSON  string
	Rationale string
	TTL       time.Duration
}

// DecisionInput contains fields needed to resolve a request.
type DecisionInput struct {
	DecidedBy string
	Note      string
}

// Query filters approval requests when listing.
type Query struct {
	ID       string
	TurnID   string
	Status   RequestStatus
	ToolName string
}

func (q Query) matches(r Request) bool {
	if id := strings.TrimSpace(q.ID); id != "" && r.ID != id {
		return false
	}
	if turn := strings.TrimSpace(q.TurnID); turn != "" && r.TurnID != turn {
		return false
	}
	if status := RequestStatus(strings.TrimSpace(string(q.Status))); status != "" && r.Status != status {
		return false
	}
	if tool := strings.TrimSpace(q.ToolName); tool != "" && !strings.EqualFold(r.ToolName, tool) {
		return false
	}
	return true
}

// Prompt is what the human sees for one gated call.
type Prompt struct {
	RequestID string
	TurnID    string
	CallID    string
	ToolName  string
	ArgsJSON  string
	Rationale string
	// Preview is the tool's markdown rendering of the call.
	Preview   string
	ExpiresAt time.Time
}
