package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const auditFileName = "audit.jsonl"

// EventType names a lifecycle step of a tool call.
type EventType string

const (
	EventToolReceived     EventType = "tool_received"
	EventApprovalRequired EventType = "approval_required"
	EventApprovalGranted  EventType = "approval_granted"
	EventApprovalRejected EventType = "approval_rejected"
	EventToolResult       EventType = "tool_result"
	EventTurnCancelled    EventType = "turn_cancelled"
)

// Event is one audit record written as a single JSON line.
type Event struct {
	Time   time.Time `json:"time"`
	Type   EventType `json:"type"`
	TurnID string    `json:"turn_id,omitempty"`
	CallID string    `json:"call_id,omitempty"`
	Tool   string    `json:"tool,omitempty"`
	// Kind is the result kind for tool_result events.
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Writer appends audit events to <stateDir>/audit.jsonl. Each Append opens,
// writes and syncs the file so concurrent tether processes interleave whole lines.
type Writer struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewWriter creates an append-only audit writer under stateDir.
func NewWriter(stateDir string) *Writer {
	return &Writer{path: filepath.Join(stateDir, auditFileName), now: time.Now}
}

// Path returns the JSONL file written to.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one event as one JSONL line. A zero Time is stamped with now.
func (w *Writer) Append(event Event) error {
	if event.Time.IsZero() {
		event.Time = w.now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return appendLine(w.path, append(line, '\n'))
}

func appendLine(path string, line []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close audit log: %w", cerr)
		}
	}()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return f.Sync()
}
