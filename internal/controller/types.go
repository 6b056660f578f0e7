package controller

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Kind classifies a tool call result.
type Kind string

const (
	KindSuccess           Kind = "success"
	KindValidationFailure Kind = "validation_failure"
	KindExecutionFailure  Kind = "execution_failure"
	KindUserRejected      Kind = "user_rejected"
	KindCancelled         Kind = "cancelled"
)

// Kinds lists every result kind in reporting order.
var Kinds = []Kind{KindSuccess, KindValidationFailure, KindExecutionFailure, KindUserRejected, KindCancelled}

// Failed reports whether the kind is anything but success.
func (k Kind) Failed() bool {
	return k != KindSuccess
}

// Request is one tool call emitted by the model. ID is unique within a turn
// and correlates the call with its result.
type Request struct {
	ID        string
	Name      string
	Arguments string
}

// Result is the outcome of one Request. Exactly one is produced per request.
type Result struct {
	ID      string
	Name    string
	Content string
	Kind    Kind
}

// Message converts the result into the tool message fed back to the model.
func (r Result) Message() *schema.Message {
	return &schema.Message{
		Role:       schema.Tool,
		Content:    r.Content,
		ToolCallID: r.ID,
	}
}

// RequestsFromToolCalls builds requests from model tool calls. Missing or
// repeated ids are replaced in calls itself, so the assistant message that
// owns the slice stays consistent with the results.
func RequestsFromToolCalls(calls []schema.ToolCall) []Request {
	seen := make(map[string]struct{}, len(calls))
	requests := make([]Request, 0, len(calls))
	for i := range calls {
		id := calls[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = "call_" + uuid.NewString()
			calls[i].ID = id
		}
		seen[id] = struct{}{}
		requests = append(requests, Request{
			ID:        id,
			Name:      calls[i].Function.Name,
			Arguments: calls[i].Function.Arguments,
		})
	}
	return requests
}

func rejectedMessage(tool string) string {
	return fmt.Sprintf("User declined to run %s.", tool)
}

func cancelledMessage(tool string) string {
	return fmt.Sprintf("Cancelled: %s did not run to completion.", tool)
}

func unknownToolMessage(tool string) string {
	return fmt.Sprintf("Error: unknown tool %q", tool)
}

func errorMessage(err error) string {
	return "Error: " + err.Error()
}
