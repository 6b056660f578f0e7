// Package agent drives the conversation: it streams model output, hands tool
// calls to the invocation controller and feeds the results back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/tether/internal/controller"
	"github.com/MEKXH/tether/internal/metrics"
	"github.com/MEKXH/tether/internal/turn"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxIterations bounds model round trips per user message.
const DefaultMaxIterations = 20

// ErrNoModel is returned when the loop has no chat model.
var ErrNoModel = errors.New("no model configured")

// Options configures a Loop.
type Options struct {
	Model         model.BaseChatModel
	Controller    *controller.Controller
	Coordinator   *turn.Coordinator
	Context       *ContextBuilder
	Metrics       *metrics.RuntimeMetrics
	MaxIterations int
}

// Loop is the conversation loop. History lives in memory only.
type Loop struct {
	model         model.BaseChatModel
	controller    *controller.Controller
	coordinator   *turn.Coordinator
	context       *ContextBuilder
	metrics       *metrics.RuntimeMetrics
	maxIterations int
	now           func() time.Time

	mu      sync.Mutex
	history []*schema.Message
	bound   bool

	// OnDelta receives streamed assistant text as it arrives.
	OnDelta func(chunk string)
}

// NewLoop creates a conversation loop.
func NewLoop(opts Options) (*Loop, error) {
	if opts.Controller == nil {
		return nil, fmt.Errorf("agent: controller is required")
	}
	coordinator := opts.Coordinator
	if coordinator == nil {
		coordinator = turn.NewCoordinator(context.Background())
	}
	builder := opts.Context
	if builder == nil {
		builder = NewContextBuilder("", nil, opts.Controller.Registry().Names)
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		model:         opts.Model,
		controller:    opts.Controller,
		coordinator:   coordinator,
		context:       builder,
		metrics:       opts.Metrics,
		maxIterations: maxIterations,
		now:           time.Now,
	}, nil
}

// Coordinator returns the coordinator that owns this loop's turn tokens.
func (l *Loop) Coordinator() *turn.Coordinator {
	return l.coordinator
}

// History returns a copy of the conversation so far.
func (l *Loop) History() []*schema.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*schema.Message(nil), l.history...)
}

// Reset clears the conversation.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.history = nil
	l.mu.Unlock()
}

func (l *Loop) bindTools(ctx context.Context) error {
	if l.bound || l.model == nil {
		return nil
	}
	toolInfos, err := l.controller.Registry().ToolInfos(ctx)
	if err != nil {
		return err
	}
	if binder, ok := l.model.(interface {
		BindTools([]*schema.ToolInfo) error
	}); ok {
		if err := binder.BindTools(toolInfos); err != nil {
			return err
		}
	}
	l.bound = true
	return nil
}

// Process runs one user message to completion: model round trips and tool
// batches until the model answers without tool calls or the iteration limit
// is reached. A cancelled turn returns the partial reply and an error
// matching turn.ErrCancelled; the history keeps everything that completed.
func (l *Loop) Process(ctx context.Context, input string) (string, error) {
	if l.model == nil {
		return "", ErrNoModel
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.bindTools(ctx); err != nil {
		return "", fmt.Errorf("bind tools: %w", err)
	}

	token := l.coordinator.NewTurn()
	defer l.coordinator.Finish(token)
	started := l.now()
	stop := context.AfterFunc(ctx, func() { l.coordinator.Cancel(token) })
	defer stop()

	logger := slog.With("turn_id", token.ID())
	logger.Info("turn started")

	messages := l.context.BuildMessages(l.history, input)
	// messages[0] is the system prompt, rebuilt every turn.
	commit := func() {
		l.history = append([]*schema.Message(nil), messages[1:]...)
	}

	var finalContent string
	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.stream(token, messages)
		if token.Cancelled() {
			if resp != nil && strings.TrimSpace(resp.Content) != "" {
				messages = append(messages, schema.AssistantMessage(resp.Content, nil))
				finalContent = resp.Content
			}
			commit()
			l.finishTurn(logger, started, true)
			return finalContent, token.Err()
		}
		if err != nil {
			commit()
			l.finishTurn(logger, started, false)
			return "", fmt.Errorf("model stream: %w", err)
		}

		if resp.Content != "" {
			finalContent = resp.Content
		}
		messages = append(messages, resp)
		if len(resp.ToolCalls) == 0 {
			break
		}

		requests := controller.RequestsFromToolCalls(resp.ToolCalls)
		results, err := l.controller.RunTurn(token, requests)
		if err != nil {
			commit()
			l.finishTurn(logger, started, false)
			return "", err
		}
		for _, res := range results {
			messages = append(messages, res.Message())
		}
		if token.Cancelled() {
			commit()
			l.finishTurn(logger, started, true)
			return finalContent, token.Err()
		}
		if i == l.maxIterations-1 {
			logger.Warn("tool iteration limit reached", "max_tool_iterations", l.maxIterations)
		}
	}

	if finalContent == "" {
		finalContent = "Processing complete."
	}
	commit()
	l.finishTurn(logger, started, false)
	return finalContent, nil
}

func (l *Loop) finishTurn(logger *slog.Logger, started time.Time, cancelled bool) {
	logger.Info("turn finished", "cancelled", cancelled, "duration_ms", l.now().Sub(started).Milliseconds())
	if l.metrics == nil {
		return
	}
	if _, err := l.metrics.RecordTurn(cancelled); err != nil {
		logger.Warn("record runtime metrics failed", "scope", "turn", "error", err)
	}
}

type streamChunk struct {
	msg *schema.Message
	err error
}

// stream reads one model response, forwarding text deltas, and returns the
// concatenated message. It stops reading as soon as the token is cancelled
// and returns whatever text had arrived.
func (l *Loop) stream(token *turn.Token, messages []*schema.Message) (*schema.Message, error) {
	reader, err := l.model.Stream(token.Context(), messages)
	if err != nil {
		return nil, err
	}

	chunks := make(chan streamChunk)
	go func() {
		defer reader.Close()
		defer close(chunks)
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case chunks <- streamChunk{msg: msg, err: err}:
			case <-token.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var parts []*schema.Message
	var text strings.Builder
	for {
		select {
		case <-token.Done():
			return schema.AssistantMessage(text.String(), nil), token.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if len(parts) == 0 {
					return schema.AssistantMessage("", nil), nil
				}
				return schema.ConcatMessages(parts)
			}
			if chunk.err != nil {
				return nil, chunk.err
			}
			if chunk.msg == nil {
				continue
			}
			parts = append(parts, chunk.msg)
			if chunk.msg.Content != "" {
				text.WriteString(chunk.msg.Content)
				if l.OnDelta != nil {
					l.OnDelta(chunk.msg.Content)
				}
			}
		}
	}
}
