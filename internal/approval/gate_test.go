package approval

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGate_ApproveAndRejectAreRecorded(t *testing.T) {
	svc := NewService(t.TempDir())
	answers := []bool{true, false}
	var seen []Prompt
	gate := NewGate(svc, PrompterFunc(func(ctx context.Context, p Prompt) (bool, error) {
		seen = append(seen, p)
		answer := answers[0]
		answers = answers[1:]
		return answer, nil
	}), 0)

	ok, err := gate.Approve(context.Background(), Prompt{TurnID: "t1", CallID: "c1", ToolName: "write_file", ArgsJSON: `{"path":"a"}`})
	if err != nil || !ok {
		t.Fatalf("expected approval, got ok=%v err=%v", ok, err)
	}
	ok, err = gate.Approve(context.Background(), Prompt{TurnID: "t1", CallID: "c2", ToolName: "exec"})
	if err != nil || ok {
		t.Fatalf("expected rejection, got ok=%v err=%v", ok, err)
	}

	if seen[0].RequestID == "" || seen[0].RequestID == seen[1].RequestID {
		t.Fatalf("expected distinct record ids in prompts, got %q and %q", seen[0].RequestID, seen[1].RequestID)
	}

	records, err := svc.List(Query{TurnID: "t1"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != StatusApproved || records[0].CallID != "c1" || records[0].DecidedBy != "user" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Status != StatusRejected {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestGate_TTLExpiryResolvesAsRejection(t *testing.T) {
	svc := NewService(t.TempDir())
	release := make(chan struct{})
	defer close(release)

	// The prompter ignores ctx to prove the gate enforces the TTL itself.
	gate := NewGate(svc, PrompterFunc(func(ctx context.Context, p Prompt) (bool, error) {
		<-release
		return true, nil
	}), 50*time.Millisecond)

	start := time.Now()
	ok, err := gate.Approve(context.Background(), Prompt{CallID: "c1", ToolName: "exec"})
	if err != nil {
		t.Fatalf("expiry should not be an error, got %v", err)
	}
	if ok {
		t.Fatal("expired prompt must not approve")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("gate did not honour the TTL")
	}

	records, _ := svc.List(Query{Status: StatusExpired})
	if len(records) != 1 || records[0].DecidedBy != "system" {
		t.Fatalf("expected one expired record, got %+v", records)
	}
}

func TestGate_CancelledContextMarksRecordCancelled(t *testing.T) {
	svc := NewService(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())

	gate := NewGate(svc, PrompterFunc(func(ctx context.Context, p Prompt) (bool, error) {
		cancel()
		<-ctx.Done()
		return false, ctx.Err()
	}), 0)

	ok, err := gate.Approve(ctx, Prompt{CallID: "c1", ToolName: "exec"})
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got ok=%v err=%v", ok, err)
	}

	records, _ := svc.List(Query{})
	if len(records) != 1 || records[0].Status != StatusCancelled {
		t.Fatalf("expected cancelled record, got %+v", records)
	}
}

func TestGate_PrompterErrorIsReturned(t *testing.T) {
	boom := errors.New("terminal closed")
	gate := NewGate(nil, PrompterFunc(func(ctx context.Context, p Prompt) (bool, error) {
		return false, boom
	}), 0)

	if _, err := gate.Approve(context.Background(), Prompt{ToolName: "exec"}); !errors.Is(err, boom) {
		t.Fatalf("expected prompter error, got %v", err)
	}
}

func TestGate_WithoutPrompterFails(t *testing.T) {
	if _, err := NewGate(nil, nil, 0).Approve(context.Background(), Prompt{ToolName: "exec"}); err == nil {
		t.Fatal("expected error without a prompter")
	}
}
