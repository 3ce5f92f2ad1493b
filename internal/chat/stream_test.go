package chat

import (
	"context"
	"testing"
	"time"
)

func TestStreamTimeoutFails(t *testing.T) {
	s := &analysisStream{
		provider: &fakeStreamProvider{block: true},
		timeout:  50 * time.Millisecond,
	}

	state, _, err := s.run(context.Background(), nil, func(string) {})
	if state != StateFailed {
		t.Fatalf("expected failed state on timeout, got %v", state)
	}
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStreamCancelBeatsTimeout(t *testing.T) {
	s := &analysisStream{
		provider: &fakeStreamProvider{block: true},
		timeout:  time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	state, _, _ := s.run(ctx, nil, func(string) {})
	if state != StateCancelled {
		t.Fatalf("expected cancelled state, got %v", state)
	}
}

func TestStreamCollectsFullText(t *testing.T) {
	s := &analysisStream{provider: &fakeStreamProvider{chunks: []string{"a", "b", "c"}}}

	var emitted string
	state, text, err := s.run(context.Background(), nil, func(d string) { emitted += d })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state != StateCompleted {
		t.Fatalf("expected completed, got %v", state)
	}
	if text != "abc" || emitted != "abc" {
		t.Fatalf("text mismatch: %q / %q", text, emitted)
	}
}

func TestStreamEmptyOutputFails(t *testing.T) {
	s := &analysisStream{provider: &fakeStreamProvider{}}

	state, _, err := s.run(context.Background(), nil, func(string) {})
	if state != StateFailed {
		t.Fatalf("expected failed for empty stream, got %v", state)
	}
	if err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestStreamStateStrings(t *testing.T) {
	cases := map[StreamState]string{
		StateStreaming: "streaming",
		StateCompleted: "completed",
		StateFailed:    "failed",
		StateCancelled: "cancelled",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
