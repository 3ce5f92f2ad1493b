package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/draftkiller/backend/internal/ai"
)

// StreamState is the terminal outcome of one analysis stream.
type StreamState int

const (
	StateStreaming StreamState = iota
	StateCompleted
	StateFailed
	StateCancelled
)

func (s StreamState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// analysisStream drives one provider stream to exactly one terminal state.
// A stream that closes cleanly but produced no text counts as failed, not
// completed.
type analysisStream struct {
	provider ai.StreamProvider
	timeout  time.Duration
}

// run consumes the provider's channels, forwarding each chunk through emit.
// The returned state is terminal: Completed with the full text, Failed with
// the underlying error, or Cancelled when the parent context was cancelled
// by the client.
func (a *analysisStream) run(parent context.Context, msgs []ai.Message, emit func(delta string)) (StreamState, string, error) {
	ctx := parent
	var cancel context.CancelFunc
	if a.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, a.timeout)
		defer cancel()
	}

	chunks, errs := a.provider.StreamChat(ctx, msgs)

	var sb strings.Builder
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// the provider may have parked an error before closing
				select {
				case err := <-errs:
					return a.finish(parent, sb.String(), err)
				default:
					return a.finish(parent, sb.String(), nil)
				}
			}
			sb.WriteString(chunk)
			emit(chunk)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return a.finish(parent, sb.String(), err)
			}
		case <-ctx.Done():
			return a.finish(parent, sb.String(), ctx.Err())
		}
	}
}

func (a *analysisStream) finish(parent context.Context, text string, err error) (StreamState, string, error) {
	// Client disconnect wins over everything, including a timeout that
	// fired in the same instant.
	if errors.Is(parent.Err(), context.Canceled) {
		return StateCancelled, text, parent.Err()
	}
	if err != nil {
		return StateFailed, text, err
	}
	if strings.TrimSpace(text) == "" {
		return StateFailed, text, errors.New("model produced no output")
	}
	return StateCompleted, text, nil
}
