package ai

import "context"

// StreamProvider is an optional interface. Providers may implement streaming
// chat, delivering content increments on the first channel and at most one
// terminal error on the second.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
