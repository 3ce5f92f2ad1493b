package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// JSONProvider is an optional interface. Providers may support structured
// JSON-object output, used by the intent extraction stage.
type JSONProvider interface {
	ChatJSON(ctx context.Context, messages []Message) (string, error)
}
