package chat

// EventType names the server-sent event kinds emitted during an analysis
// stream.
type EventType string

const (
	EventContent    EventType = "content"
	EventToolCall   EventType = "tool_call"
	EventToolOutput EventType = "tool_output"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one frame of the analysis stream. Which fields are set depends
// on Type: Delta for content, Tool/Output for tool events, Message for
// errors, ConversationID for done.
type Event struct {
	Type           EventType `json:"type"`
	Delta          string    `json:"delta,omitempty"`
	Tool           *ToolCall `json:"tool,omitempty"`
	Output         string    `json:"output,omitempty"`
	Message        string    `json:"message,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}
