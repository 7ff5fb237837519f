package message

import "time"

// Kind classifies who produced a message.
type Kind string

const (
	KindHuman     Kind = "human"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
)

// AssistantSender is the sentinel identity for automated replies.
var AssistantSender = Sender{ID: "ai", Label: "AI"}

// Sender identifies the participant a message originated from.
type Sender struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Message is a single chat turn inside a project room. Body is opaque text;
// for assistant messages it may itself be a serialized structured payload.
type Message struct {
	ID        string    `json:"id,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Kind      Kind      `json:"kind"`
	Sender    Sender    `json:"sender"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupKey is the (sender, body, timestamp) triple consumers use to collapse
// duplicate deliveries. Two distinct events must never collide on it unless
// they really are retransmissions of the same message.
func (m Message) DedupKey() string {
	return m.Sender.ID + "\x00" + m.Body + "\x00" + m.Timestamp.UTC().Format(time.RFC3339Nano)
}
