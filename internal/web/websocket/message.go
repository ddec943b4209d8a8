package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types sent to clients
const (
	TypeWelcome      = "welcome"
	TypeNotification = "notification"
	TypePong         = "pong"
	TypeError        = "error"
)

// Message is the frame exchanged with clients
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Sent time.Time       `json:"sent_at"`
}

// NewMessage marshals payload into a message of type msgType
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Sent: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// inbound is what clients may send. Only pings are understood; the stream
// is otherwise one-way.
type inbound struct {
	Type string `json:"type"`
}

func reply(data []byte) (*Message, bool) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		msg, _ := NewMessage(TypeError, map[string]string{"message": "invalid message"})
		return msg, true
	}
	if in.Type == "ping" {
		msg, _ := NewMessage(TypePong, nil)
		return msg, true
	}
	return nil, false
}
