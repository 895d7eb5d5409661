package amqp

import (
	"encoding/json"
	"time"
)

// ChangeMessage is the changefeed payload published after every committed
// write. It carries only the identity of what changed; consumers re-read
// the store for current state.
type ChangeMessage struct {
	Entity    string    `json:"entity"` // "entry" or "category"
	Op        string    `json:"op"`     // "created", "updated", "deleted"
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a changefeed message stamped with the current time.
func NewChangeMessage(entity, op string, id int64) *ChangeMessage {
	return &ChangeMessage{
		Entity:    entity,
		Op:        op,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
