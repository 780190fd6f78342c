package command

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// conversationCap bounds the retained messages per node.
const conversationCap = 200

// Message is one row of a node conversation.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Conversations holds the in-memory message log per fleet node. The log is
// a ring: when a node exceeds the cap its oldest messages are discarded.
// Restarting the server clears it; durable state lives in the store files.
type Conversations struct {
	mu    sync.Mutex
	byKey map[string][]Message
	now   func() time.Time
}

// NewConversations creates an empty conversation store.
func NewConversations() *Conversations {
	return &Conversations{byKey: make(map[string][]Message), now: time.Now}
}

// Append records a message for a node and returns it with id and timestamp.
func (c *Conversations) Append(node, role, text string) Message {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	log := append(c.byKey[node], msg)
	if len(log) > conversationCap {
		log = log[len(log)-conversationCap:]
	}
	c.byKey[node] = log
	return msg
}

// List returns up to limit most recent messages for a node, oldest first.
// limit <= 0 returns everything retained.
func (c *Conversations) List(node string, limit int) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	log := c.byKey[node]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]Message, len(log))
	copy(out, log)
	return out
}
