package chat

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrEmptyText = errors.New("message text is empty")
	ErrPending   = errors.New("a reply is still pending")
)

// Conversation holds the ordered turns of one session and the pending flag
// that keeps at most one completion request outstanding.
type Conversation struct {
	mu      sync.Mutex
	turns   []Turn
	pending bool
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0, 16)}
}

// AppendUser appends a user turn and marks the conversation pending.
// Blank text or an outstanding request leaves the conversation untouched.
func (c *Conversation) AppendUser(text string) (Turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Turn{}, ErrEmptyText
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		return Turn{}, ErrPending
	}

	turn := c.appendLocked(RoleUser, trimmed)
	c.pending = true
	return turn, nil
}

// AppendAssistant appends an assistant turn and clears the pending flag.
func (c *Conversation) AppendAssistant(text string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := c.appendLocked(RoleAssistant, text)
	c.pending = false
	return turn
}

// ClearPending lets the user retry after a failed request.
func (c *Conversation) ClearPending() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

// Pending reports whether a completion request is outstanding.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Snapshot returns a copy of the turns in insertion order.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make([]Turn, len(c.turns))
	copy(copied, c.turns)
	return copied
}

func (c *Conversation) appendLocked(role Role, text string) Turn {
	turn := Turn{Role: role, Text: text, Sequence: len(c.turns) + 1}
	c.turns = append(c.turns, turn)
	return turn
}
