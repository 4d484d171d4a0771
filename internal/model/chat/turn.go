package chat

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message. Sequence is the 1-based insertion position.
type Turn struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
}
