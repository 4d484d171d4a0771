package chat

import "time"

// Session captures a transient anonymous conversation bound to one persona.
// It lives for a single screen visit.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
