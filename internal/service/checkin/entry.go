package checkin

import (
	"context"
	"time"
)

// Kind separates training check-ins from app visit timestamps.
type Kind string

const (
	KindCheckin Kind = "checkin"
	KindVisit   Kind = "visit"
)

// Entry is one append-only log record.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists log entries. List returns entries newest first.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context, userID string, kind Kind) ([]Entry, error)
}
