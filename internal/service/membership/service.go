// Package membership is the single source of truth for a user's VIP status.
package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrUserRequired = errors.New("user id is required")

// Status is a snapshot of one user's membership.
type Status struct {
	UserID      string    `json:"userId"`
	VIP         bool      `json:"vip"`
	ActivatedAt time.Time `json:"activatedAt,omitempty"`
}

// Listener is called after a status change, outside the service lock.
type Listener func(Status)

// Service keeps membership state and notifies subscribers of changes.
type Service struct {
	mu        sync.RWMutex
	statuses  map[string]Status
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates an empty membership registry.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		statuses:  make(map[string]Status),
		listeners: make(map[int]Listener),
		now:       time.Now,
		logger:    logger.Named("membership"),
	}
}

// Get returns the user's status; unknown users are not VIP.
func (s *Service) Get(userID string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.statuses[userID]; ok {
		return st
	}
	return Status{UserID: userID}
}

// Activate marks the user as VIP. Activating an active member is a no-op and
// does not notify listeners.
func (s *Service) Activate(_ context.Context, userID string) (Status, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Status{}, ErrUserRequired
	}

	s.mu.Lock()
	if st, ok := s.statuses[userID]; ok && st.VIP {
		s.mu.Unlock()
		return st, nil
	}
	st := Status{UserID: userID, VIP: true, ActivatedAt: s.now().UTC()}
	s.statuses[userID] = st
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Info("membership activated", zap.String("user", userID))
	for _, fn := range listeners {
		fn(st)
	}
	return st, nil
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (s *Service) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
