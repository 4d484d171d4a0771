// Package checkin records training check-ins and app visits per user.
package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUserRequired   = errors.New("user id is required")
	ErrCourseRequired = errors.New("course title is required")
)

// Service validates and timestamps entries before handing them to a Store.
type Service struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, now: time.Now, logger: logger.Named("checkin")}
}

// RecordCheckin logs a completed training course.
func (s *Service) RecordCheckin(ctx context.Context, userID, course string) (Entry, error) {
	course = strings.TrimSpace(course)
	if course == "" {
		return Entry{}, ErrCourseRequired
	}
	return s.record(ctx, userID, KindCheckin, course)
}

// RecordVisit logs an app launch.
func (s *Service) RecordVisit(ctx context.Context, userID string) (Entry, error) {
	return s.record(ctx, userID, KindVisit, "")
}

// List returns the user's entries of kind, newest first.
func (s *Service) List(ctx context.Context, userID string, kind Kind) ([]Entry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.store.List(ctx, userID, kind)
}

func (s *Service) record(ctx context.Context, userID string, kind Kind, title string) (Entry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Entry{}, ErrUserRequired
	}

	entry, err := s.store.Append(ctx, Entry{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Entry{}, err
	}

	s.logger.Debug("entry recorded", zap.String("user", userID), zap.String("kind", string(kind)))
	return entry, nil
}
