package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/model/chat"
	"github.com/zhouzirui/bloom/backend/internal/model/persona"
	"github.com/zhouzirui/bloom/backend/internal/service/ai"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoCompleter     = errors.New("chat service requires a completer")
)

// Completer performs one completion round trip.
type Completer interface {
	Complete(ctx context.Context, history []chat.Turn, persona string) ai.Outcome
}

// Notifier shows a transient notice in a scope.
type Notifier interface {
	Show(scope, text string, level notice.Level, ttl time.Duration) notice.Notice
}

// Exchange is the result of one Send.
type Exchange struct {
	UserTurn chat.Turn  `json:"userTurn"`
	Reply    *chat.Turn `json:"reply,omitempty"`
	Outcome  ai.Outcome `json:"outcome"`
}

// State is a read-only view of a live session.
type State struct {
	Session chat.Session `json:"session"`
	Turns   []chat.Turn  `json:"turns"`
	Pending bool         `json:"pending"`
}

type entry struct {
	session      chat.Session
	persona      persona.Persona
	conversation *chat.Conversation
}

// Service owns the live sessions, one per chat screen visit.
type Service struct {
	mu        sync.RWMutex
	sessions  map[string]*entry
	personas  persona.Store
	completer Completer
	notifier  Notifier
	logger    *zap.Logger
}

// NewService wires the chat service. notifier may be nil, in which case
// transport faults only clear the pending flag.
func NewService(personas persona.Store, completer Completer, notifier Notifier, logger *zap.Logger) (*Service, error) {
	if completer == nil {
		return nil, ErrNoCompleter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:  make(map[string]*entry),
		personas:  personas,
		completer: completer,
		notifier:  notifier,
		logger:    logger.Named("chat"),
	}, nil
}

// CreateSession opens a session bound to a persona. A persona opening line
// becomes the first assistant turn.
func (s *Service) CreateSession(_ context.Context, personaID string) (State, error) {
	personaID = strings.TrimSpace(personaID)
	if personaID == "" {
		return State{}, ErrPersonaRequired
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return State{}, ErrPersonaNotFound
	}

	e := &entry{
		session: chat.Session{
			ID:        uuid.NewString(),
			PersonaID: p.ID,
			CreatedAt: time.Now().UTC(),
		},
		persona:      p,
		conversation: chat.NewConversation(),
	}
	if p.OpeningLine != "" {
		e.conversation.AppendAssistant(p.OpeningLine)
	}

	s.mu.Lock()
	s.sessions[e.session.ID] = e
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", e.session.ID), zap.String("persona", p.ID))
	return stateOf(e), nil
}

// GetSession retrieves session metadata by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Persona returns the persona bound to a session.
func (s *Service) Persona(_ context.Context, sessionID string) (persona.Persona, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return persona.Persona{}, err
	}
	return e.persona, nil
}

// Snapshot returns the session's turns and pending flag.
func (s *Service) Snapshot(_ context.Context, sessionID string) (State, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return State{}, err
	}
	return stateOf(e), nil
}

// CloseSession discards a session when its screen is left.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.logger.Info("session closed", zap.String("session", sessionID))
	return nil
}

// Attempt is an accepted user turn whose reply is still outstanding.
type Attempt struct {
	UserTurn chat.Turn

	svc       *Service
	sessionID string
	entry     *entry
}

// Accept appends the user's text and marks the session pending. Blank text and
// sends while a reply is pending return chat.ErrEmptyText and chat.ErrPending
// without touching the session.
func (s *Service) Accept(_ context.Context, sessionID, text string) (*Attempt, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	userTurn, err := e.conversation.AppendUser(text)
	if err != nil {
		return nil, err
	}
	return &Attempt{UserTurn: userTurn, svc: s, sessionID: sessionID, entry: e}, nil
}

// Finish runs the completion for an accepted turn and records the result.
// If the session was closed meanwhile, nothing is recorded or shown and
// ErrSessionNotFound is returned along with the outcome.
func (a *Attempt) Finish(ctx context.Context) (Exchange, error) {
	s, e := a.svc, a.entry

	outcome := s.completer.Complete(ctx, e.conversation.Snapshot(), e.persona.Instruction)
	exchange := Exchange{UserTurn: a.UserTurn, Outcome: outcome}

	if current, err := s.lookup(a.sessionID); err != nil || current != e {
		s.logger.Info("session closed before reply",
			zap.String("session", a.sessionID),
			zap.String("fault", string(outcome.Fault)),
		)
		return exchange, ErrSessionNotFound
	}

	if outcome.Delivered() {
		reply := e.conversation.AppendAssistant(outcome.Text)
		exchange.Reply = &reply
	} else {
		e.conversation.ClearPending()
		if outcome.Fault == ai.FaultTransport && s.notifier != nil {
			s.notifier.Show(a.sessionID, e.persona.Notice(), notice.LevelError, 0)
		}
	}

	s.logger.Info("exchange finished",
		zap.String("session", a.sessionID),
		zap.String("fault", string(outcome.Fault)),
		zap.Bool("delivered", outcome.Delivered()),
	)
	return exchange, nil
}

// Send is Accept followed by Finish.
func (s *Service) Send(ctx context.Context, sessionID, text string) (Exchange, error) {
	attempt, err := s.Accept(ctx, sessionID, text)
	if err != nil {
		return Exchange{}, err
	}
	return attempt.Finish(ctx)
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func stateOf(e *entry) State {
	return State{
		Session: e.session,
		Turns:   e.conversation.Snapshot(),
		Pending: e.conversation.Pending(),
	}
}
