// Package notice delivers short-lived messages to a scope (a chat session or
// a user) and dismisses them automatically.
package notice

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level 决定前端的提示样式。
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one transient message.
type Notice struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Text      string    `json:"text"`
	Level     Level     `json:"level"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const watcherBuffer = 8

type scopeState struct {
	active   map[string]activeNotice
	watchers map[int]chan Notice
}

type activeNotice struct {
	notice Notice
	timer  *time.Timer
}

// Center keeps active notices per scope and fans them out to watchers.
type Center struct {
	mu         sync.Mutex
	scopes     map[string]*scopeState
	nextWatch  int
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewCenter creates a Center whose notices live for defaultTTL unless Show
// is given its own duration.
func NewCenter(defaultTTL time.Duration, logger *zap.Logger) *Center {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		scopes:     make(map[string]*scopeState),
		defaultTTL: defaultTTL,
		logger:     logger.Named("notice"),
	}
}

// Show publishes a notice to scope and schedules its dismissal.
// A non-positive ttl uses the center default.
func (c *Center) Show(scope, text string, level Level, ttl time.Duration) Notice {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	n := Notice{
		ID:        uuid.NewString(),
		Scope:     scope,
		Text:      text,
		Level:     level,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}

	c.mu.Lock()
	state := c.scopeLocked(scope)
	timer := time.AfterFunc(ttl, func() { c.Dismiss(scope, n.ID) })
	state.active[n.ID] = activeNotice{notice: n, timer: timer}
	for _, ch := range state.watchers {
		select {
		case ch <- n:
		default:
			c.logger.Warn("watcher lagging, dropping notice", zap.String("scope", scope))
		}
	}
	c.mu.Unlock()

	c.logger.Debug("notice shown", zap.String("scope", scope), zap.String("level", string(level)))
	return n
}

// Dismiss removes a notice before it expires. It reports whether the notice
// was still active.
func (c *Center) Dismiss(scope, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[scope]
	if !ok {
		return false
	}
	entry, ok := state.active[id]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(state.active, id)
	c.pruneLocked(scope, state)
	return true
}

// Active lists the notices currently shown in scope, oldest first.
func (c *Center) Active(scope string) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[scope]
	if !ok {
		return nil
	}
	out := make([]Notice, 0, len(state.active))
	for _, entry := range state.active {
		out = append(out, entry.notice)
	}
	slices.SortFunc(out, func(a, b Notice) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return out
}

// Watch streams notices shown in scope after the call until ctx is done,
// at which point the channel is closed.
func (c *Center) Watch(ctx context.Context, scope string) <-chan Notice {
	ch := make(chan Notice, watcherBuffer)

	c.mu.Lock()
	state := c.scopeLocked(scope)
	id := c.nextWatch
	c.nextWatch++
	state.watchers[id] = ch
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if state, ok := c.scopes[scope]; ok {
			delete(state.watchers, id)
			c.pruneLocked(scope, state)
		}
		close(ch)
		c.mu.Unlock()
	}()

	return ch
}

// Close stops every pending dismissal timer.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, state := range c.scopes {
		for id, entry := range state.active {
			entry.timer.Stop()
			delete(state.active, id)
		}
	}
}

func (c *Center) scopeLocked(scope string) *scopeState {
	state, ok := c.scopes[scope]
	if !ok {
		state = &scopeState{
			active:   make(map[string]activeNotice),
			watchers: make(map[int]chan Notice),
		}
		c.scopes[scope] = state
	}
	return state
}

func (c *Center) pruneLocked(scope string, state *scopeState) {
	if len(state.active) == 0 && len(state.watchers) == 0 {
		delete(c.scopes, scope)
	}
}
