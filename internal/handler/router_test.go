package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	model "github.com/zhouzirui/bloom/backend/internal/model/chat"
	"github.com/zhouzirui/bloom/backend/internal/model/persona"
	"github.com/zhouzirui/bloom/backend/internal/service/ai"
	chatService "github.com/zhouzirui/bloom/backend/internal/service/chat"
	checkinService "github.com/zhouzirui/bloom/backend/internal/service/checkin"
	membershipService "github.com/zhouzirui/bloom/backend/internal/service/membership"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, history []model.Turn, _ string) ai.Outcome {
	return ai.Outcome{Text: "echo: " + history[len(history)-1].Text}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	personas := persona.NewMemoryStore(persona.Seed())
	center := notice.NewCenter(time.Minute, zap.NewNop())
	t.Cleanup(center.Close)

	chatSvc, err := chatService.NewService(personas, echoCompleter{}, center, zap.NewNop())
	require.NoError(t, err)

	return NewRouter(Deps{
		Personas:   personas,
		Chat:       chatSvc,
		Notices:    center,
		Membership: membershipService.NewService(zap.NewNop()),
		Checkins:   checkinService.NewService(checkinService.NewMemoryStore(), zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func TestHealthz(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestRoutesAreMountedUnderAPI(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/api/personas",
		"/api/notices/anyone",
		"/api/users/u1/checkins",
		"/api/users/u1/visits",
		"/api/users/u1/membership",
	} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestChatThroughRouter(t *testing.T) {
	r := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"personaId": persona.RecoveryCoachID})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, resp.Code)

	var state chatService.State
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &state))

	body, _ = json.Marshal(map[string]string{"text": "产后多久可以运动"})
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/sessions/"+state.Session.ID+"/messages", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, resp.Code)

	var exchange chatService.Exchange
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &exchange))
	require.NotNil(t, exchange.Reply)
	assert.Equal(t, "echo: 产后多久可以运动", exchange.Reply.Text)
}

func TestPreflightIsAnswered(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/sessions", nil))

	assert.Equal(t, http.StatusNoContent, resp.Code)
}
