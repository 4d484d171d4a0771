package checkin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/service/checkin"
)

func setupRouter() *chi.Mux {
	svc := checkin.NewService(checkin.NewMemoryStore(), zap.NewNop())
	r := chi.NewRouter()
	New(svc, zap.NewNop()).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(method, path, strings.NewReader(body)))
	return resp
}

func TestCheckinRoundTrip(t *testing.T) {
	r := setupRouter()

	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/users/u1/checkins", `{"course":"盆底肌修复"}`).Code)
	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/users/u1/checkins", `{"course":"腹直肌分离"}`).Code)

	resp := serve(r, http.MethodGet, "/users/u1/checkins", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var entries []checkin.Entry
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "腹直肌分离", entries[0].Title)
	assert.Equal(t, checkin.KindCheckin, entries[0].Kind)

	assert.JSONEq(t, `[]`, serve(r, http.MethodGet, "/users/u1/visits", "").Body.String())
}

func TestCheckinRequiresCourse(t *testing.T) {
	r := setupRouter()

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/users/u1/checkins", `{"course":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/users/u1/checkins", `not json`).Code)
}

func TestRecordVisit(t *testing.T) {
	r := setupRouter()

	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/users/u1/visits", "").Code)

	var entries []checkin.Entry
	require.NoError(t, json.Unmarshal(serve(r, http.MethodGet, "/users/u1/visits", "").Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, checkin.KindVisit, entries[0].Kind)
}
