package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewChatModel(Config{APIKey: "sk-test", Endpoint: srv.URL, Model: "deepseek-chat"})
	require.NoError(t, err)
	return m
}

func TestNewChatModelValidation(t *testing.T) {
	_, err := NewChatModel(Config{Model: "deepseek-chat"})
	require.Error(t, err)

	_, err = NewChatModel(Config{Endpoint: "http://localhost"})
	require.Error(t, err)

	m, err := NewChatModel(Config{Endpoint: "http://localhost", Model: "deepseek-chat"})
	require.NoError(t, err)
	require.NotNil(t, m.httpClient)
}

func TestGenerateSendsWireBody(t *testing.T) {
	var raw []byte
	var method, auth, contentType string
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"多休息"}}]}`))
	})

	reply, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("coach"),
		schema.UserMessage("腰疼怎么办"),
	})
	require.NoError(t, err)
	require.Equal(t, "多休息", reply.Content)
	require.Equal(t, schema.Assistant, reply.Role)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "deepseek-chat", got["model"])
	require.Equal(t, false, got["stream"])
	require.NotContains(t, got, "temperature")
	require.Equal(t, []any{
		map[string]any{"role": "system", "content": "coach"},
		map[string]any{"role": "user", "content": "腰疼怎么办"},
	}, got["messages"])
}

func TestGenerateHonorsModelOptions(t *testing.T) {
	var got chatRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")},
		model.WithModel("deepseek-reasoner"), model.WithTemperature(0.3))
	require.NoError(t, err)
	require.Equal(t, "deepseek-reasoner", got.Model)
	require.NotNil(t, got.Temperature)
	require.InDelta(t, 0.3, *got.Temperature, 1e-6)
}

func TestGenerateStatusError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Insufficient Balance"}}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusPaymentRequired, statusErr.StatusCode)
	require.Equal(t, "Insufficient Balance", statusErr.Message)
}

func TestGenerateEmptyOrMalformedChoices(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     `{"choices":[]}`,
		"missing":   `{}`,
		"malformed": `not json`,
	} {
		t.Run(name, func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
			require.ErrorIs(t, err, ErrEmptyChoices)
		})
	}
}

func TestGenerateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	m, err := NewChatModel(Config{APIKey: "sk-test", Endpoint: url, Model: "deepseek-chat"})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
	require.NotErrorIs(t, err, ErrEmptyChoices)
}

func TestStreamYieldsSingleMessage(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"抱抱"}}]}`))
	})

	reader, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer reader.Close()

	msg, err := reader.Recv()
	require.NoError(t, err)
	require.Equal(t, "抱抱", msg.Content)

	_, err = reader.Recv()
	require.ErrorIs(t, err, io.EOF)
}
