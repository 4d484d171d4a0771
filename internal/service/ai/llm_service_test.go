package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/config"
	"github.com/zhouzirui/bloom/backend/internal/model/chat"
)

const coachPersona = "你是一位专业的产后康复教练，语气温柔但专业，回答简短实用，专注于产后恢复知识。"

type upstream struct {
	srv    *httptest.Server
	calls  atomic.Int32
	bodies chan []byte
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{bodies: make(chan []byte, 8)}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		u.bodies <- raw
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newService(t *testing.T, apiKey, endpoint string) *Service {
	t.Helper()
	svc, err := NewService(config.AIConfig{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Model:    config.DefaultModel,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func userTurn(text string, seq int) chat.Turn {
	return chat.Turn{Role: chat.RoleUser, Text: text, Sequence: seq}
}

func TestCompleteFirstTurnWireBody(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"先热敷，再做猫牛式。"}}]}`)
	svc := newService(t, "sk-test", up.srv.URL)

	outcome := svc.Complete(context.Background(), []chat.Turn{userTurn("腰疼怎么办", 1)}, coachPersona)

	require.True(t, outcome.OK())
	assert.Equal(t, "先热敷，再做猫牛式。", outcome.Text)

	var body struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(<-up.bodies, &body))
	assert.Equal(t, "deepseek-chat", body.Model)
	assert.False(t, body.Stream)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, coachPersona, body.Messages[0].Content)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, "腰疼怎么办", body.Messages[1].Content)
}

func TestBuildMessagesRoundTrip(t *testing.T) {
	svc := newService(t, "sk-test", "http://unused.invalid")
	history := []chat.Turn{
		{Role: chat.RoleAssistant, Text: "亲爱的，我一直都在。", Sequence: 1},
		userTurn("好累 {也} 好困", 2),
		{Role: chat.RoleAssistant, Text: "抱抱你", Sequence: 3},
		userTurn("  带娃好难  ", 4),
	}

	messages, err := svc.BuildMessages(context.Background(), history, "闺蜜")
	require.NoError(t, err)
	require.Len(t, messages, len(history)+1)

	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, "闺蜜", messages[0].Content)
	for i, turn := range history {
		msg := messages[i+1]
		assert.Equal(t, string(turn.Role), string(msg.Role))
		assert.Equal(t, turn.Text, msg.Content)
	}
}

func TestCompleteWithoutCredentialSkipsNetwork(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"unreachable"}}]}`)

	for _, key := range []string{"", "YOUR_DEEPSEEK_API_KEY"} {
		svc := newService(t, key, up.srv.URL)
		outcome := svc.Complete(context.Background(), []chat.Turn{userTurn("hi", 1)}, coachPersona)

		assert.Equal(t, FaultConfiguration, outcome.Fault)
		assert.Equal(t, ConfigurationText, outcome.Text)
		assert.True(t, outcome.Delivered())
	}
	assert.Zero(t, up.calls.Load())
}

func TestCompleteClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		fault  Fault
		text   string
	}{
		{http.StatusUnauthorized, FaultAuth, AuthText},
		{http.StatusPaymentRequired, FaultQuota, QuotaText},
		{http.StatusTooManyRequests, FaultRequest, "API 请求失败 (429)，请稍后再试。"},
		{http.StatusInternalServerError, FaultRequest, "API 请求失败 (500)，请稍后再试。"},
	}
	for _, tc := range cases {
		up := newUpstream(t, tc.status, `{"error":{"message":"nope"}}`)
		svc := newService(t, "sk-test", up.srv.URL)

		first := svc.Complete(context.Background(), []chat.Turn{userTurn("hi", 1)}, coachPersona)
		second := svc.Complete(context.Background(), []chat.Turn{userTurn("again", 1)}, coachPersona)

		assert.Equal(t, tc.fault, first.Fault, "status=%d", tc.status)
		assert.Equal(t, tc.text, first.Text, "status=%d", tc.status)
		assert.Equal(t, tc.status, first.StatusCode)
		assert.Equal(t, first.Text, second.Text, "fault text must be stable for status=%d", tc.status)
		assert.Equal(t, int32(2), up.calls.Load(), "exactly one attempt per call")
	}
}

func TestCompleteEmptyChoicesFallsBack(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"choices":[]}`)
	svc := newService(t, "sk-test", up.srv.URL)

	outcome := svc.Complete(context.Background(), []chat.Turn{userTurn("hi", 1)}, coachPersona)

	assert.Equal(t, FaultEmptyReply, outcome.Fault)
	assert.Equal(t, "我现在有点累，没有返回内容，请重试。", outcome.Text)
	assert.True(t, outcome.Delivered())
}

func TestCompleteNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	svc := newService(t, "sk-test", endpoint)
	outcome := svc.Complete(context.Background(), []chat.Turn{userTurn("hi", 1)}, coachPersona)

	assert.Equal(t, FaultTransport, outcome.Fault)
	assert.Equal(t, TransportText, outcome.Text)
	assert.False(t, outcome.Delivered())
	assert.Error(t, outcome.Err)
}

func TestCompleteHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	svc := newService(t, "sk-test", srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := svc.Complete(ctx, []chat.Turn{userTurn("hi", 1)}, coachPersona)
	assert.Equal(t, FaultCanceled, outcome.Fault)
	assert.False(t, outcome.Delivered())
}

type brokenTemplate struct{}

func (brokenTemplate) Format(context.Context, map[string]any, ...prompt.Option) ([]*schema.Message, error) {
	return nil, errors.New("missing variable")
}

func TestCompleteTemplateFailureHasNoStatus(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"unused"}}]}`)
	svc := newService(t, "sk-test", up.srv.URL)
	svc.template = brokenTemplate{}

	outcome := svc.Complete(context.Background(), []chat.Turn{userTurn("hi", 1)}, coachPersona)

	assert.Equal(t, FaultRequest, outcome.Fault)
	assert.Equal(t, RequestBuildText, outcome.Text)
	assert.NotContains(t, outcome.Text, "(0)")
	assert.Zero(t, outcome.StatusCode)
	assert.Error(t, outcome.Err)
	assert.True(t, outcome.Delivered())
	assert.Equal(t, int32(0), up.calls.Load())
}
