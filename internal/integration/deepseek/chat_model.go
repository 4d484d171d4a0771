// Package deepseek is a focused client for the DeepSeek chat-completions
// endpoint, exposed as an eino chat model.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyChoices reports a 200 response whose body carried no usable choice,
// including bodies that are not valid JSON.
var ErrEmptyChoices = errors.New("deepseek: no choices in response")

// StatusError captures non-200 upstream responses.
type StatusError struct {
	StatusCode int
	// Message is error.message from the upstream body when present.
	Message string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("deepseek: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("deepseek: unexpected status %d", e.StatusCode)
}

// Config describes one DeepSeek endpoint binding.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature *float32
	// Timeout is applied to the default HTTP client only; zero means none.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatModel performs exactly one non-streaming POST per Generate call.
type ChatModel struct {
	apiKey      string
	endpoint    string
	model       string
	temperature *float32
	httpClient  *http.Client
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel validates cfg and returns a ChatModel. An empty API key is
// accepted; callers decide whether a request should be attempted at all.
func NewChatModel(cfg Config) (*ChatModel, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("deepseek: endpoint must not be empty")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, errors.New("deepseek: model must not be empty")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatModel{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		endpoint:    endpoint,
		model:       modelName,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
	}, nil
}

// Generate sends input as the messages array and returns the first choice.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: m.temperature,
	}, opts...)

	payload := chatRequest{
		Model:       *options.Model,
		Messages:    toWireMessages(input),
		Stream:      false,
		Temperature: options.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("deepseek: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepseek: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		statusErr := &StatusError{StatusCode: res.StatusCode, Body: string(buf)}
		var upstream errorResponse
		if json.Unmarshal(buf, &upstream) == nil {
			statusErr.Message = upstream.Error.Message
		}
		return nil, statusErr
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("deepseek: read response body: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyChoices, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, ErrEmptyChoices
	}

	return schema.AssistantMessage(decoded.Choices[0].Message.Content, nil), nil
}

// Stream satisfies model.BaseChatModel. The endpoint is always called with
// stream=false, so the reader yields the single generated message.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toWireMessages(input []*schema.Message) []wireMessage {
	out := make([]wireMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		out = append(out, wireMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
