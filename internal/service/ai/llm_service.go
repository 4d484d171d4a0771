package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/config"
	"github.com/zhouzirui/bloom/backend/internal/integration/deepseek"
	"github.com/zhouzirui/bloom/backend/internal/model/chat"
)

// Service turns a conversation plus persona instruction into exactly one
// chat-completion request and normalizes every result into an Outcome.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	template  prompt.ChatTemplate
	logger    *zap.Logger
}

// NewService creates a Service backed by the DeepSeek endpoint in cfg.
// A missing credential is not an error here; Complete reports it per call.
func NewService(cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel()
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(chatModel, cfg, logger), nil
}

// NewServiceWithModel wires an existing chat model.
func NewServiceWithModel(chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
	)

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		template:  template,
		logger:    logger.Named("ai"),
	}
}

// Complete performs one round trip. It never returns an error: configuration
// problems, HTTP faults and network failures all come back as Outcome.
func (s *Service) Complete(ctx context.Context, history []chat.Turn, persona string) Outcome {
	if !s.cfg.CredentialConfigured() {
		s.logger.Warn("deepseek credential not configured, skipping request")
		return Outcome{Text: ConfigurationText, Fault: FaultConfiguration}
	}

	messages, err := s.BuildMessages(ctx, history, persona)
	if err != nil {
		s.logger.Error("build messages failed", zap.Error(err))
		return Outcome{Text: RequestBuildText, Fault: FaultRequest, Err: err}
	}

	reply, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		outcome := classify(ctx, err)
		s.logger.Warn("completion failed",
			zap.String("fault", string(outcome.Fault)),
			zap.Int("status", outcome.StatusCode),
			zap.Error(err),
		)
		return outcome
	}

	s.logger.Info("completion succeeded",
		zap.Int("history", len(history)),
		zap.Int("length", len(reply.Content)),
	)
	return Outcome{Text: reply.Content}
}

// BuildMessages renders the system instruction followed by the history with
// roles mapped to the wire vocabulary and content untouched.
func (s *Service) BuildMessages(ctx context.Context, history []chat.Turn, persona string) ([]*schema.Message, error) {
	return s.template.Format(ctx, map[string]any{
		"system":  persona,
		"history": historyMessages(history),
	})
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}

func classify(ctx context.Context, err error) Outcome {
	var statusErr *deepseek.StatusError
	switch {
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return Outcome{Text: AuthText, Fault: FaultAuth, StatusCode: statusErr.StatusCode, Err: err}
		case http.StatusPaymentRequired:
			return Outcome{Text: QuotaText, Fault: FaultQuota, StatusCode: statusErr.StatusCode, Err: err}
		default:
			return Outcome{Text: RequestFailedText(statusErr.StatusCode), Fault: FaultRequest, StatusCode: statusErr.StatusCode, Err: err}
		}
	case errors.Is(err, deepseek.ErrEmptyChoices):
		return Outcome{Text: EmptyReplyText, Fault: FaultEmptyReply, StatusCode: http.StatusOK, Err: err}
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return Outcome{Text: CanceledText, Fault: FaultCanceled, Err: err}
	default:
		return Outcome{Text: TransportText, Fault: FaultTransport, Err: err}
	}
}
