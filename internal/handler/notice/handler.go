// Package notice serves transient notices over HTTP and Server-Sent Events.
package notice

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/service/notice"
	"github.com/zhouzirui/bloom/backend/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Center is the part of the notice center the handler needs.
type Center interface {
	Active(scope string) []notice.Notice
	Watch(ctx context.Context, scope string) <-chan notice.Notice
	Dismiss(scope, id string) bool
}

// Handler exposes notices per scope.
type Handler struct {
	center    Center
	heartbeat time.Duration
	logger    *zap.Logger
}

// New creates a notice handler.
func New(center Center, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{center: center, heartbeat: heartbeatInterval, logger: logger.Named("notice-handler")}
}

// RegisterRoutes 注册提示相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notices/{scope}", h.handleActive)
	r.Delete("/notices/{scope}/{noticeID}", h.handleDismiss)
	r.Get("/notices/{scope}/stream", h.handleStream)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	active := h.center.Active(chi.URLParam(r, "scope"))
	if active == nil {
		active = []notice.Notice{}
	}
	utils.RespondJSON(w, http.StatusOK, active)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !h.center.Dismiss(chi.URLParam(r, "scope"), chi.URLParam(r, "noticeID")) {
		utils.RespondError(w, http.StatusNotFound, "notice not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStream 先推送当前仍在显示的提示，再持续推送新提示，直到客户端断开。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	scope := chi.URLParam(r, "scope")
	ctx := r.Context()
	updates := h.center.Watch(ctx, scope)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, n := range h.center.Active(scope) {
		if err := utils.SendSSEEvent(w, flusher, "notice", n); err != nil {
			return
		}
	}

	h.logger.Debug("notice stream opened", zap.String("scope", scope))
	defer h.logger.Debug("notice stream closed", zap.String("scope", scope))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-updates:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "notice", n); err != nil {
				h.logger.Debug("notice stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
