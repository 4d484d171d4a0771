package checkin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/service/checkin"
	"github.com/zhouzirui/bloom/backend/pkg/utils"
)

// Handler 打卡与访问记录的HTTP处理器
type Handler struct {
	svc    *checkin.Service
	logger *zap.Logger
}

// New 创建打卡处理器
func New(svc *checkin.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("checkin-handler")}
}

// RegisterRoutes 注册打卡相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/checkins", h.handleList(checkin.KindCheckin))
	r.Post("/users/{userID}/checkins", h.handleCheckin)
	r.Get("/users/{userID}/visits", h.handleList(checkin.KindVisit))
	r.Post("/users/{userID}/visits", h.handleVisit)
}

func (h *Handler) handleList(kind checkin.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.svc.List(r.Context(), chi.URLParam(r, "userID"), kind)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		if entries == nil {
			entries = []checkin.Entry{}
		}
		utils.RespondJSON(w, http.StatusOK, entries)
	}
}

func (h *Handler) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Course string `json:"course"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.RecordCheckin(r.Context(), chi.URLParam(r, "userID"), payload.Course)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleVisit(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.RecordVisit(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkin.ErrUserRequired) || errors.Is(err, checkin.ErrCourseRequired) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("checkin store failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "failed to access check-in log")
}
