package membership

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/bloom/backend/internal/service/membership"
	"github.com/zhouzirui/bloom/backend/pkg/utils"
)

// Handler 会员状态的HTTP处理器
type Handler struct {
	svc *membership.Service
}

// New 创建会员处理器
func New(svc *membership.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册会员相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/membership", h.handleGet)
	r.Post("/users/{userID}/membership/activate", h.handleActivate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.Get(chi.URLParam(r, "userID")))
}

// handleActivate 开通会员，重复开通直接返回当前状态
func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Activate(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, membership.ErrUserRequired) {
			code = http.StatusBadRequest
		}
		utils.RespondError(w, code, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, status)
}
