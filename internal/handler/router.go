package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/handler/chat"
	"github.com/zhouzirui/bloom/backend/internal/handler/checkin"
	"github.com/zhouzirui/bloom/backend/internal/handler/membership"
	noticeHandler "github.com/zhouzirui/bloom/backend/internal/handler/notice"
	"github.com/zhouzirui/bloom/backend/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/bloom/backend/internal/middleware"
	personaModel "github.com/zhouzirui/bloom/backend/internal/model/persona"
	chatService "github.com/zhouzirui/bloom/backend/internal/service/chat"
	checkinService "github.com/zhouzirui/bloom/backend/internal/service/checkin"
	membershipService "github.com/zhouzirui/bloom/backend/internal/service/membership"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
	"github.com/zhouzirui/bloom/backend/pkg/utils"
)

// Deps collects the services the router exposes.
type Deps struct {
	Personas   personaModel.Store
	Chat       *chatService.Service
	Notices    *notice.Center
	Membership *membershipService.Service
	Checkins   *checkinService.Service
	Logger     *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		chat.New(deps.Chat, deps.Notices, logger).RegisterRoutes(api)
		noticeHandler.New(deps.Notices, logger).RegisterRoutes(api)

		if deps.Membership != nil {
			membership.New(deps.Membership).RegisterRoutes(api)
		}
		if deps.Checkins != nil {
			checkin.New(deps.Checkins, logger).RegisterRoutes(api)
		}
	})

	return r
}
