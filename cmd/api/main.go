package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/config"
	"github.com/zhouzirui/bloom/backend/internal/handler"
	"github.com/zhouzirui/bloom/backend/internal/logging"
	"github.com/zhouzirui/bloom/backend/internal/model/persona"
	"github.com/zhouzirui/bloom/backend/internal/service/ai"
	"github.com/zhouzirui/bloom/backend/internal/service/chat"
	"github.com/zhouzirui/bloom/backend/internal/service/checkin"
	"github.com/zhouzirui/bloom/backend/internal/service/membership"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
)

const membershipActivatedText = "会员开通成功"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	personaStore, err := loadPersonas(cfg.Persona)
	if err != nil {
		return err
	}

	aiService, err := ai.NewService(cfg.AI, logger)
	if err != nil {
		return err
	}
	if cfg.AI.CredentialConfigured() {
		logger.Info("DeepSeek client ready", zap.String("model", cfg.AI.Model), zap.String("endpoint", cfg.AI.Endpoint))
	} else {
		logger.Warn("DeepSeek API Key 未配置，聊天将返回配置提示而不会发起请求")
	}

	notices := notice.NewCenter(cfg.Notice.TTL, logger)
	defer notices.Close()

	members := membership.NewService(logger)
	unsubscribe := members.Subscribe(func(st membership.Status) {
		if st.VIP {
			notices.Show(st.UserID, membershipActivatedText, notice.LevelSuccess, 0)
		}
	})
	defer unsubscribe()

	checkinStore, closeStore, err := openCheckinStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	chatSvc, err := chat.NewService(personaStore, aiService, notices, logger)
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.Deps{
		Personas:   personaStore,
		Chat:       chatSvc,
		Notices:    notices,
		Membership: members,
		Checkins:   checkin.NewService(checkinStore, logger),
		Logger:     logger,
	})

	return startServer(ctx, cfg.Server, router, logger)
}

func loadPersonas(cfg config.PersonaConfig) (persona.Store, error) {
	if cfg.File == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadFile(cfg.File)
	if err != nil {
		return nil, err
	}
	return persona.NewMemoryStore(items), nil
}

func openCheckinStore(cfg config.StorageConfig, logger *zap.Logger) (checkin.Store, func(), error) {
	if cfg.CheckinDBPath == "" {
		logger.Info("CHECKIN_DB_PATH empty, check-ins kept in memory")
		return checkin.NewMemoryStore(), func() {}, nil
	}
	store, err := checkin.OpenSQLite(cfg.CheckinDBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("check-in log opened", zap.String("path", cfg.CheckinDBPath))
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close check-in log", zap.Error(err))
		}
	}, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Bloom backend listening", zap.String("addr", serverCfg.Addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
