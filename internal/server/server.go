// Package server собирает HTTP сервер синхронизации из хранилища, сервисов и middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/agrisync/internal/config"
	"github.com/iudanet/agrisync/internal/server/audit"
	"github.com/iudanet/agrisync/internal/server/handlers"
	"github.com/iudanet/agrisync/internal/server/jwt"
	"github.com/iudanet/agrisync/internal/server/middleware"
	"github.com/iudanet/agrisync/internal/server/service"
	"github.com/iudanet/agrisync/internal/server/storage/sqlite"
)

const (
	rateLimitWindow   = time.Minute
	livenessPeriod    = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	healthPath       = "/api/v1/health"
	connectivityPath = "/api/v1/connectivity"
)

// Server сервер синхронизации
type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	store    *sqlite.Storage
	sync     *service.SyncService
	limiter  *middleware.RateLimiter
	archiver *audit.Archiver
	handler  http.Handler
}

// New открывает хранилище и собирает обработчики по конфигурации
func New(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		sync:    service.NewSyncService(store, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, rateLimitWindow),
	}

	if cfg.Audit.Enabled() {
		client, err := audit.NewS3Client(ctx, cfg.Audit)
		if err != nil {
			s.limiter.Stop()
			_ = store.Close()
			return nil, fmt.Errorf("failed to create audit client: %w", err)
		}
		s.archiver = audit.NewArchiver(client, store, cfg.Audit, logger)
	}

	s.handler = s.routes()
	return s, nil
}

// Handler возвращает корневой http.Handler со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SyncService возвращает сервис сверки (для публикации и тестов)
func (s *Server) SyncService() *service.SyncService {
	return s.sync
}

func (s *Server) routes() http.Handler {
	tokens := jwt.NewService(s.cfg.JWTSecret, s.cfg.TokenTTL)

	deviceHandler := handlers.NewDeviceHandler(s.logger, s.store, tokens, s.cfg.EnrollmentKey)
	syncHandler := handlers.NewSyncHandler(s.logger, s.sync, s.cfg.MaxBatchSize)
	healthHandler := handlers.NewHealthHandler(s.logger, s.store)
	connectivityHandler := handlers.NewConnectivityHandler(s.logger, livenessPeriod)

	auth := middleware.AuthMiddleware(s.logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/devices/register", deviceHandler.Register)
	mux.HandleFunc("POST /api/v1/devices/token", deviceHandler.Token)
	mux.Handle("POST /api/v1/sync", auth(http.HandlerFunc(syncHandler.Sync)))
	mux.Handle("GET /api/v1/sync/delta", auth(http.HandlerFunc(syncHandler.Delta)))
	mux.HandleFunc("GET "+healthPath, healthHandler.Health)
	mux.HandleFunc("GET "+connectivityPath, connectivityHandler.Serve)

	// Без admin key публикация общих сущностей выключена
	if s.cfg.AdminKey != "" {
		adminHandler := handlers.NewAdminHandler(s.logger, s.sync)
		adminOnly := middleware.AdminKeyMiddleware(s.logger, s.cfg.AdminKey)
		mux.Handle("POST /api/v1/admin/entities", adminOnly(http.HandlerFunc(adminHandler.PublishEntity)))
	}

	var h http.Handler = mux
	h = middleware.CompressionMiddleware(s.logger, s.cfg.MaxBodyBytes)(h)
	h = middleware.RateLimitMiddleware(s.limiter, s.logger)(h)
	h = middleware.LoggingMiddleware(s.logger, healthPath, connectivityPath)(h)
	h = middleware.RecoveryMiddleware(s.logger)(h)
	return h
}

// Run слушает cfg.Addr до отмены ctx, затем корректно останавливается
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	archiverCtx, cancelArchiver := context.WithCancel(ctx)
	defer cancelArchiver()
	archiverDone := make(chan struct{})
	stopArchiver := func() {
		cancelArchiver()
		<-archiverDone
	}
	if s.archiver != nil {
		go func() {
			defer close(archiverDone)
			_ = s.archiver.Run(archiverCtx)
		}()
	} else {
		close(archiverDone)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		stopArchiver()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	stopArchiver()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	// Последняя выгрузка идет после остановки фоновой, чтобы конфликты
	// не ждали следующего запуска
	if s.archiver != nil {
		if _, err := s.archiver.Flush(shutdownCtx); err != nil {
			s.logger.Error("Final conflict archival failed", "error", err)
		}
	}
	return nil
}

// Close освобождает хранилище и фоновые горутины
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.store.Close()
}
