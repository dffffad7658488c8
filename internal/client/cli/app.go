package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	clientapi "github.com/iudanet/agrisync/internal/client/api"
	"github.com/iudanet/agrisync/internal/client/auth"
	"github.com/iudanet/agrisync/internal/client/connectivity"
	"github.com/iudanet/agrisync/internal/client/data"
	"github.com/iudanet/agrisync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/agrisync/internal/client/sync"
	"github.com/iudanet/agrisync/internal/config"
	"github.com/iudanet/agrisync/internal/crdt"
	"github.com/iudanet/agrisync/internal/logger"
	"github.com/iudanet/agrisync/internal/models"
)

// loadConfig читает конфигурацию и применяет флаги командной строки
func loadConfig(opts *RootOptions) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open собирает клиентский стек: BoltDB, API клиент, авторизацию, синхронизацию
func (c *Cli) open(ctx context.Context, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.closers = append(c.closers, store.Close)

	apiClient := clientapi.NewClient(cfg.ServerURL,
		clientapi.WithTimeout(cfg.RequestTimeout),
		clientapi.WithCompression(cfg.Compress),
	)
	c.auth = auth.NewService(apiClient, store, log)

	// До регистрации изменения копятся без идентификатора устройства
	var deviceID string
	if device, err := c.auth.Device(ctx); err == nil {
		deviceID = device.DeviceID
	}

	start, err := store.GetClock(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clock: %w", err)
	}
	clock := crdt.NewLamportClock(deviceID, start, store)

	c.sync = clientsync.NewService(apiClient, c.auth, store, clock, clientsync.Config{
		DeviceID:       deviceID,
		MaxBatchSize:   cfg.MaxBatchSize,
		RequestTimeout: cfg.RequestTimeout,
		SyncInterval:   cfg.SyncInterval,
	}, log)
	c.sync.SetRejectionHandler(func(ctx context.Context, rejected []*models.ChangeRecord) {
		for _, r := range rejected {
			log.Warn("Critical change rejected", "change_id", r.ChangeID, "entity_id", r.EntityID, "reason", r.Reason)
		}
	})
	if err := c.sync.Recover(ctx); err != nil {
		return err
	}

	c.data = data.NewService(c.sync, store)
	c.newWatcher = func() (Watcher, error) {
		m, err := connectivity.NewWebSocketMonitor(cfg.ServerURL, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	log.Debug("Client stack ready", slog.String("db", cfg.DBPath), slog.String("server", cfg.ServerURL))
	return nil
}
