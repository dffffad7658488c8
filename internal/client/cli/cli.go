// Package cli команды клиента agrisync (cobra).
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/agrisync/internal/client/auth"
	"github.com/iudanet/agrisync/internal/client/connectivity"
	"github.com/iudanet/agrisync/internal/client/data"
	"github.com/iudanet/agrisync/internal/client/iocli"
	"github.com/iudanet/agrisync/internal/client/storage"
	clientsync "github.com/iudanet/agrisync/internal/client/sync"
)

// Watcher монитор связи, который нужно запустить
type Watcher interface {
	connectivity.Monitor
	Run(ctx context.Context) error
}

// WatcherFactory создает монитор связи для команды watch
type WatcherFactory func() (Watcher, error)

// Cli команды поверх локального стека синхронизации
type Cli struct {
	io         iocli.IO
	auth       *auth.Service
	sync       *clientsync.Service
	data       *data.Service
	newWatcher WatcherFactory
	closers    []func() error
}

// New создает Cli из готовых сервисов
func New(io iocli.IO, authService *auth.Service, syncService *clientsync.Service, dataService *data.Service, newWatcher WatcherFactory) *Cli {
	return &Cli{
		io:         io,
		auth:       authService,
		sync:       syncService,
		data:       dataService,
		newWatcher: newWatcher,
	}
}

// Close освобождает ресурсы, открытые при сборке стека
func (c *Cli) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// device возвращает данные устройства или подсказку о регистрации
func (c *Cli) device(ctx context.Context) (*storage.DeviceData, error) {
	device, err := c.auth.Device(ctx)
	if errors.Is(err, storage.ErrDeviceNotRegistered) {
		return nil, fmt.Errorf("device is not registered. Run 'agrisync register' first")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}
