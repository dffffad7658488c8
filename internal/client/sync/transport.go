package sync

import (
	"context"

	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/pkg/api"
)

//go:generate moq -out transport_mock.go . Transport TokenSource

// Transport отправляет пакет изменений на сервер
type Transport interface {
	Sync(ctx context.Context, accessToken string, req *api.SyncRequest) (*api.SyncResponse, error)
}

// TokenSource выдает access token устройства
type TokenSource interface {
	// AccessToken возвращает действующий токен, при необходимости запрашивая новый
	AccessToken(ctx context.Context) (string, error)

	// Invalidate сбрасывает закешированный токен после 401
	Invalidate(ctx context.Context) error
}

// Store объединяет локальные хранилища, которые использует синхронизация
type Store interface {
	storage.ChangeLog
	storage.Cache
	storage.MetadataStorage
}
