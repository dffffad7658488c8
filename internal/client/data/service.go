package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/models"
)

//go:generate moq -out enqueuer_mock.go . Enqueuer

// Enqueuer добавляет изменения в локальный журнал (реализуется sync.Service)
type Enqueuer interface {
	Enqueue(ctx context.Context, change *models.ChangeRecord) error
}

// CachedView запись локального кэша с декодированным телом и признаком устаревания
type CachedView struct {
	Entity  *models.CachedEntity
	Payload models.Payload
	Stale   bool
}

// Service - единственная точка входа для вышестоящих сервисов:
// типизированная постановка изменений в очередь и чтение из кэша.
type Service struct {
	queue Enqueuer
	cache storage.Cache
	now   func() time.Time
}

// NewService creates a new data service
func NewService(queue Enqueuer, cache storage.Cache) *Service {
	return &Service{
		queue: queue,
		cache: cache,
		now:   time.Now,
	}
}

// SubmitPriceQuery ставит в очередь новый ценовой запрос
func (s *Service) SubmitPriceQuery(ctx context.Context, q models.PriceQuery) (*models.ChangeRecord, error) {
	return s.submit(ctx, "", q)
}

// UpdateProfile ставит в очередь изменение профиля. Пустой profileID создает новый профиль.
func (s *Service) UpdateProfile(ctx context.Context, profileID string, p models.ProfileUpdate) (*models.ChangeRecord, error) {
	return s.submit(ctx, profileID, p)
}

// PostCropAvailability публикует или обновляет предложение урожая
func (s *Service) PostCropAvailability(ctx context.Context, listingID string, a models.CropAvailability) (*models.ChangeRecord, error) {
	return s.submit(ctx, listingID, a)
}

// RequestAdvisory ставит в очередь вопрос консультанту
func (s *Service) RequestAdvisory(ctx context.Context, a models.AdvisoryRequest) (*models.ChangeRecord, error) {
	return s.submit(ctx, "", a)
}

// Withdraw логически удаляет сущность (tombstone)
func (s *Service) Withdraw(ctx context.Context, entityType models.EntityType, entityID string) (*models.ChangeRecord, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", models.ErrInvalidPayload, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity_id is required", models.ErrInvalidPayload)
	}

	base, err := s.baseVersion(ctx, entityID)
	if err != nil {
		return nil, err
	}

	change := &models.ChangeRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		BaseVersion: base,
		Tombstone:   true,
	}
	if err := s.queue.Enqueue(ctx, change); err != nil {
		return nil, err
	}
	return change, nil
}

// GetCached возвращает сущность из кэша вместе с признаком устаревания
func (s *Service) GetCached(ctx context.Context, entityID string) (*CachedView, error) {
	e, err := s.cache.GetCacheEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.view(e)
}

// ListCached возвращает все живые сущности типа из кэша
func (s *Service) ListCached(ctx context.Context, entityType models.EntityType) ([]*CachedView, error) {
	entities, err := s.cache.ListCacheEntities(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}

	views := make([]*CachedView, 0, len(entities))
	for _, e := range entities {
		v, err := s.view(e)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) submit(ctx context.Context, entityID string, p models.Payload) (*models.ChangeRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	raw, err := models.EncodePayload(p)
	if err != nil {
		return nil, err
	}

	var base int64
	if entityID == "" {
		entityID = uuid.NewString()
	} else if base, err = s.baseVersion(ctx, entityID); err != nil {
		return nil, err
	}

	change := &models.ChangeRecord{
		EntityType:  p.EntityType(),
		EntityID:    entityID,
		Payload:     raw,
		BaseVersion: base,
	}
	if err := s.queue.Enqueue(ctx, change); err != nil {
		return nil, err
	}
	return change, nil
}

// baseVersion возвращает последнюю известную server_version сущности (0 если ее нет в кэше)
func (s *Service) baseVersion(ctx context.Context, entityID string) (int64, error) {
	e, err := s.cache.GetCacheEntity(ctx, entityID)
	if errors.Is(err, storage.ErrEntityNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache: %w", err)
	}
	return e.ServerVersion, nil
}

func (s *Service) view(e *models.CachedEntity) (*CachedView, error) {
	v := &CachedView{Entity: e, Stale: e.IsStale(s.now())}
	if e.Tombstone {
		return v, nil
	}
	p, err := models.DecodePayload(e.EntityType, e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached %s: %w", e.EntityID, err)
	}
	v.Payload = p
	return v, nil
}
