// Package service содержит серверную логику синхронизации:
// прием пакетов изменений, разрешение конфликтов и вычисление дельт.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/agrisync/internal/crdt"
	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/internal/server/storage"
)

const (
	stripeCount = 64

	// DefaultDeltaLimit максимальное число сущностей одного типа в дельте
	DefaultDeltaLimit = 500

	// PublisherDeviceID автор записей, опубликованных сервером
	PublisherDeviceID = "server"
)

var (
	// ErrForeignEntity - сущность принадлежит другому пользователю
	ErrForeignEntity = errors.New("entity belongs to another owner")
)

// Store объединяет хранилища, нужные сервису синхронизации
type Store interface {
	storage.EntityStorage
	storage.ConflictStorage
	storage.OutcomeStorage
}

// Outcome результат обработки одного изменения
type Outcome struct {
	ChangeID      string
	EntityID      string
	Status        models.SyncState // StateAcked или StateRejected
	Reason        models.RejectReason
	ServerVersion int64
}

// Accepted reports whether the change was applied or recognised as already applied.
func (o Outcome) Accepted() bool {
	return o.Status == models.StateAcked
}

// SyncService принимает изменения устройств. Единственное место,
// где изменяется каноническое хранилище.
type SyncService struct {
	store      Store
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	stripes    [stripeCount]sync.Mutex
	deltaLimit int
}

// NewSyncService creates a new sync service
func NewSyncService(store Store, logger *slog.Logger) *SyncService {
	return &SyncService{
		store:      store,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		deltaLimit: DefaultDeltaLimit,
	}
}

// AcceptChanges обрабатывает пакет изменений устройства и возвращает
// результаты по каждой записи и дельту по курсору клиента.
// Отклонение одной записи не влияет на остальные; ошибка хранилища прерывает пакет.
func (s *SyncService) AcceptChanges(
	ctx context.Context,
	deviceID, userID string,
	changes []*models.ChangeRecord,
	cursor models.SyncCursor,
) ([]Outcome, []*models.CachedEntity, error) {
	outcomes := make([]Outcome, 0, len(changes))

	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		outcome, err := s.apply(ctx, deviceID, userID, change)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply change %s: %w", change.ChangeID, err)
		}
		outcomes = append(outcomes, outcome)
	}

	deltas, err := s.ComputeDelta(ctx, userID, cursor)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Sync batch processed",
		"device_id", deviceID,
		"user_id", userID,
		"changes", len(changes),
		"deltas", len(deltas),
	)

	return outcomes, deltas, nil
}

// ComputeDelta возвращает сущности пользователя и общие сущности,
// чьи версии выше курсора, по возрастанию server_version внутри типа.
func (s *SyncService) ComputeDelta(ctx context.Context, userID string, cursor models.SyncCursor) ([]*models.CachedEntity, error) {
	deltas, err := s.store.ListEntitiesSince(ctx, userID, cursor, s.deltaLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute delta: %w", err)
	}
	return deltas, nil
}

// Publish записывает общую сущность (без владельца) от имени сервера.
// Опубликованная запись всегда становится текущей: ее timestamp поднимается выше сохраненного.
func (s *SyncService) Publish(ctx context.Context, entity *models.CachedEntity) (int64, error) {
	check := &models.ChangeRecord{
		ChangeID:    "publish",
		EntityID:    entity.EntityID,
		EntityType:  entity.EntityType,
		Payload:     entity.Payload,
		Tombstone:   entity.Tombstone,
		BaseVersion: 0,
	}
	if err := models.ValidateChange(check); err != nil {
		return 0, err
	}

	unlock := s.lock(entity.EntityID)
	defer unlock()

	current, err := s.current(ctx, entity.EntityID)
	if err != nil {
		return 0, err
	}

	var expected int64
	if current != nil {
		if current.UserID != "" {
			return 0, fmt.Errorf("%w: %s", ErrForeignEntity, entity.EntityID)
		}
		if current.EntityType != entity.EntityType {
			return 0, fmt.Errorf("%w: entity type changed from %s", models.ErrInvalidPayload, current.EntityType)
		}
		expected = current.ServerVersion
		if entity.ClientTimestamp <= current.ClientTimestamp {
			entity.ClientTimestamp = current.ClientTimestamp + 1
		}
	}

	entity.UserID = ""
	entity.DeviceID = PublisherDeviceID
	entity.UpdatedAt = s.now()

	version, err := s.store.CommitEntity(ctx, entity, expected, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to publish entity: %w", err)
	}

	s.logger.Info("Entity published",
		"entity_id", entity.EntityID,
		"entity_type", entity.EntityType,
		"server_version", version,
	)
	return version, nil
}

func (s *SyncService) apply(ctx context.Context, deviceID, userID string, change *models.ChangeRecord) (Outcome, error) {
	unlock := s.lock(change.EntityID)
	defer unlock()

	// Повтор уже обработанного изменения получает первоначальный ответ
	if change.ChangeID != "" {
		prev, err := s.store.GetOutcome(ctx, deviceID, change.ChangeID)
		switch {
		case err == nil:
			s.logger.Debug("Replayed change answered from outcome log",
				"device_id", deviceID,
				"change_id", change.ChangeID,
				"status", prev.Status,
			)
			return fromStored(prev), nil
		case !errors.Is(err, storage.ErrOutcomeNotFound):
			return Outcome{}, fmt.Errorf("failed to load outcome: %w", err)
		}
	}

	if err := models.ValidateChange(change); err != nil {
		s.logger.Warn("Change failed validation",
			"device_id", deviceID,
			"change_id", change.ChangeID,
			"error", err,
		)
		return s.record(ctx, deviceID, reject(change, models.ReasonValidationFailed), nil)
	}

	current, err := s.current(ctx, change.EntityID)
	if err != nil {
		return Outcome{}, err
	}

	var currentVersion int64
	if current != nil {
		if current.EntityType != change.EntityType || current.UserID != userID {
			s.logger.Warn("Change targets foreign entity",
				"device_id", deviceID,
				"change_id", change.ChangeID,
				"entity_id", change.EntityID,
			)
			return s.record(ctx, deviceID, reject(change, models.ReasonValidationFailed), nil)
		}
		currentVersion = current.ServerVersion
	}

	incoming := &models.CachedEntity{
		EntityID:        change.EntityID,
		EntityType:      change.EntityType,
		UserID:          userID,
		DeviceID:        deviceID,
		Payload:         change.Payload,
		ClientTimestamp: change.ClientTimestamp,
		Tombstone:       change.Tombstone,
		UpdatedAt:       s.now(),
	}

	switch {
	case change.BaseVersion > currentVersion:
		s.logger.Warn("Change based on unknown version",
			"change_id", change.ChangeID,
			"entity_id", change.EntityID,
			"base_version", change.BaseVersion,
			"server_version", currentVersion,
		)
		return s.record(ctx, deviceID, reject(change, models.ReasonStaleEntity), nil)

	case change.BaseVersion == currentVersion:
		return s.commit(ctx, deviceID, change, incoming, currentVersion, nil)
	}

	// base < current: параллельная запись, решаем по LWW
	decision := crdt.Resolve(
		crdt.Stamp{DeviceID: deviceID, Timestamp: change.ClientTimestamp},
		crdt.Stamp{DeviceID: current.DeviceID, Timestamp: current.ClientTimestamp},
	)

	if decision == crdt.Duplicate {
		s.logger.Debug("Duplicate change acknowledged",
			"change_id", change.ChangeID,
			"entity_id", change.EntityID,
			"server_version", currentVersion,
		)
		return s.record(ctx, deviceID, ack(change, currentVersion), nil)
	}

	conflict := &models.Conflict{
		ID:                s.newID(),
		EntityID:          change.EntityID,
		EntityType:        change.EntityType,
		IncomingChangeID:  change.ChangeID,
		IncomingDeviceID:  deviceID,
		CurrentDeviceID:   current.DeviceID,
		IncomingBase:      change.BaseVersion,
		CurrentVersion:    currentVersion,
		IncomingTimestamp: change.ClientTimestamp,
		CurrentTimestamp:  current.ClientTimestamp,
		DetectedAt:        s.now(),
	}

	s.logger.Info("Conflict resolved",
		"entity_id", change.EntityID,
		"change_id", change.ChangeID,
		"winner", decision.String(),
	)

	if decision == crdt.IncomingWins {
		conflict.Winner = models.WinnerIncoming
		return s.commit(ctx, deviceID, change, incoming, currentVersion, conflict)
	}

	conflict.Winner = models.WinnerCurrent
	conflict.Reason = models.ReasonSuperseded
	out := reject(change, models.ReasonSuperseded)
	out.ServerVersion = currentVersion
	return s.record(ctx, deviceID, out, conflict)
}

// commit применяет изменение и сохраняет его итог в той же транзакции
func (s *SyncService) commit(
	ctx context.Context,
	deviceID string,
	change *models.ChangeRecord,
	incoming *models.CachedEntity,
	expected int64,
	conflict *models.Conflict,
) (Outcome, error) {
	stored := toStored(deviceID, ack(change, 0), s.now())
	version, err := s.store.CommitEntity(ctx, incoming, expected, conflict, stored)
	if err != nil {
		return Outcome{}, err
	}
	return ack(change, version), nil
}

// record сохраняет итог, не изменивший сущность. Изменение без change_id
// сохранить нельзя, его ответ просто возвращается.
func (s *SyncService) record(ctx context.Context, deviceID string, out Outcome, conflict *models.Conflict) (Outcome, error) {
	if out.ChangeID == "" {
		if conflict != nil {
			if err := s.store.SaveConflict(ctx, conflict); err != nil {
				return Outcome{}, fmt.Errorf("failed to save conflict: %w", err)
			}
		}
		return out, nil
	}

	if err := s.store.SaveOutcome(ctx, toStored(deviceID, out, s.now()), conflict); err != nil {
		return Outcome{}, fmt.Errorf("failed to save outcome: %w", err)
	}
	return out, nil
}

func (s *SyncService) current(ctx context.Context, entityID string) (*models.CachedEntity, error) {
	e, err := s.store.GetEntity(ctx, entityID)
	if errors.Is(err, storage.ErrEntityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}
	return e, nil
}

// lock захватывает мьютекс полосы, к которой относится сущность
func (s *SyncService) lock(entityID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	m := &s.stripes[h.Sum32()%stripeCount]
	m.Lock()
	return m.Unlock
}

func ack(c *models.ChangeRecord, version int64) Outcome {
	return Outcome{
		ChangeID:      c.ChangeID,
		EntityID:      c.EntityID,
		Status:        models.StateAcked,
		ServerVersion: version,
	}
}

func reject(c *models.ChangeRecord, reason models.RejectReason) Outcome {
	return Outcome{
		ChangeID: c.ChangeID,
		EntityID: c.EntityID,
		Status:   models.StateRejected,
		Reason:   reason,
	}
}

func toStored(deviceID string, o Outcome, at time.Time) *models.ChangeOutcome {
	return &models.ChangeOutcome{
		ProcessedAt:   at,
		DeviceID:      deviceID,
		ChangeID:      o.ChangeID,
		EntityID:      o.EntityID,
		Status:        o.Status,
		Reason:        o.Reason,
		ServerVersion: o.ServerVersion,
	}
}

func fromStored(o *models.ChangeOutcome) Outcome {
	return Outcome{
		ChangeID:      o.ChangeID,
		EntityID:      o.EntityID,
		Status:        o.Status,
		Reason:        o.Reason,
		ServerVersion: o.ServerVersion,
	}
}
