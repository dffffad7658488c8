package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	clientapi "github.com/iudanet/agrisync/internal/client/api"
	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/crdt"
	"github.com/iudanet/agrisync/internal/models"
	"github.com/iudanet/agrisync/pkg/api"
)

const (
	DefaultMaxBatchSize   = 100
	DefaultSyncInterval   = 5 * time.Minute
	DefaultRequestTimeout = 30 * time.Second

	// Политика повторов: 1s, 2s, 4s, затем отказ
	retryBase       = time.Second
	retryMaxRetries = 3
)

// State состояние синхронизации, видимое пользователю
type State string

const (
	StateOffline State = "OFFLINE"
	StateSyncing State = "SYNCING"
	StateOnline  State = "ONLINE"
)

// Status снимок состояния синхронизации (только чтение)
type Status struct {
	LastSyncedAt time.Time
	State        State
	Pending      int
	InFlight     int
	Rejected     int
}

// RejectionHandler вызывается для отклоненных CRITICAL изменений
type RejectionHandler func(ctx context.Context, rejected []*models.ChangeRecord)

// Config параметры Sync Client
type Config struct {
	DeviceID       string
	MaxBatchSize   int
	RequestTimeout time.Duration
	SyncInterval   time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
}

// SyncOutcome итог одного триггера синхронизации
type SyncOutcome struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Rejected        []*models.ChangeRecord
	Batches         int
	Sent            int
	Acked           int
	Reverted        int
	DeltasApplied   int
	DeltasDiscarded int
}

// Err возвращает *RejectedError, если сервер отклонил CRITICAL изменения
func (o *SyncOutcome) Err() error {
	critical := criticalOnly(o.Rejected)
	if len(critical) == 0 {
		return nil
	}
	return &RejectedError{Changes: critical}
}

// Service синхронизирует локальный журнал изменений с сервером.
// На одно устройство выполняется не более одной синхронизации одновременно.
type Service struct {
	transport  Transport
	tokens     TokenSource
	store      Store
	clock      *crdt.LamportClock
	logger     *slog.Logger
	onRejected RejectionHandler
	newBackoff func() retry.Backoff
	now        func() time.Time
	group      singleflight.Group
	cfg        Config
	mu         sync.RWMutex
	online     bool
	syncing    bool
}

// NewService creates a new sync service
func NewService(transport Transport, tokens TokenSource, store Store, clock *crdt.LamportClock, cfg Config, logger *slog.Logger) *Service {
	cfg.setDefaults()
	return &Service{
		transport:  transport,
		tokens:     tokens,
		store:      store,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		newBackoff: defaultBackoff,
		now:        time.Now,
	}
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(retryMaxRetries, retry.NewExponential(retryBase))
}

// SetRejectionHandler задает обработчик отклоненных CRITICAL изменений
func (s *Service) SetRejectionHandler(h RejectionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRejected = h
}

// Enqueue добавляет изменение в журнал как PENDING. Сеть не используется.
func (s *Service) Enqueue(ctx context.Context, change *models.ChangeRecord) error {
	if !change.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", models.ErrInvalidPayload, change.EntityType)
	}
	if change.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", models.ErrInvalidPayload)
	}
	if change.ChangeID == "" {
		change.ChangeID = uuid.NewString()
	}
	if change.Priority == "" {
		change.Priority = models.DefaultPriority(change.EntityType)
	}
	if change.WallTime.IsZero() {
		change.WallTime = s.now().UTC()
	}
	if change.ClientTimestamp == 0 {
		ts, err := s.clock.Tick(ctx)
		if err != nil {
			return fmt.Errorf("failed to tick clock: %w", err)
		}
		change.ClientTimestamp = ts
	}

	if err := s.store.Append(ctx, change); err != nil {
		return fmt.Errorf("failed to enqueue change: %w", err)
	}

	s.logger.Debug("Change enqueued",
		"change_id", change.ChangeID,
		"entity_type", change.EntityType,
		"entity_id", change.EntityID,
		"priority", change.Priority)
	return nil
}

// Recover возвращает в PENDING записи, оставшиеся IN_FLIGHT после сбоя
func (s *Service) Recover(ctx context.Context) error {
	n, err := s.store.RevertInFlight(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight changes: %w", err)
	}
	if n > 0 {
		s.logger.Info("Recovered in-flight changes", "count", n)
	}
	return nil
}

// Status возвращает текущее состояние синхронизации
func (s *Service) Status(ctx context.Context) (*Status, error) {
	last, err := s.store.GetLastSyncedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last synced at: %w", err)
	}
	counts, err := s.store.CountByState(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	state := StateOffline
	switch {
	case s.syncing:
		state = StateSyncing
	case s.online:
		state = StateOnline
	}
	s.mu.RUnlock()

	return &Status{
		State:        state,
		LastSyncedAt: last,
		Pending:      counts[models.StatePending],
		InFlight:     counts[models.StateInFlight],
		Rejected:     counts[models.StateRejected],
	}, nil
}

// Rejected возвращает изменения, отклоненные сервером
func (s *Service) Rejected(ctx context.Context) ([]*models.ChangeRecord, error) {
	return s.store.ListRejected(ctx)
}

// Dismiss удаляет отклоненное изменение после подтверждения пользователем
func (s *Service) Dismiss(ctx context.Context, changeID string) error {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return err
	}
	if change.State != models.StateRejected {
		return fmt.Errorf("%w: %s is %s", ErrNotRejected, changeID, change.State)
	}
	return s.store.Remove(ctx, changeID)
}

// SetOnline отмечает наличие связи (используется монитором и CLI)
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// TriggerSync выполняет синхронизацию. Одновременные вызовы объединяются
// и получают результат уже идущей синхронизации.
func (s *Service) TriggerSync(ctx context.Context) (*SyncOutcome, error) {
	v, err, shared := s.group.Do("sync", func() (interface{}, error) {
		return s.runSync(ctx)
	})
	if shared {
		s.logger.Debug("Sync trigger collapsed into running sync")
	}
	outcome, _ := v.(*SyncOutcome)
	return outcome, err
}

func (s *Service) runSync(ctx context.Context) (*SyncOutcome, error) {
	s.setSyncing(true)
	defer s.setSyncing(false)

	outcome := &SyncOutcome{StartedAt: s.now()}
	s.logger.Info("Starting synchronization", "device_id", s.cfg.DeviceID)

	for {
		var progress, sent int
		b := s.newBackoff()
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			var err error
			progress, sent, err = s.attempt(ctx, outcome)
			if err != nil && errors.Is(err, clientapi.ErrTransport) {
				s.logger.Warn("Sync attempt failed, backing off", "error", err)
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			outcome.FinishedAt = s.now()
			if errors.Is(err, clientapi.ErrTransport) {
				s.SetOnline(false)
				s.logger.Error("Sync abandoned", "error", err)
				return outcome, fmt.Errorf("%w: %w", ErrSyncAbandoned, err)
			}
			return outcome, fmt.Errorf("sync failed: %w", err)
		}

		// Неполный пакет забрал все PENDING; пакет без результатов не двигает
		// журнал, и повтор привел бы к зацикливанию
		if sent < s.cfg.MaxBatchSize || progress == 0 {
			break
		}
	}

	outcome.FinishedAt = s.now()
	if err := s.store.SaveLastSyncedAt(context.WithoutCancel(ctx), outcome.FinishedAt); err != nil {
		s.logger.Warn("Failed to save last synced at", "error", err)
	}
	s.SetOnline(true)

	s.logger.Info("Synchronization completed",
		"batches", outcome.Batches,
		"sent", outcome.Sent,
		"acked", outcome.Acked,
		"rejected", len(outcome.Rejected),
		"deltas_applied", outcome.DeltasApplied)

	if critical := criticalOnly(outcome.Rejected); len(critical) > 0 {
		s.mu.RLock()
		h := s.onRejected
		s.mu.RUnlock()
		if h != nil {
			h(ctx, critical)
		}
	}

	return outcome, nil
}

// attempt отправляет один пакет. Возвращает число записей с окончательным
// результатом и число отправленных записей.
func (s *Service) attempt(ctx context.Context, outcome *SyncOutcome) (int, int, error) {
	batch, err := s.store.ScanPending(ctx, s.cfg.MaxBatchSize)
	if err != nil {
		return 0, 0, err
	}
	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		return 0, 0, err
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get access token: %w", err)
	}

	if err := s.transition(ctx, batch, models.StateInFlight); err != nil {
		return 0, 0, err
	}

	req := &api.SyncRequest{
		DeviceID: s.cfg.DeviceID,
		Cursor:   api.CursorToWire(cursor),
		Changes:  make([]api.Change, 0, len(batch)),
	}
	for _, c := range batch {
		req.Changes = append(req.Changes, api.ChangeFromModel(c))
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	resp, err := s.transport.Sync(reqCtx, token, req)
	cancel()
	if err != nil {
		// Ответа нет - весь пакет возвращается в PENDING даже при отмене контекста
		if rerr := s.transition(context.WithoutCancel(ctx), batch, models.StatePending); rerr != nil {
			s.logger.Error("Failed to revert in-flight batch", "error", rerr)
		}
		outcome.Reverted += len(batch)
		if errors.Is(err, clientapi.ErrUnauthorized) {
			if ierr := s.tokens.Invalidate(context.WithoutCancel(ctx)); ierr != nil {
				s.logger.Warn("Failed to invalidate token", "error", ierr)
			}
			return 0, len(batch), fmt.Errorf("%w: %w", clientapi.ErrTransport, err)
		}
		return 0, len(batch), err
	}

	outcome.Batches++
	outcome.Sent += len(batch)

	progress, err := s.applyOutcomes(context.WithoutCancel(ctx), batch, resp.Outcomes, outcome)
	if err != nil {
		return progress, len(batch), err
	}

	if err := s.applyDeltas(context.WithoutCancel(ctx), resp.Deltas, outcome); err != nil {
		return progress, len(batch), err
	}

	return progress, len(batch), nil
}

func (s *Service) transition(ctx context.Context, batch []*models.ChangeRecord, state models.SyncState) error {
	if len(batch) == 0 {
		return nil
	}
	updates := make([]storage.StateUpdate, 0, len(batch))
	for _, c := range batch {
		updates = append(updates, storage.StateUpdate{ChangeID: c.ChangeID, State: state})
	}
	return s.store.UpdateStates(ctx, updates)
}

// applyOutcomes переводит записи пакета в итоговые состояния одной транзакцией.
// Записи, не упомянутые в ответе, возвращаются в PENDING.
func (s *Service) applyOutcomes(ctx context.Context, batch []*models.ChangeRecord, outcomes []api.Outcome, outcome *SyncOutcome) (int, error) {
	byChange := make(map[string]api.Outcome, len(outcomes))
	for _, o := range outcomes {
		byChange[o.ChangeID] = o
	}

	var (
		updates  = make([]storage.StateUpdate, 0, len(batch))
		rejected []*models.ChangeRecord
		acked    int
		reverted int
	)
	for _, c := range batch {
		o, ok := byChange[c.ChangeID]
		switch {
		case ok && o.Status == api.StatusAcked:
			updates = append(updates, storage.StateUpdate{ChangeID: c.ChangeID, State: models.StateAcked})
			acked++
		case ok && o.Status == api.StatusRejected:
			reason := models.RejectReason(o.Reason)
			updates = append(updates, storage.StateUpdate{ChangeID: c.ChangeID, State: models.StateRejected, Reason: reason})
			r := c.Clone()
			r.State = models.StateRejected
			r.Reason = reason
			rejected = append(rejected, r)
			s.logger.Warn("Change rejected by server",
				"change_id", c.ChangeID,
				"entity_id", c.EntityID,
				"priority", c.Priority,
				"reason", reason)
		default:
			updates = append(updates, storage.StateUpdate{ChangeID: c.ChangeID, State: models.StatePending})
			reverted++
		}
	}

	if err := s.store.UpdateStates(ctx, updates); err != nil {
		return 0, fmt.Errorf("failed to apply outcomes: %w", err)
	}

	outcome.Acked += acked
	outcome.Reverted += reverted
	outcome.Rejected = append(outcome.Rejected, rejected...)
	return acked + len(rejected), nil
}

// applyDeltas применяет дельты по возрастанию server_version внутри типа.
// Версии не выше курсора отбрасываются. Кэш и курсор пишутся одной транзакцией.
func (s *Service) applyDeltas(ctx context.Context, deltas []api.Entity, outcome *SyncOutcome) error {
	if len(deltas) == 0 {
		return nil
	}

	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		return err
	}

	sorted := make([]api.Entity, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntityType != sorted[j].EntityType {
			return sorted[i].EntityType < sorted[j].EntityType
		}
		return sorted[i].ServerVersion < sorted[j].ServerVersion
	})

	next := cursor.Clone()
	fetchedAt := s.now().UTC()
	fresh := make([]*models.CachedEntity, 0, len(sorted))
	var maxTimestamp int64

	for _, d := range sorted {
		e := d.ToModel()
		if !e.EntityType.Valid() {
			s.logger.Warn("Discarding delta of unknown type", "entity_id", e.EntityID, "entity_type", e.EntityType)
			outcome.DeltasDiscarded++
			continue
		}
		if !next.Advance(e.EntityType, e.ServerVersion) {
			s.logger.Warn("Discarding delta at or below cursor",
				"entity_id", e.EntityID,
				"entity_type", e.EntityType,
				"server_version", e.ServerVersion,
				"cursor", next.Get(e.EntityType))
			outcome.DeltasDiscarded++
			continue
		}
		e.FetchedAt = fetchedAt
		fresh = append(fresh, e)
		if e.ClientTimestamp > maxTimestamp {
			maxTimestamp = e.ClientTimestamp
		}
	}

	if err := s.store.ApplyDeltas(ctx, fresh, next); err != nil {
		return fmt.Errorf("failed to apply deltas: %w", err)
	}
	outcome.DeltasApplied += len(fresh)

	if err := s.clock.Observe(ctx, maxTimestamp); err != nil {
		s.logger.Warn("Failed to advance clock", "error", err)
	}
	return nil
}

func (s *Service) setSyncing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = v
}

func criticalOnly(changes []*models.ChangeRecord) []*models.ChangeRecord {
	var out []*models.ChangeRecord
	for _, c := range changes {
		if c.Priority == models.PriorityCritical {
			out = append(out, c)
		}
	}
	return out
}
