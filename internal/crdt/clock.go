package crdt

import (
	"context"
	"fmt"
	"sync"
)

// ClockStore сохраняет значение счетчика между перезапусками устройства.
type ClockStore interface {
	SaveClock(ctx context.Context, counter int64) error
}

// LamportClock логические часы Лампорта одного устройства.
// Каждая локальная мутация получает строго больший timestamp, чем любая
// ранее созданная или наблюдаемая в дельтах сервера.
type LamportClock struct {
	store    ClockStore
	deviceID string
	counter  int64
	mu       sync.Mutex
}

// NewLamportClock создает часы устройства, продолжая счет с сохраненного значения.
// store может быть nil, тогда значение не сохраняется.
func NewLamportClock(deviceID string, start int64, store ClockStore) *LamportClock {
	return &LamportClock{
		deviceID: deviceID,
		counter:  start,
		store:    store,
	}
}

// Tick увеличивает счетчик для нового локального события и сохраняет его.
// Значение сохраняется до возврата, поэтому после сбоя timestamp не повторится.
func (lc *LamportClock) Tick(ctx context.Context) (int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	next := lc.counter + 1
	if err := lc.persist(ctx, next); err != nil {
		return 0, err
	}
	lc.counter = next
	return next, nil
}

// Observe продвигает счетчик до удаленного timestamp, если тот больше.
// Следующий Tick вернет значение строго больше наблюдаемого.
func (lc *LamportClock) Observe(ctx context.Context, remote int64) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remote <= lc.counter {
		return nil
	}
	if err := lc.persist(ctx, remote); err != nil {
		return err
	}
	lc.counter = remote
	return nil
}

// Now возвращает текущее значение счетчика без изменения.
func (lc *LamportClock) Now() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// DeviceID возвращает идентификатор устройства-владельца часов.
func (lc *LamportClock) DeviceID() string {
	return lc.deviceID
}

func (lc *LamportClock) persist(ctx context.Context, value int64) error {
	if lc.store == nil {
		return nil
	}
	if err := lc.store.SaveClock(ctx, value); err != nil {
		return fmt.Errorf("failed to save clock: %w", err)
	}
	return nil
}
