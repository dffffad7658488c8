// Package connectivity сообщает Sync Client о появлении и пропаже связи.
package connectivity

import (
	"sync"
	"time"
)

// State состояние связи
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Event изменение состояния связи
type Event struct {
	At    time.Time
	State State
}

// Monitor источник событий связи. Канал закрывается, когда монитор остановлен.
type Monitor interface {
	Events() <-chan Event
}

// ManualMonitor управляется вызовами SetOnline/SetOffline.
// Используется в тестах и при однократном запуске из CLI.
type ManualMonitor struct {
	events chan Event
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewManualMonitor создает монитор с буфером событий (не меньше одного).
// При полном буфере самое старое событие вытесняется новым.
func NewManualMonitor(buffer int) *ManualMonitor {
	if buffer < 1 {
		buffer = 1
	}
	return &ManualMonitor{events: make(chan Event, buffer)}
}

// Events returns the event channel.
func (m *ManualMonitor) Events() <-chan Event {
	return m.events
}

// SetOnline публикует событие online
func (m *ManualMonitor) SetOnline() {
	m.emit(Online)
}

// SetOffline публикует событие offline
func (m *ManualMonitor) SetOffline() {
	m.emit(Offline)
}

// Close закрывает канал событий
func (m *ManualMonitor) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.closed = true
		close(m.events)
	})
}

func (m *ManualMonitor) emit(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	ev := Event{State: s, At: time.Now()}
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		// Буфер полон: важно последнее состояние, старое отбрасываем
		select {
		case <-m.events:
		default:
		}
	}
}
