package connectivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualMonitor(t *testing.T) {
	m := NewManualMonitor(4)

	m.SetOnline()
	m.SetOffline()
	m.Close()
	m.SetOnline() // после Close события игнорируются
	m.Close()

	var states []State
	for ev := range m.Events() {
		require.False(t, ev.At.IsZero())
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{Online, Offline}, states)
}

func TestManualMonitor_FullBufferKeepsLatest(t *testing.T) {
	m := NewManualMonitor(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Никто не читает: события не должны блокировать
		m.SetOnline()
		m.SetOffline()
		m.SetOnline()
		m.SetOffline()
		m.Close()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full buffer")
	}

	var states []State
	for ev := range m.Events() {
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{Online, Offline}, states)
}

func TestNewManualMonitor_UnbufferedDoesNotBlock(t *testing.T) {
	m := NewManualMonitor(0)
	m.SetOnline()
	m.SetOffline()
	m.Close()

	var states []State
	for ev := range m.Events() {
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{Offline}, states)
}
