package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iudanet/agrisync/internal/client/connectivity"
)

// Run подписывается на события связи: при переходе в online запускает
// синхронизацию и затем повторяет ее каждые SyncInterval, пока связь есть.
// Возвращается при отмене ctx или закрытии канала событий, дождавшись
// фоновых синхронизаций: после возврата хранилище можно закрывать.
func (s *Service) Run(ctx context.Context, monitor connectivity.Monitor) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.background(ctx)
		}()
	}

	events := monitor.Events()
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Info("Connectivity changed", "state", ev.State)
			switch ev.State {
			case connectivity.Online:
				s.SetOnline(true)
				if ticker == nil {
					ticker = time.NewTicker(s.cfg.SyncInterval)
					tick = ticker.C
				}
				start()
			case connectivity.Offline:
				s.SetOnline(false)
				stopTicker()
			}

		case <-tick:
			start()
		}
	}
}

// background запускает синхронизацию и только логирует ошибки
func (s *Service) background(ctx context.Context) {
	outcome, err := s.TriggerSync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		return
	default:
		s.logger.Warn("Background sync failed", "error", err)
		return
	}
	if rerr := outcome.Err(); rerr != nil {
		s.logger.Warn("Critical changes rejected", "error", rerr)
	}
}
