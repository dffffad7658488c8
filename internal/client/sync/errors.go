package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/agrisync/internal/models"
)

var (
	// ErrSyncAbandoned возвращается, когда все попытки отправки исчерпаны.
	// Записи остаются PENDING до следующего триггера.
	ErrSyncAbandoned = errors.New("sync abandoned after retries")

	// ErrNotRejected возвращается при попытке скрыть запись, которая не отклонена
	ErrNotRejected = errors.New("change is not rejected")
)

// RejectedError перечисляет отклоненные сервером CRITICAL изменения
type RejectedError struct {
	Changes []*models.ChangeRecord
}

func (e *RejectedError) Error() string {
	parts := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		parts = append(parts, fmt.Sprintf("%s(%s)", c.ChangeID, c.Reason))
	}
	return fmt.Sprintf("%d critical change(s) rejected: %s", len(e.Changes), strings.Join(parts, ", "))
}
