package api

import "time"

// Change представляет одну запись журнала изменений на проводе
type Change struct {
	WallTime        time.Time `json:"wall_time"`
	ChangeID        string    `json:"change_id"`
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	Priority        string    `json:"priority"`
	Payload         []byte    `json:"payload,omitempty"`
	BaseVersion     int64     `json:"base_version"`
	ClientTimestamp int64     `json:"client_timestamp"`
	Tombstone       bool      `json:"tombstone"`
}

// Entity серверный снимок сущности, возвращаемый в дельтах
type Entity struct {
	UpdatedAt       time.Time `json:"updated_at"`
	EntityID        string    `json:"entity_id"`
	EntityType      string    `json:"entity_type"`
	DeviceID        string    `json:"device_id"`
	Payload         []byte    `json:"payload,omitempty"`
	ServerVersion   int64     `json:"server_version"`
	ClientTimestamp int64     `json:"client_timestamp"`
	Tombstone       bool      `json:"tombstone"`
}

// Статусы результата обработки изменения.
const (
	StatusAcked    = "ACKED"
	StatusRejected = "REJECTED"
)

// Outcome результат обработки одного изменения сервером
type Outcome struct {
	ChangeID      string `json:"change_id"`
	EntityID      string `json:"entity_id"`
	Status        string `json:"status"`                   // ACKED или REJECTED
	Reason        string `json:"reason,omitempty"`         // SUPERSEDED, STALE_ENTITY, VALIDATION_FAILED
	ServerVersion int64  `json:"server_version,omitempty"` // версия сущности после обработки
}

// SyncRequest представляет запрос на синхронизацию от клиента
type SyncRequest struct {
	Cursor   map[string]int64 `json:"cursor"` // максимальная применённая server_version по типу
	DeviceID string           `json:"device_id"`
	Changes  []Change         `json:"changes"`
}

// SyncResponse представляет ответ сервера на синхронизацию
type SyncResponse struct {
	ServerTime time.Time `json:"server_time"`
	Outcomes   []Outcome `json:"outcomes"`
	Deltas     []Entity  `json:"deltas"`
}

// PublishRequest запрос на публикацию общей сущности (например, цены с мандов)
type PublishRequest struct {
	EntityID        string `json:"entity_id"`
	EntityType      string `json:"entity_type"`
	Payload         []byte `json:"payload"`
	ClientTimestamp int64  `json:"client_timestamp"`
	Tombstone       bool   `json:"tombstone"`
}
