package models

import "time"

// Окна свежести кэша по типу сущности.
const (
	PriceFreshness        = 24 * time.Hour
	AvailabilityFreshness = 24 * time.Hour
	AdvisoryFreshness     = 72 * time.Hour
	ProfileFreshness      = 30 * 24 * time.Hour
)

// FreshnessWindow returns how long a cached entity of type t stays fresh.
func FreshnessWindow(t EntityType) time.Duration {
	switch t {
	case EntityPriceQuery:
		return PriceFreshness
	case EntityCropAvailability:
		return AvailabilityFreshness
	case EntityAdvisoryRequest:
		return AdvisoryFreshness
	case EntityProfileUpdate:
		return ProfileFreshness
	}
	return PriceFreshness
}

// CachedEntity представляет серверный снимок сущности.
// На клиенте хранится в локальном кэше, на сервере - в каноническом хранилище.
type CachedEntity struct {
	FetchedAt       time.Time  `json:"fetched_at"`       // FetchedAt время получения клиентом
	UpdatedAt       time.Time  `json:"updated_at"`       // UpdatedAt время применения записи сервером
	EntityID        string     `json:"entity_id"`        // EntityID идентификатор сущности
	EntityType      EntityType `json:"entity_type"`      // EntityType тип сущности
	UserID          string     `json:"user_id"`          // UserID владелец (пусто = общая сущность)
	DeviceID        string     `json:"device_id"`        // DeviceID устройство, чья запись победила
	Payload         []byte     `json:"payload"`          // Payload сериализованное тело
	ServerVersion   int64      `json:"server_version"`   // ServerVersion версия, назначенная сервером
	ClientTimestamp int64      `json:"client_timestamp"` // ClientTimestamp Lamport timestamp победившей записи
	Tombstone       bool       `json:"tombstone"`        // Tombstone логическое удаление
}

// IsStale reports whether the entity has outlived its freshness window.
func (e *CachedEntity) IsStale(now time.Time) bool {
	if e.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(e.FetchedAt) > FreshnessWindow(e.EntityType)
}

// Clone создает глубокую копию сущности
func (e *CachedEntity) Clone() *CachedEntity {
	payload := make([]byte, len(e.Payload))
	copy(payload, e.Payload)

	clone := *e
	clone.Payload = payload
	return &clone
}

// SyncCursor - водяной знак устройства: максимальная применённая server_version по типу.
type SyncCursor map[EntityType]int64

// Clone returns an independent copy of the cursor.
func (c SyncCursor) Clone() SyncCursor {
	out := make(SyncCursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Get returns the watermark for t, zero when unknown.
func (c SyncCursor) Get(t EntityType) int64 {
	if c == nil {
		return 0
	}
	return c[t]
}

// Advance raises the watermark for t; lower values are ignored so the cursor never decreases.
func (c SyncCursor) Advance(t EntityType, version int64) bool {
	if version <= c[t] {
		return false
	}
	c[t] = version
	return true
}

// Conflict описывает конфликт, обнаруженный при серверной сверке.
// Разрешается синхронно и сохраняется для аудита.
type Conflict struct {
	DetectedAt        time.Time    `json:"detected_at"`
	ID                string       `json:"id"`
	EntityID          string       `json:"entity_id"`
	EntityType        EntityType   `json:"entity_type"`
	IncomingChangeID  string       `json:"incoming_change_id"`
	IncomingDeviceID  string       `json:"incoming_device_id"`
	CurrentDeviceID   string       `json:"current_device_id"`
	Winner            string       `json:"winner"` // "incoming" или "current"
	Reason            RejectReason `json:"reason,omitempty"`
	IncomingBase      int64        `json:"incoming_base"`
	CurrentVersion    int64        `json:"current_version"`
	IncomingTimestamp int64        `json:"incoming_timestamp"`
	CurrentTimestamp  int64        `json:"current_timestamp"`
	Archived          bool         `json:"archived"`
}

const (
	WinnerIncoming = "incoming"
	WinnerCurrent  = "current"
)

// Device представляет зарегистрированное устройство
type Device struct {
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	ID         string     `json:"id"`          // идентификатор устройства
	UserID     string     `json:"user_id"`     // владелец устройства (фермер)
	SecretHash string     `json:"secret_hash"` // bcrypt хеш секрета устройства
}
