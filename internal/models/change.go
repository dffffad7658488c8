package models

import (
	"fmt"
	"time"
)

// EntityType тип сущности, над которой выполняется изменение.
type EntityType string

const (
	EntityPriceQuery       EntityType = "PRICE_QUERY"
	EntityProfileUpdate    EntityType = "PROFILE_UPDATE"
	EntityCropAvailability EntityType = "CROP_AVAILABILITY"
	EntityAdvisoryRequest  EntityType = "ADVISORY_REQUEST"
)

// EntityTypes перечисляет все известные типы в стабильном порядке.
var EntityTypes = []EntityType{
	EntityPriceQuery,
	EntityProfileUpdate,
	EntityCropAvailability,
	EntityAdvisoryRequest,
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPriceQuery, EntityProfileUpdate, EntityCropAvailability, EntityAdvisoryRequest:
		return true
	}
	return false
}

// ParseEntityType converts a wire string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// PriorityClass определяет порядок отправки при ограниченной связи.
type PriorityClass string

const (
	PriorityCritical PriorityClass = "CRITICAL"
	PriorityNormal   PriorityClass = "NORMAL"
)

// Rank returns a sort key: lower ranks are sent first.
func (p PriorityClass) Rank() int {
	if p == PriorityCritical {
		return 0
	}
	return 1
}

// DefaultPriority возвращает класс приоритета по типу сущности.
// Ценовые запросы и предложения урожая (матчинг покупателей) критичны,
// профиль и консультации - нет.
func DefaultPriority(t EntityType) PriorityClass {
	switch t {
	case EntityPriceQuery, EntityCropAvailability:
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// SyncState состояние записи в журнале изменений.
type SyncState string

const (
	StatePending  SyncState = "PENDING"
	StateInFlight SyncState = "IN_FLIGHT"
	StateAcked    SyncState = "ACKED"
	StateRejected SyncState = "REJECTED"
)

// RejectReason причина отклонения изменения сервером.
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonSuperseded       RejectReason = "SUPERSEDED"
	ReasonStaleEntity      RejectReason = "STALE_ENTITY"
	ReasonValidationFailed RejectReason = "VALIDATION_FAILED"
)

// ChangeOutcome итог обработки изменения сервером. Хранится по
// (DeviceID, ChangeID), чтобы повтор запроса получил тот же ответ.
type ChangeOutcome struct {
	ProcessedAt   time.Time
	DeviceID      string
	ChangeID      string
	EntityID      string
	Status        SyncState
	Reason        RejectReason
	ServerVersion int64
}

// ChangeRecord представляет одно изменение, созданное на клиенте.
type ChangeRecord struct {
	WallTime        time.Time     `json:"wall_time"`        // WallTime физическое время (только для информации)
	ChangeID        string        `json:"change_id"`        // ChangeID уникальный идентификатор изменения (UUID)
	EntityType      EntityType    `json:"entity_type"`      // EntityType тип сущности
	EntityID        string        `json:"entity_id"`        // EntityID идентификатор сущности
	Priority        PriorityClass `json:"priority"`         // Priority класс приоритета
	State           SyncState     `json:"state"`            // State состояние синхронизации
	Reason          RejectReason  `json:"reason,omitempty"` // Reason причина отклонения
	Payload         []byte        `json:"payload"`          // Payload сериализованное тело сущности
	Seq             uint64        `json:"seq"`              // Seq порядковый номер в локальном журнале
	BaseVersion     int64         `json:"base_version"`     // BaseVersion последняя известная клиенту server_version (0 = новая)
	ClientTimestamp int64         `json:"client_timestamp"` // ClientTimestamp Lamport timestamp устройства
	Tombstone       bool          `json:"tombstone"`        // Tombstone логическое удаление
}

// Clone создает глубокую копию записи
func (c *ChangeRecord) Clone() *ChangeRecord {
	payload := make([]byte, len(c.Payload))
	copy(payload, c.Payload)

	clone := *c
	clone.Payload = payload
	return &clone
}

// Less orders records for transmission: CRITICAL before NORMAL, then by
// logical timestamp, then by log sequence.
func (c *ChangeRecord) Less(other *ChangeRecord) bool {
	if c.Priority.Rank() != other.Priority.Rank() {
		return c.Priority.Rank() < other.Priority.Rank()
	}
	if c.ClientTimestamp != other.ClientTimestamp {
		return c.ClientTimestamp < other.ClientTimestamp
	}
	return c.Seq < other.Seq
}
