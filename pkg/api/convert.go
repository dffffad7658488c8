package api

import "github.com/iudanet/agrisync/internal/models"

// ChangeFromModel переводит запись журнала в формат API
func ChangeFromModel(c *models.ChangeRecord) Change {
	return Change{
		ChangeID:        c.ChangeID,
		EntityType:      string(c.EntityType),
		EntityID:        c.EntityID,
		Priority:        string(c.Priority),
		Payload:         c.Payload,
		BaseVersion:     c.BaseVersion,
		ClientTimestamp: c.ClientTimestamp,
		WallTime:        c.WallTime,
		Tombstone:       c.Tombstone,
	}
}

// ToModel переводит запись API в модель; статус и причина не передаются по сети
func (c Change) ToModel() *models.ChangeRecord {
	priority := models.PriorityClass(c.Priority)
	if priority != models.PriorityCritical && priority != models.PriorityNormal {
		priority = models.DefaultPriority(models.EntityType(c.EntityType))
	}
	return &models.ChangeRecord{
		ChangeID:        c.ChangeID,
		EntityType:      models.EntityType(c.EntityType),
		EntityID:        c.EntityID,
		Priority:        priority,
		Payload:         c.Payload,
		BaseVersion:     c.BaseVersion,
		ClientTimestamp: c.ClientTimestamp,
		WallTime:        c.WallTime,
		Tombstone:       c.Tombstone,
	}
}

// EntityFromModel переводит серверный снимок в формат API
func EntityFromModel(e *models.CachedEntity) Entity {
	return Entity{
		EntityID:        e.EntityID,
		EntityType:      string(e.EntityType),
		DeviceID:        e.DeviceID,
		Payload:         e.Payload,
		ServerVersion:   e.ServerVersion,
		ClientTimestamp: e.ClientTimestamp,
		Tombstone:       e.Tombstone,
		UpdatedAt:       e.UpdatedAt,
	}
}

// ToModel переводит снимок API в модель кэша
func (e Entity) ToModel() *models.CachedEntity {
	return &models.CachedEntity{
		EntityID:        e.EntityID,
		EntityType:      models.EntityType(e.EntityType),
		DeviceID:        e.DeviceID,
		Payload:         e.Payload,
		ServerVersion:   e.ServerVersion,
		ClientTimestamp: e.ClientTimestamp,
		Tombstone:       e.Tombstone,
		UpdatedAt:       e.UpdatedAt,
	}
}

// CursorToWire переводит курсор в map для JSON и query-параметров
func CursorToWire(c models.SyncCursor) map[string]int64 {
	out := make(map[string]int64, len(c))
	for k, v := range c {
		out[string(k)] = v
	}
	return out
}

// CursorFromWire переводит курсор из запроса; неизвестные типы пропускаются
func CursorFromWire(m map[string]int64) models.SyncCursor {
	out := make(models.SyncCursor, len(m))
	for k, v := range m {
		t := models.EntityType(k)
		if !t.Valid() || v < 0 {
			continue
		}
		out[t] = v
	}
	return out
}
