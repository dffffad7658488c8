package crdt

// Stamp логическая метка записи: timestamp Лампорта и устройство-автор.
type Stamp struct {
	DeviceID  string
	Timestamp int64
}

// Decision результат разрешения конфликта.
type Decision int

const (
	// CurrentWins сохраненная запись остается, входящая отклоняется.
	CurrentWins Decision = iota
	// IncomingWins входящая запись заменяет сохраненную.
	IncomingWins
	// Duplicate входящая запись является повтором уже сохраненной.
	Duplicate
)

func (d Decision) String() string {
	switch d {
	case IncomingWins:
		return "incoming"
	case Duplicate:
		return "duplicate"
	default:
		return "current"
	}
}

// IsNewerThan сравнивает метки по правилу LWW:
// больший timestamp выигрывает, при равенстве выигрывает лексикографически
// больший device id.
func (s Stamp) IsNewerThan(other Stamp) bool {
	if s.Timestamp != other.Timestamp {
		return s.Timestamp > other.Timestamp
	}
	return s.DeviceID > other.DeviceID
}

// Resolve решает конфликт между входящей и сохраненной записью.
// Функция детерминирована и не зависит от порядка прихода записей.
func Resolve(incoming, current Stamp) Decision {
	if incoming == current {
		return Duplicate
	}
	if incoming.IsNewerThan(current) {
		return IncomingWins
	}
	return CurrentWins
}
