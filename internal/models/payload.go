package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload возвращается, когда тело изменения не проходит валидацию.
var ErrInvalidPayload = errors.New("invalid payload")

// Language код языка интерфейса фермера.
type Language string

const (
	LanguageHindi   Language = "hi"
	LanguageTamil   Language = "ta"
	LanguageTelugu  Language = "te"
	LanguageKannada Language = "kn"
	LanguageMarathi Language = "mr"
	LanguageEnglish Language = "en"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case LanguageHindi, LanguageTamil, LanguageTelugu, LanguageKannada, LanguageMarathi, LanguageEnglish:
		return true
	}
	return false
}

// QualityGrade класс качества урожая.
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
)

// Valid reports whether g is a known grade.
func (g QualityGrade) Valid() bool {
	return g == GradeA || g == GradeB || g == GradeC
}

// CurrencyINR единственная поддерживаемая валюта.
const CurrencyINR = "INR"

// Payload - закрытое объединение типизированных тел изменений.
// Реализуется только типами этого пакета.
type Payload interface {
	EntityType() EntityType
	Validate() error
	payload()
}

// PriceQuery запрос цены на мандах.
type PriceQuery struct {
	Crop            string  `json:"crop"`
	Variety         string  `json:"variety,omitempty"`
	Mandi           string  `json:"mandi,omitempty"`
	District        string  `json:"district,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	Lat             float64 `json:"lat,omitempty"`
	Lon             float64 `json:"lon,omitempty"`
	PricePerQuintal float64 `json:"price_per_quintal,omitempty"`
}

func (PriceQuery) EntityType() EntityType { return EntityPriceQuery }
func (PriceQuery) payload()               {}

// Validate checks required fields and ranges.
func (p PriceQuery) Validate() error {
	if strings.TrimSpace(p.Crop) == "" {
		return fmt.Errorf("%w: crop is required", ErrInvalidPayload)
	}
	if p.PricePerQuintal < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidPayload)
	}
	if p.Currency != "" && p.Currency != CurrencyINR {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidPayload, p.Currency)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidPayload)
	}
	return nil
}

// ProfileUpdate изменение профиля фермера.
type ProfileUpdate struct {
	Name          string   `json:"name"`
	Language      Language `json:"language"`
	District      string   `json:"district,omitempty"`
	SoilType      string   `json:"soil_type,omitempty"`
	CropTypes     []string `json:"crop_types,omitempty"`
	LandSizeAcres float64  `json:"land_size_acres,omitempty"`
}

func (ProfileUpdate) EntityType() EntityType { return EntityProfileUpdate }
func (ProfileUpdate) payload()               {}

// Validate checks required fields and ranges.
func (p ProfileUpdate) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPayload)
	}
	if !p.Language.Valid() {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidPayload, p.Language)
	}
	if p.LandSizeAcres < 0 {
		return fmt.Errorf("%w: land size must be non-negative", ErrInvalidPayload)
	}
	return nil
}

// CropAvailability предложение урожая для покупателей.
type CropAvailability struct {
	AvailableFrom   time.Time    `json:"available_from"`
	Crop            string       `json:"crop"`
	Variety         string       `json:"variety,omitempty"`
	QualityGrade    QualityGrade `json:"quality_grade"`
	District        string       `json:"district,omitempty"`
	QuantityQuintal float64      `json:"quantity_quintal"`
	AskingPrice     float64      `json:"asking_price,omitempty"`
}

func (CropAvailability) EntityType() EntityType { return EntityCropAvailability }
func (CropAvailability) payload()               {}

// Validate checks required fields and ranges.
func (p CropAvailability) Validate() error {
	if strings.TrimSpace(p.Crop) == "" {
		return fmt.Errorf("%w: crop is required", ErrInvalidPayload)
	}
	if p.QuantityQuintal <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidPayload)
	}
	if !p.QualityGrade.Valid() {
		return fmt.Errorf("%w: unknown quality grade %q", ErrInvalidPayload, p.QualityGrade)
	}
	if p.AskingPrice < 0 {
		return fmt.Errorf("%w: asking price must be non-negative", ErrInvalidPayload)
	}
	return nil
}

// AdvisoryRequest вопрос фермера к консультационной службе.
type AdvisoryRequest struct {
	Question string   `json:"question"`
	Crop     string   `json:"crop,omitempty"`
	Language Language `json:"language"`
	District string   `json:"district,omitempty"`
}

func (AdvisoryRequest) EntityType() EntityType { return EntityAdvisoryRequest }
func (AdvisoryRequest) payload()               {}

// MaxQuestionLength ограничение длины вопроса в символах.
const MaxQuestionLength = 1000

// Validate checks required fields and ranges.
func (p AdvisoryRequest) Validate() error {
	q := strings.TrimSpace(p.Question)
	if q == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidPayload)
	}
	if len([]rune(q)) > MaxQuestionLength {
		return fmt.Errorf("%w: question exceeds %d characters", ErrInvalidPayload, MaxQuestionLength)
	}
	if !p.Language.Valid() {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidPayload, p.Language)
	}
	return nil
}

// DecodePayload декодирует тело изменения в вариант, соответствующий типу сущности.
// Тела tombstone-записей могут быть пустыми.
func DecodePayload(t EntityType, raw []byte) (Payload, error) {
	var p Payload
	switch t {
	case EntityPriceQuery:
		var v PriceQuery
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case EntityProfileUpdate:
		var v ProfileUpdate
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case EntityCropAvailability:
		var v CropAvailability
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case EntityAdvisoryRequest:
		var v AdvisoryRequest
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidPayload, t)
	}
	return p, nil
}

// EncodePayload сериализует типизированное тело.
func EncodePayload(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return raw, nil
}

// ValidateChange проверяет запись целиком: идентификаторы, тип и тело.
func ValidateChange(c *ChangeRecord) error {
	if c.ChangeID == "" {
		return fmt.Errorf("%w: change_id is required", ErrInvalidPayload)
	}
	if c.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrInvalidPayload)
	}
	if !c.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidPayload, c.EntityType)
	}
	if c.BaseVersion < 0 {
		return fmt.Errorf("%w: base_version must be non-negative", ErrInvalidPayload)
	}
	if c.Tombstone {
		return nil
	}
	p, err := DecodePayload(c.EntityType, c.Payload)
	if err != nil {
		return err
	}
	return p.Validate()
}
