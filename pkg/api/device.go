package api

// RegisterDeviceRequest запрос на регистрацию устройства
type RegisterDeviceRequest struct {
	DeviceID      string `json:"device_id"`      // идентификатор устройства (UUID)
	UserID        string `json:"user_id"`        // идентификатор фермера
	DeviceSecret  string `json:"device_secret"`  // секрет устройства, хранится только как bcrypt хеш
	EnrollmentKey string `json:"enrollment_key"` // общий ключ регистрации, выданный оператором
}

// RegisterDeviceResponse ответ на успешную регистрацию устройства
type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	Message  string `json:"message"`
}

// TokenRequest запрос access token для устройства
type TokenRequest struct {
	DeviceID     string `json:"device_id"`
	DeviceSecret string `json:"device_secret"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// Коды ошибок API.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Code    string `json:"code,omitempty"`    // машинно-читаемый код
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse ответ проверки состояния сервера
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
