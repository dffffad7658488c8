package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

const (
	// DeviceIDKey ключ для хранения device_id в контексте
	DeviceIDKey contextKey = "device_id"
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
)

// WithIdentity сохраняет аутентифицированное устройство в контексте запроса
func WithIdentity(ctx context.Context, deviceID, userID string) context.Context {
	ctx = context.WithValue(ctx, DeviceIDKey, deviceID)
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetDeviceID извлекает device_id из контекста запроса
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok
}

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
