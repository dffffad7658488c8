// Package config загружает конфигурацию сервера и клиента:
// YAML-файл (необязательный), затем переменные окружения AGRISYNC_*, затем значения по умолчанию.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "AGRISYNC_"

// ErrInvalidConfig возвращается когда итоговая конфигурация не проходит проверку
var ErrInvalidConfig = errors.New("invalid config")

// AuditConfig настройки архивации журнала конфликтов в S3
type AuditConfig struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"` // S3-совместимое хранилище (MinIO); включает path-style
	Prefix          string        `yaml:"prefix"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
}

// Enabled - архивация включена только при заданном бакете
func (a AuditConfig) Enabled() bool {
	return a.Bucket != ""
}

// ServerConfig конфигурация сервера синхронизации
type ServerConfig struct {
	Audit         AuditConfig   `yaml:"audit"`
	Addr          string        `yaml:"addr"`
	DBPath        string        `yaml:"db_path"`
	JWTSecret     string        `yaml:"jwt_secret"`
	EnrollmentKey string        `yaml:"enrollment_key"`
	AdminKey      string        `yaml:"admin_key"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	RateLimit     int           `yaml:"rate_limit"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	MaxBatchSize  int           `yaml:"max_batch_size"`
}

// ClientConfig конфигурация клиента
type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	DBPath         string        `yaml:"db_path"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	Compress       bool          `yaml:"compress"`
}

// DefaultServerConfig значения по умолчанию для сервера
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		DBPath:       "agrisync.db",
		LogLevel:     "info",
		LogFormat:    "text",
		TokenTTL:     15 * time.Minute,
		RateLimit:    100,
		MaxBodyBytes: 4 << 20,
		MaxBatchSize: 100,
		Audit: AuditConfig{
			Prefix:        "conflicts/",
			FlushInterval: 10 * time.Minute,
		},
	}
}

// DefaultClientConfig значения по умолчанию для клиента
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:      "http://localhost:8080",
		DBPath:         "agrisync-client.db",
		LogLevel:       "warn",
		LogFormat:      "text",
		SyncInterval:   5 * time.Minute,
		RequestTimeout: 30 * time.Second,
		MaxBatchSize:   100,
		Compress:       true,
	}
}

// LoadServer читает конфигурацию сервера. Пустой path - только окружение и значения по умолчанию.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := readFile(path, &cfg); err != nil {
		return nil, err
	}

	env := envReader{}
	env.str("ADDR", &cfg.Addr)
	env.str("DB_PATH", &cfg.DBPath)
	env.str("JWT_SECRET", &cfg.JWTSecret)
	env.str("ENROLLMENT_KEY", &cfg.EnrollmentKey)
	env.str("ADMIN_KEY", &cfg.AdminKey)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("LOG_FORMAT", &cfg.LogFormat)
	env.duration("TOKEN_TTL", &cfg.TokenTTL)
	env.integer("RATE_LIMIT", &cfg.RateLimit)
	env.integer("MAX_BATCH_SIZE", &cfg.MaxBatchSize)
	env.int64("MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	env.str("AUDIT_BUCKET", &cfg.Audit.Bucket)
	env.str("AUDIT_REGION", &cfg.Audit.Region)
	env.str("AUDIT_ENDPOINT", &cfg.Audit.Endpoint)
	env.str("AUDIT_PREFIX", &cfg.Audit.Prefix)
	env.str("AUDIT_ACCESS_KEY_ID", &cfg.Audit.AccessKeyID)
	env.str("AUDIT_SECRET_ACCESS_KEY", &cfg.Audit.SecretAccessKey)
	env.duration("AUDIT_FLUSH_INTERVAL", &cfg.Audit.FlushInterval)
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient читает конфигурацию клиента
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := readFile(path, &cfg); err != nil {
		return nil, err
	}

	env := envReader{}
	env.str("SERVER_URL", &cfg.ServerURL)
	env.str("CLIENT_DB_PATH", &cfg.DBPath)
	env.str("CLIENT_LOG_LEVEL", &cfg.LogLevel)
	env.str("CLIENT_LOG_FORMAT", &cfg.LogFormat)
	env.duration("SYNC_INTERVAL", &cfg.SyncInterval)
	env.duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	env.integer("CLIENT_MAX_BATCH_SIZE", &cfg.MaxBatchSize)
	env.boolean("COMPRESS", &cfg.Compress)
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет конфигурацию сервера
func (c *ServerConfig) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	case len(c.JWTSecret) < 32:
		return fmt.Errorf("%w: jwt_secret must be at least 32 bytes", ErrInvalidConfig)
	case c.EnrollmentKey == "":
		return fmt.Errorf("%w: enrollment_key is required", ErrInvalidConfig)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	case c.RateLimit <= 0:
		return fmt.Errorf("%w: rate_limit must be positive", ErrInvalidConfig)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	case c.Audit.Enabled() && c.Audit.FlushInterval <= 0:
		return fmt.Errorf("%w: audit.flush_interval must be positive", ErrInvalidConfig)
	case c.Audit.Enabled() && c.Audit.Region == "":
		return fmt.Errorf("%w: audit.region is required", ErrInvalidConfig)
	}
	return validateLog(c.LogLevel, c.LogFormat)
}

// Validate проверяет конфигурацию клиента
func (c *ClientConfig) Validate() error {
	switch {
	case !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://"):
		return fmt.Errorf("%w: server_url must be http(s), got %q", ErrInvalidConfig, c.ServerURL)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	case c.SyncInterval <= 0:
		return fmt.Errorf("%w: sync_interval must be positive", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	}
	return validateLog(c.LogLevel, c.LogFormat)
}

func validateLog(level, format string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
	}
	switch strings.ToLower(format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, format)
	}
	return nil
}

func readFile(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// envReader применяет переменные окружения, запоминая первую ошибку разбора
type envReader struct {
	first error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) fail(key string, err error) {
	if r.first == nil {
		r.first = fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, key, err)
	}
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = d
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = n
}

func (r *envReader) int64(key string, dst *int64) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = n
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = b
}

func (r *envReader) err() error {
	return r.first
}
