// Package config загружает конфигурацию сервиса.
//
// Источники в порядке возрастания приоритета: значения по умолчанию, YAML-файл,
// переменные окружения с префиксом TOKENVAULT_ (разделитель секций "__",
// например TOKENVAULT_DATABASE__DSN), явно заданные флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/maynagashev/tokenvault/internal/logger"
)

// EnvPrefix - префикс переменных окружения.
const EnvPrefix = "TOKENVAULT_"

// Варианты хранилища записей.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Минимальная длина секрета подписи JWT.
const minJWTSecretLength = 16

// Config - конфигурация сервиса.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Minio    MinioConfig    `koanf:"minio"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig - настройки HTTP-сервера.
type ServerConfig struct {
	Port            string        `koanf:"port"`
	CertFile        string        `koanf:"cert_file"`
	KeyFile         string        `koanf:"key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TLSEnabled сообщает, настроен ли TLS.
func (c ServerConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Validate проверяет настройки сервера.
func (c ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("не указан порт")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("для TLS нужны и сертификат, и ключ")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("таймауты должны быть положительными")
	}
	return nil
}

// DatabaseConfig - настройки хранилища записей.
type DatabaseConfig struct {
	Backend        string `koanf:"backend"`
	DSN            string `koanf:"dsn"`
	MigrateOnStart bool   `koanf:"migrate_on_start"`
}

// Validate проверяет настройки хранилища записей.
func (c DatabaseConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("не указана строка подключения к БД")
		}
		return nil
	default:
		return fmt.Errorf("неизвестное хранилище %q (ожидается %s или %s)", c.Backend, BackendPostgres, BackendMemory)
	}
}

// MinioConfig - настройки объектного хранилища выписок.
type MinioConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Validate проверяет настройки MinIO.
func (c MinioConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" || c.Bucket == "" {
		return errors.New("для выписок нужны endpoint и bucket")
	}
	return nil
}

// AuthConfig - настройки аутентификации.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	// Admins - имена пользователей, которым разрешено создавать выпуски и
	// выпускать токены.
	Admins []string `koanf:"admins"`
}

// Validate проверяет настройки аутентификации.
func (c AuthConfig) Validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("секрет JWT короче %d символов", minJWTSecretLength)
	}
	if c.TokenTTL <= 0 {
		return errors.New("время жизни токена должно быть положительным")
	}
	return nil
}

// IsAdmin сообщает, является ли username администратором.
func (c AuthConfig) IsAdmin(username string) bool {
	for _, a := range c.Admins {
		if a == username {
			return true
		}
	}
	return false
}

// LogConfig - настройки журнала.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate проверяет настройки журнала.
func (c LogConfig) Validate() error {
	if _, err := logger.ParseLevel(c.Level); err != nil {
		return err
	}
	_, err := logger.ParseFormat(c.Format)
	return err
}

// MetricsConfig - настройки сервиса метрик. Пустой адрес отключает метрики.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Validate выполняет проверку всех секций.
func (cfg *Config) Validate() error {
	if err := cfg.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.Minio.Validate(); err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	if err := cfg.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// defaults - значения по умолчанию.
func defaults() map[string]any {
	return map[string]any{
		"server.port":               "8443",
		"server.read_timeout":       15 * time.Second,
		"server.write_timeout":      15 * time.Second,
		"server.idle_timeout":       60 * time.Second,
		"server.shutdown_timeout":   10 * time.Second,
		"database.backend":          BackendPostgres,
		"database.migrate_on_start": true,
		"minio.bucket":              "tokenvault-statements",
		"auth.token_ttl":            24 * time.Hour,
		"log.level":                 "info",
		"log.format":                "json",
	}
}

// flagKeys сопоставляет флаги командной строки ключам конфигурации.
var flagKeys = map[string]string{
	"port":         "server.port",
	"cert-file":    "server.cert_file",
	"key-file":     "server.key_file",
	"database-dsn": "database.dsn",
	"storage":      "database.backend",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// RegisterFlags объявляет флаги, переопределяющие конфигурацию.
// Флаг --config задает путь к YAML-файлу и возвращается отдельно.
func RegisterFlags(fs *flag.FlagSet) *string {
	path := fs.String("config", "", "Путь к YAML-файлу конфигурации")
	fs.String("port", "", "Порт HTTP-сервера (env: TOKENVAULT_SERVER__PORT, default: 8443)")
	fs.String("cert-file", "", "Путь к файлу TLS-сертификата (env: TOKENVAULT_SERVER__CERT_FILE)")
	fs.String("key-file", "", "Путь к файлу TLS-ключа (env: TOKENVAULT_SERVER__KEY_FILE)")
	fs.String("database-dsn", "", "Строка подключения к БД (env: TOKENVAULT_DATABASE__DSN)")
	fs.String("storage", "", "Хранилище записей: postgres или memory (env: TOKENVAULT_DATABASE__BACKEND)")
	fs.String("log-level", "", "Уровень журнала: debug, info, warn, error (env: TOKENVAULT_LOG__LEVEL)")
	fs.String("metrics-addr", "", "Адрес сервиса метрик, пусто - отключено (env: TOKENVAULT_METRICS__ADDR)")
	return path
}

// Load собирает конфигурацию из всех источников и проверяет ее.
// fs может быть nil; учитываются только явно заданные флаги.
func Load(path string, fs *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("ошибка загрузки значений по умолчанию: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	if fs != nil {
		overrides := make(map[string]any)
		fs.Visit(func(f *flag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				overrides[key] = f.Value.String()
			}
		})
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("ошибка применения флагов: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey переводит TOKENVAULT_DATABASE__DSN в database.dsn.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
