package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Crypto   CryptoConfig
	OCR      OCRConfig
	Convert  ConvertConfig
	Backups  BackupsConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the on-disk file store roots.
type StorageConfig struct {
	// BaseDir is the root of the public file tree (documents, previews, converted).
	BaseDir string
	// DocumentsDir is the subdirectory holding encrypted blobs.
	DocumentsDir string
	// PreviewsDir holds decrypted previews and converted PDFs.
	PreviewsDir string
}

// CryptoConfig carries the file encryption key, base64-encoded at rest.
type CryptoConfig struct {
	// KeyBase64 decodes to the 32-byte AES-256 key. Not rotated by this service.
	KeyBase64 string
}

// Key decodes the configured encryption key.
func (c CryptoConfig) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.KeyBase64)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return key, nil
}

// OCRConfig points at the external extract-and-classify service.
type OCRConfig struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ConvertConfig configures the external office-to-PDF converter.
type ConvertConfig struct {
	Binary    string
	OutputDir string
	Timeout   time.Duration
}

// BackupsConfig controls snapshot creation and signed archive downloads.
type BackupsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	// Interval between automatic snapshots; zero disables the ticker.
	Interval time.Duration
}

// ExportsConfig tunes document inventory exports.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	ResultTTL       time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		BaseDir:      v.GetString("STORAGE_BASE_DIR"),
		DocumentsDir: v.GetString("STORAGE_DOCUMENTS_DIR"),
		PreviewsDir:  v.GetString("STORAGE_PREVIEWS_DIR"),
	}

	cfg.Crypto = CryptoConfig{
		KeyBase64: v.GetString("FILE_ENCRYPTION_KEY"),
	}

	cfg.OCR = OCRConfig{
		Endpoint: v.GetString("OCR_ENDPOINT"),
		Timeout:  parseDuration(v.GetString("OCR_TIMEOUT"), 5*time.Second),
		CacheTTL: parseDuration(v.GetString("OCR_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Convert = ConvertConfig{
		Binary:    v.GetString("CONVERT_BINARY"),
		OutputDir: v.GetString("CONVERT_OUTPUT_DIR"),
		Timeout:   parseDuration(v.GetString("CONVERT_TIMEOUT"), 60*time.Second),
	}

	cfg.Backups = BackupsConfig{
		StorageDir:      v.GetString("BACKUPS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("BACKUPS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("BACKUPS_SIGNED_URL_TTL"), 30*time.Minute),
		Interval:        parseDuration(v.GetString("BACKUPS_INTERVAL"), 0),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		ResultTTL:       parseDuration(v.GetString("EXPORTS_RESULT_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docunet")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BASE_DIR", "./storage/public")
	v.SetDefault("STORAGE_DOCUMENTS_DIR", "documents")
	v.SetDefault("STORAGE_PREVIEWS_DIR", "previews")

	v.SetDefault("FILE_ENCRYPTION_KEY", "")

	v.SetDefault("OCR_ENDPOINT", "http://127.0.0.1:5000/extract-and-classify")
	v.SetDefault("OCR_TIMEOUT", "5s")
	v.SetDefault("OCR_CACHE_TTL", "24h")

	v.SetDefault("CONVERT_BINARY", "soffice")
	v.SetDefault("CONVERT_OUTPUT_DIR", "./storage/public/converted")
	v.SetDefault("CONVERT_TIMEOUT", "60s")

	v.SetDefault("BACKUPS_STORAGE_DIR", "./storage/backups")
	v.SetDefault("BACKUPS_SIGNED_URL_SECRET", "dev_backups_secret")
	v.SetDefault("BACKUPS_SIGNED_URL_TTL", "30m")
	v.SetDefault("BACKUPS_INTERVAL", "0s")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./storage/exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_RESULT_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
