package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	OCR       OCRConfig
	Audit     AuditConfig
	Storage   StorageConfig
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string `validate:"required"`
	GRPCAddr    string
	MaxUploadMB int `validate:"gte=1,lte=4096"`
}

// DatabaseConfig holds database-related configuration. An empty DSN disables
// persistence of finished runs.
type DatabaseConfig struct {
	Driver          string `validate:"oneof=pgx sqlite"`
	DSN             string
	MaxOpenConns    int           `validate:"gte=0"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
	DialTimeout     time.Duration `validate:"gte=0"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string `validate:"oneof=cli native"`
	Tesseract     string
	Pdftoppm      string
	Language      string `validate:"required"`
	TessdataDir   string
	HeicConverter string `validate:"omitempty,oneof=magick heif-convert sips"`
	Passes        []string
	Workers       int           `validate:"gte=1,lte=64"`
	DocTimeout    time.Duration `validate:"gte=0"`
	CachePath     string
}

// AuditConfig holds matching thresholds and job orchestration settings.
type AuditConfig struct {
	MatchThreshold  float64 `validate:"gte=0,lte=100"`
	ReviewThreshold float64 `validate:"gte=0,lte=100,ltefield=MatchThreshold"`
	RulesFile       string
	WorkDir         string        `validate:"required"`
	JobWorkers      int           `validate:"gte=1"`
	JobQueueSize    int           `validate:"gte=1"`
	JobTimeout      time.Duration `validate:"gte=0"`
	JobRetention    time.Duration `validate:"gte=0"`
}

// StorageConfig selects where report artifacts live.
type StorageConfig struct {
	Backend   string `validate:"oneof=local minio"`
	ReportDir string `validate:"required_if=Backend local"`
	MinIO     MinIOConfig
}

// MinIOConfig holds S3-compatible object storage settings
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:    getEnv("GRPC_ADDR", ""),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 256),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "pgx"),
			DSN:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 5*time.Second),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", "cli"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:      getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
			Passes:        getEnvAsList("OCR_PASSES", []string{"gray", "sharp", "binary"}),
			Workers:       getEnvAsInt("OCR_WORKERS", 4),
			DocTimeout:    getEnvAsDuration("OCR_DOC_TIMEOUT", 90*time.Second),
			CachePath:     getEnv("OCR_CACHE_PATH", ""),
		},
		Audit: AuditConfig{
			MatchThreshold:  getEnvAsFloat64("AUDIT_MATCH_THRESHOLD", 65),
			ReviewThreshold: getEnvAsFloat64("AUDIT_REVIEW_THRESHOLD", 35),
			RulesFile:       getEnv("AUDIT_RULES_FILE", ""),
			WorkDir:         getEnv("WORK_DIR", os.TempDir()),
			JobWorkers:      getEnvAsInt("JOB_WORKERS", 2),
			JobQueueSize:    getEnvAsInt("JOB_QUEUE_SIZE", 64),
			JobTimeout:      getEnvAsDuration("JOB_TIMEOUT", 0),
			JobRetention:    getEnvAsDuration("JOB_RETENTION", time.Hour),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			ReportDir: getEnv("REPORT_DIR", "./reports"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "audit-reports"),
				UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			},
		},
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

var configValidator = validator.New()

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return NewAppError("CONFIG_ERROR", describeValidation(err), ErrInvalidInput)
	}
	if c.Storage.Backend == "minio" {
		m := c.Storage.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return NewAppError("CONFIG_ERROR", "MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required for STORAGE_BACKEND=minio", ErrInvalidInput)
		}
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "file:bill-audit.db?_pragma=busy_timeout(5000)"
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
