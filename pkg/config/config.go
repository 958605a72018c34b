package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"
	// SLA_TIMEZONE must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

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

	Backend   BackendConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Workflow  WorkflowConfig
	SLA       SLAConfig
	Evidence  EvidenceConfig
	Reconcile ReconcileConfig
	Export    ExportConfig
	Worklist  WorklistConfig
}

// BackendConfig points the gateway at the authoritative trámites REST service.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DatabaseConfig backs the assignment operation journal. Journal is disabled when Enabled is false.
type DatabaseConfig struct {
	Enabled      bool
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

// CacheConfig governs catalog caching (types, analysts, SLA rules).
type CacheConfig struct {
	Enabled    bool
	CatalogTTL time.Duration
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig toggles optional transition rules.
type WorkflowConfig struct {
	AdminOverride         bool
	LockDebtAfterEvidence bool
}

// SLAConfig fixes the reference timezone and the near-due window.
type SLAConfig struct {
	Timezone    string
	NearDueDays int
}

// EvidenceConfig limits finalize uploads and transient download handles.
type EvidenceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	HandleTTL        time.Duration
	SigningSecret    string
}

// ReconcileConfig sizes the assigned-by backfill workers.
type ReconcileConfig struct {
	Workers    int
	BufferSize int
	Sync       bool
}

// WorklistConfig bounds how long an idle session keeps its folios loaded.
type WorklistConfig struct {
	SessionIdleTTL time.Duration
}

// ExportConfig bounds worklist exports.
type ExportConfig struct {
	MaxRows  int
	PDFTitle string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL: strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("BACKEND_TIMEOUT"), 30*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("ENABLE_JOURNAL"),
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

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_CATALOG_CACHE"),
		CatalogTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		AdminOverride:         v.GetBool("WORKFLOW_ADMIN_OVERRIDE"),
		LockDebtAfterEvidence: v.GetBool("WORKFLOW_LOCK_DEBT_AFTER_EVIDENCE"),
	}

	cfg.SLA = SLAConfig{
		Timezone:    v.GetString("SLA_TIMEZONE"),
		NearDueDays: v.GetInt("SLA_NEAR_DUE_DAYS"),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 10 * 1024 * 1024
	}
	cfg.Evidence = EvidenceConfig{
		MaxFileSizeBytes: maxEvidenceSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("EVIDENCE_ALLOWED_MIME_TYPES")),
		HandleTTL:        parseDuration(v.GetString("EVIDENCE_HANDLE_TTL"), 2*time.Minute),
		SigningSecret:    v.GetString("EVIDENCE_SIGNING_SECRET"),
	}

	cfg.Reconcile = ReconcileConfig{
		Workers:    v.GetInt("RECONCILE_WORKERS"),
		BufferSize: v.GetInt("RECONCILE_BUFFER_SIZE"),
		Sync:       v.GetBool("RECONCILE_SYNC"),
	}

	cfg.Export = ExportConfig{
		MaxRows:  v.GetInt("EXPORT_MAX_ROWS"),
		PDFTitle: v.GetString("EXPORT_PDF_TITLE"),
	}

	cfg.Worklist = WorklistConfig{
		SessionIdleTTL: parseDuration(v.GetString("WORKLIST_SESSION_IDLE_TTL"), 12*time.Hour),
	}

	return cfg, nil
}

// Location resolves the SLA reference timezone, falling back to UTC.
func (c SLAConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:4040")
	v.SetDefault("BACKEND_TIMEOUT", "30s")

	v.SetDefault("ENABLE_JOURNAL", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tramites_gateway")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CATALOG_CACHE", false)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_ADMIN_OVERRIDE", false)
	v.SetDefault("WORKFLOW_LOCK_DEBT_AFTER_EVIDENCE", false)

	v.SetDefault("SLA_TIMEZONE", "America/Mexico_City")
	v.SetDefault("SLA_NEAR_DUE_DAYS", 0)

	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("EVIDENCE_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")
	v.SetDefault("EVIDENCE_HANDLE_TTL", "2m")
	v.SetDefault("EVIDENCE_SIGNING_SECRET", "dev_evidence_secret")

	v.SetDefault("RECONCILE_WORKERS", 2)
	v.SetDefault("RECONCILE_BUFFER_SIZE", 64)
	v.SetDefault("RECONCILE_SYNC", false)

	v.SetDefault("EXPORT_MAX_ROWS", 5000)
	v.SetDefault("EXPORT_PDF_TITLE", "Trámites")
	v.SetDefault("WORKLIST_SESSION_IDLE_TTL", "12h")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
