package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Cache drivers supported by the query layer.
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	CORS     CORSConfig
	Log      LogConfig
	ExamAPI  ExamAPIConfig
	Query    QueryConfig
	UI       UIConfig
	Import   ImportConfig
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

// CacheConfig selects the backing store for cached payloads.
type CacheConfig struct {
	Enabled bool
	Driver  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExamAPIConfig points the finder at the exams API.
type ExamAPIConfig struct {
	BaseURL string
	Timeout time.Duration
	// Port is where cmd/exam-api listens.
	Port int
}

// QueryConfig tunes the keyed query cache.
type QueryConfig struct {
	ExamsStaleTime   time.Duration
	FiltersStaleTime time.Duration
	PageSize         int
	Retries          int
}

// UIConfig holds live-view behaviour.
type UIConfig struct {
	SearchDebounce  time.Duration
	ScrollThreshold float64
	DisplayTimezone string
	ViewIdleTTL     time.Duration
	TermLabel       string
}

// ImportConfig drives the exam importer.
type ImportConfig struct {
	File     string
	TermCode string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	driver := strings.ToLower(strings.TrimSpace(v.GetString("CACHE_DRIVER")))
	if driver != CacheDriverRedis {
		driver = CacheDriverMemory
	}
	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		Driver:  driver,
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.ExamAPI = ExamAPIConfig{
		BaseURL: strings.TrimRight(v.GetString("EXAM_API_URL"), "/"),
		Timeout: parseDuration(v.GetString("EXAM_API_TIMEOUT"), 10*time.Second),
		Port:    v.GetInt("EXAM_API_PORT"),
	}

	pageSize := v.GetInt("EXAMS_PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 20
	}
	retries := v.GetInt("QUERY_RETRIES")
	if retries < 0 {
		retries = 0
	}
	cfg.Query = QueryConfig{
		ExamsStaleTime:   parseDuration(v.GetString("EXAMS_STALE_TIME"), 5*time.Minute),
		FiltersStaleTime: parseDuration(v.GetString("FILTERS_STALE_TIME"), 30*time.Minute),
		PageSize:         pageSize,
		Retries:          retries,
	}

	threshold := v.GetFloat64("SCROLL_THRESHOLD_PX")
	if threshold <= 0 {
		threshold = 100
	}
	cfg.UI = UIConfig{
		SearchDebounce:  parseDuration(v.GetString("SEARCH_DEBOUNCE"), 300*time.Millisecond),
		ScrollThreshold: threshold,
		DisplayTimezone: v.GetString("DISPLAY_TIMEZONE"),
		ViewIdleTTL:     parseDuration(v.GetString("VIEW_IDLE_TTL"), 30*time.Minute),
		TermLabel:       v.GetString("TERM_LABEL"),
	}

	cfg.Import = ImportConfig{
		File:     v.GetString("IMPORT_FILE"),
		TermCode: v.GetString("IMPORT_TERM_CODE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "final_exams")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_DRIVER", CacheDriverMemory)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXAM_API_URL", "http://localhost:5000/api")
	v.SetDefault("EXAM_API_TIMEOUT", "10s")
	v.SetDefault("EXAM_API_PORT", 5000)

	v.SetDefault("EXAMS_STALE_TIME", "5m")
	v.SetDefault("FILTERS_STALE_TIME", "30m")
	v.SetDefault("EXAMS_PAGE_SIZE", 20)
	v.SetDefault("QUERY_RETRIES", 3)

	v.SetDefault("SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("SCROLL_THRESHOLD_PX", 100)
	v.SetDefault("DISPLAY_TIMEZONE", "America/Los_Angeles")
	v.SetDefault("VIEW_IDLE_TTL", "30m")
	v.SetDefault("TERM_LABEL", "FALL 2025 FINAL EXAMS")

	v.SetDefault("IMPORT_FILE", "data/exams.json")
	v.SetDefault("IMPORT_TERM_CODE", "")
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
