package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported storage backends for the slot registry.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Env          string
	Port         int
	APIPrefix    string
	StoreBackend string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Admin    AdminConfig
	Claims   ClaimsConfig
	Catalog  CatalogConfig
	Cache    CacheConfig
	Realtime RealtimeConfig
	Calendar CalendarConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	PoolSize        int
	ConnectAttempts int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdminConfig holds the single administrator account.
type AdminConfig struct {
	Username string
	Password string
}

// ClaimsConfig governs claim arbitration and the claim endpoint guard rails.
type ClaimsConfig struct {
	MaxClaimants       int
	RateLimit          int
	RateWindow         time.Duration
	ReconcileSnapshots bool
	ReconcileWorkers   int
	OptimisticRetries  int
}

// CatalogConfig lists the administrator-fixed academic periods and room directory.
type CatalogConfig struct {
	Periods        []PeriodEntry
	ActivePeriodID string
	Rooms          []RoomEntry
}

// PeriodEntry is one configured academic period.
type PeriodEntry struct {
	ID    string
	Label string
}

// RoomEntry is one room of the directory.
type RoomEntry struct {
	Name     string
	Capacity int
}

// CacheConfig controls slot-list caching in Redis.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RealtimeConfig toggles the per-period event stream.
type RealtimeConfig struct {
	Enabled   bool
	Heartbeat time.Duration
}

// CalendarConfig shapes the iCalendar export of claimed slots.
type CalendarConfig struct {
	Timezone string
	Weeks    int
}

// NeedsRedis reports whether any enabled feature requires a Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.StoreBackend == StoreRedis || c.Cache.Enabled || c.Realtime.Enabled || c.Claims.RateLimit > 0
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

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND")))

	switch cfg.StoreBackend {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:            v.GetString("REDIS_HOST"),
		Port:            v.GetInt("REDIS_PORT"),
		Password:        v.GetString("REDIS_PASSWORD"),
		DB:              v.GetInt("REDIS_DB"),
		PoolSize:        v.GetInt("REDIS_POOL_SIZE"),
		ConnectAttempts: v.GetInt("REDIS_CONNECT_ATTEMPTS"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admin = AdminConfig{
		Username: v.GetString("ADMIN_USERNAME"),
		Password: v.GetString("ADMIN_PASSWORD"),
	}

	maxClaimants := v.GetInt("MAX_CLAIMANTS")
	if maxClaimants <= 0 {
		maxClaimants = 2
	}
	cfg.Claims = ClaimsConfig{
		MaxClaimants:       maxClaimants,
		RateLimit:          v.GetInt("CLAIM_RATE_LIMIT"),
		RateWindow:         parseDuration(v.GetString("CLAIM_RATE_WINDOW"), time.Minute),
		ReconcileSnapshots: v.GetBool("RECONCILE_CLAIMANTS"),
		ReconcileWorkers:   v.GetInt("RECONCILE_WORKERS"),
		OptimisticRetries:  v.GetInt("REDIS_TX_RETRIES"),
	}

	periods, err := parsePeriods(v.GetString("ACADEMIC_PERIODS"))
	if err != nil {
		return nil, err
	}
	rooms, err := parseRooms(v.GetString("ROOMS"))
	if err != nil {
		return nil, err
	}
	cfg.Catalog = CatalogConfig{
		Periods:        periods,
		ActivePeriodID: v.GetString("ACTIVE_PERIOD_ID"),
		Rooms:          rooms,
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_SLOT_CACHE"),
		TTL:     parseDuration(v.GetString("SLOT_CACHE_TTL"), 30*time.Second),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:   v.GetBool("ENABLE_REALTIME"),
		Heartbeat: parseDuration(v.GetString("REALTIME_HEARTBEAT"), 25*time.Second),
	}

	cfg.Calendar = CalendarConfig{
		Timezone: v.GetString("CALENDAR_TIMEZONE"),
		Weeks:    v.GetInt("CALENDAR_WEEKS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("STORE_BACKEND", StoreMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pdb_slots")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_CONNECT_ATTEMPTS", 5)
	v.SetDefault("REDIS_TX_RETRIES", 8)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "pdb-slot-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin")

	v.SetDefault("MAX_CLAIMANTS", 2)
	v.SetDefault("CLAIM_RATE_LIMIT", 0)
	v.SetDefault("CLAIM_RATE_WINDOW", "1m")
	v.SetDefault("RECONCILE_CLAIMANTS", false)
	v.SetDefault("RECONCILE_WORKERS", 1)

	v.SetDefault("ACADEMIC_PERIODS", "2025-1=2025/2026 Ganjil,2025-2=2025/2026 Genap")
	v.SetDefault("ACTIVE_PERIOD_ID", "")
	v.SetDefault("ROOMS", "")

	v.SetDefault("ENABLE_SLOT_CACHE", false)
	v.SetDefault("SLOT_CACHE_TTL", "30s")
	v.SetDefault("ENABLE_REALTIME", false)
	v.SetDefault("REALTIME_HEARTBEAT", "25s")

	v.SetDefault("CALENDAR_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("CALENDAR_WEEKS", 16)
}

// parsePeriods reads "id=label,id=label". A bare entry uses the same text for both.
func parsePeriods(raw string) ([]PeriodEntry, error) {
	entries := splitAndTrim(raw)
	if len(entries) == 0 {
		return nil, errors.New("ACADEMIC_PERIODS must list at least one period")
	}
	seen := make(map[string]struct{}, len(entries))
	periods := make([]PeriodEntry, 0, len(entries))
	for _, entry := range entries {
		id, label, found := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		label = strings.TrimSpace(label)
		if !found || label == "" {
			label = id
		}
		if id == "" {
			return nil, fmt.Errorf("invalid academic period entry %q", entry)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate academic period %q", id)
		}
		seen[id] = struct{}{}
		periods = append(periods, PeriodEntry{ID: id, Label: label})
	}
	return periods, nil
}

// parseRooms reads "name:capacity,name". Capacity is optional.
func parseRooms(raw string) ([]RoomEntry, error) {
	entries := splitAndTrim(raw)
	rooms := make([]RoomEntry, 0, len(entries))
	for _, entry := range entries {
		name, capRaw, found := strings.Cut(entry, ":")
		room := RoomEntry{Name: strings.TrimSpace(name)}
		if found {
			capacity, err := strconv.Atoi(strings.TrimSpace(capRaw))
			if err != nil {
				return nil, fmt.Errorf("invalid capacity for room %q: %w", room.Name, err)
			}
			room.Capacity = capacity
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
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
