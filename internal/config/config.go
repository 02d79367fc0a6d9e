package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/nutriplan/internal/logging"
)

const (
	StoreModeMemory   = "memory"
	StoreModeBolt     = "bolt"
	StoreModePostgres = "postgres"
	StoreModeS3       = "s3"
	StoreModeAuto     = "auto"
)

const (
	EnrichmentModeRemote = "remote"
	EnrichmentModeMock   = "mock"
)

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
}

func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Diagnostics() (level string, code string, msg string) {
	allEmpty := strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == ""

	if allEmpty {
		return "INFO", "s3_not_configured", "not configured (all empty)"
	}

	missing := c.MissingRequired()
	if len(missing) > 0 {
		return "WARN", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "INFO", "s3_ready", "ready"
}

// DiagnosticsSummary returns a detailed summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	accessKeyStatus := "not set"
	if strings.TrimSpace(c.AccessKeyID) != "" {
		accessKeyStatus = "set"
	}
	secretKeyStatus := "not set"
	if strings.TrimSpace(c.SecretAccessKey) != "" {
		secretKeyStatus = "set"
	}

	return fmt.Sprintf("endpoint=%s region=%s bucket=%s key_prefix=%s access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		nonEmptyOrDash(c.KeyPrefix),
		accessKeyStatus,
		secretKeyStatus,
	)
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

// StoreConfig selects the key-value backend that holds plans and food logs.
type StoreConfig struct {
	Mode     string // memory|bolt|postgres|s3|auto
	BoltPath string
	S3       S3Config
}

// RemoteConfig describes the enrichment service candidates in try order.
type RemoteConfig struct {
	PrimaryURL      string // managed deployment
	APIURL          string // REMOTE_API_URL override
	LANURL          string
	LocalURL        string
	ProviderPattern string // host substring of the managed provider
	LocalTimeout    time.Duration
	RemoteTimeout   time.Duration
}

// Bases returns the configured candidates in try order. Empty entries are
// skipped; deduplication happens in the fetch client.
func (c RemoteConfig) Bases() []string {
	out := make([]string, 0, 4)
	for _, b := range []string{c.PrimaryURL, c.APIURL, c.LANURL, c.LocalURL} {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Config содержит конфигурацию приложения
type Config struct {
	Env      string // local | staging | prod
	Port     int
	LogLevel string
	LogJSON  bool

	// Database
	DatabaseURL       string // runtime connection (resolved: pooled > url > direct)
	DatabaseURLRaw    string // DATABASE_URL as provided
	DatabaseURLPooled string // DATABASE_URL_POOLED as provided
	DatabaseURLDirect string // for migrations / DDL (may be empty)

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Rate Limiting
	RateLimitRPS   int
	RateLimitBurst int

	Store  StoreConfig
	Remote RemoteConfig

	EnrichmentMode string // remote | mock

	// Authentication
	AuthMode      string // none | dev
	AuthRequired  bool
	JWTSecret     string
	JWTIssuer     string
	JWTTTLMinutes int

	// Migrations
	RunMigrationsOnStartup bool
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	// APP_ENV (fallback to ENV for backward compat, default: local)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "local"
	}

	// PORT (default: 8080)
	port := envInt("PORT", 8080)

	// LOG_LEVEL (default: debug)
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "debug"
	}
	logJSON := parseBoolEnv("LOG_JSON")

	// ---------- Database ----------
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	dbPooled := strings.TrimSpace(os.Getenv("DATABASE_URL_POOLED"))
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dbDirect := strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT"))

	runtimeDB := dbPooled
	if runtimeDB == "" {
		runtimeDB = dbURL
	}
	if runtimeDB == "" {
		runtimeDB = dbDirect
	}

	runMigrationsOnStartup := parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP")

	// ---------- CORS ----------
	corsOrigins := parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), env)
	corsAllowCreds := os.Getenv("CORS_ALLOW_CREDENTIALS") == "1"

	// ---------- Rate Limiting ----------
	rateLimitRPS := envInt("RATE_LIMIT_RPS", 0)
	rateLimitBurst := envInt("RATE_LIMIT_BURST", 0)

	// ---------- Store ----------
	storeMode := parseStoreMode("STORE_MODE", StoreModeAuto)
	boltPath := strings.TrimSpace(os.Getenv("BOLT_PATH"))

	s3Cfg := S3Config{
		Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		Region:          strings.TrimSpace(os.Getenv("S3_REGION")),
		Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
		KeyPrefix:       strings.TrimSpace(os.Getenv("S3_KEY_PREFIX")),
	}
	if s3Cfg.KeyPrefix == "" {
		s3Cfg.KeyPrefix = "nutriplan/"
	}

	// ---------- Remote enrichment ----------
	localURL := strings.TrimSpace(os.Getenv("REMOTE_LOCAL_URL"))
	if localURL == "" && env == "local" {
		localURL = "http://localhost:3000"
	}
	providerPattern := strings.TrimSpace(os.Getenv("REMOTE_PROVIDER_PATTERN"))
	if providerPattern == "" {
		providerPattern = "railway.app"
	}

	localTimeout := envInt("REMOTE_TIMEOUT_LOCAL_SECONDS", 15)
	if localTimeout <= 0 {
		localTimeout = 15
	}
	remoteTimeout := envInt("REMOTE_TIMEOUT_REMOTE_SECONDS", 30)
	if remoteTimeout <= 0 {
		remoteTimeout = 30
	}

	remoteCfg := RemoteConfig{
		PrimaryURL:      strings.TrimSpace(os.Getenv("REMOTE_PRIMARY_URL")),
		APIURL:          strings.TrimSpace(os.Getenv("REMOTE_API_URL")),
		LANURL:          strings.TrimSpace(os.Getenv("REMOTE_LAN_URL")),
		LocalURL:        localURL,
		ProviderPattern: providerPattern,
		LocalTimeout:    time.Duration(localTimeout) * time.Second,
		RemoteTimeout:   time.Duration(remoteTimeout) * time.Second,
	}

	enrichmentMode := strings.ToLower(strings.TrimSpace(os.Getenv("ENRICHMENT_MODE")))
	if enrichmentMode == "" {
		enrichmentMode = EnrichmentModeRemote
	}
	if enrichmentMode != EnrichmentModeRemote && enrichmentMode != EnrichmentModeMock {
		logging.Logger.Warn().Str("value", enrichmentMode).Msg("unknown ENRICHMENT_MODE, fallback to remote")
		enrichmentMode = EnrichmentModeRemote
	}

	// ---------- Auth ----------
	authMode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if authMode == "" {
		authMode = "none"
	}
	if authMode != "none" && authMode != "dev" {
		logging.Logger.Warn().Str("value", authMode).Msg("unknown AUTH_MODE, fallback to none")
		authMode = "none"
	}
	authRequired := authMode != "none" && parseBoolEnv("AUTH_REQUIRED")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change_me"
	}
	if jwtSecret == "change_me" && env != "local" {
		logging.Logger.Warn().Msg("JWT_SECRET is set to 'change_me' in non-local environment")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "nutriplan"
	}

	// JWT_TTL_MINUTES (default: 10080 = 7 days)
	jwtTTLMinutes := envInt("JWT_TTL_MINUTES", 10080)

	return &Config{
		Env:               env,
		Port:              port,
		LogLevel:          logLevel,
		LogJSON:           logJSON,
		DatabaseURL:       runtimeDB,
		DatabaseURLRaw:    dbURL,
		DatabaseURLPooled: dbPooled,
		DatabaseURLDirect: dbDirect,

		CORSAllowedOrigins:   corsOrigins,
		CORSAllowCredentials: corsAllowCreds,

		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,

		Store: StoreConfig{
			Mode:     storeMode,
			BoltPath: boltPath,
			S3:       s3Cfg,
		},
		Remote:         remoteCfg,
		EnrichmentMode: enrichmentMode,

		AuthMode:      authMode,
		AuthRequired:  authRequired,
		JWTSecret:     jwtSecret,
		JWTIssuer:     jwtIssuer,
		JWTTTLMinutes: jwtTTLMinutes,

		RunMigrationsOnStartup: runMigrationsOnStartup,
	}
}

// parseCORSOrigins parses CORS_ALLOWED_ORIGINS env var.
// In local mode, defaults to localhost origins if empty.
func parseCORSOrigins(raw, env string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if env == "local" {
			return []string{"http://localhost:3000", "http://localhost:8081"}
		}
		return nil // prod: deny by default
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func parseStoreMode(key string, defaultVal string) string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if mode == "" {
		return defaultVal
	}
	switch mode {
	case StoreModeMemory, StoreModeBolt, StoreModePostgres, StoreModeS3, StoreModeAuto:
		return mode
	default:
		logging.Logger.Warn().Str("key", key).Str("value", mode).Msgf("unknown store mode, fallback to %s", defaultVal)
		return defaultVal
	}
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
