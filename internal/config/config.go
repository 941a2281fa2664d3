package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingEnv      = errors.New("missing_env")
	ErrInvalidEnv      = errors.New("invalid_env")
	ErrInvalidSettings = errors.New("invalid_settings")
)

// Config holds application configuration. It is built once at startup and
// passed by value to every component that needs it.
type Config struct {
	AppName    string
	AppVersion string
	Port       string
	Mode       string

	Gateway GatewayConfig

	ClientReturnURL  string
	PaymentServerURL string
	OrderServiceURL  string

	SettingsFile       string
	SettingsWatch      bool
	CORSAllowedOrigins []string
	HTTPClientTimeout  time.Duration
	OrderNumberScheme  string
	SnowflakeNodeID    int64
	IdentityJWTSecret  string

	Redis     RedisConfig
	RateLimit RateLimitConfig

	OTLPEndpoint string
}

// GatewayConfig carries the NewebPay merchant credentials.
type GatewayConfig struct {
	MerchantID string
	HashKey    string
	HashIV     string
	Version    string
	URL        string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	OrderRate  float64
	OrderBurst int
}

const (
	OrderNumberTimestamp = "timestamp"
	OrderNumberSnowflake = "snowflake"

	// 10 node bits in the snowflake layout.
	maxSnowflakeNodeID = 1023
)

// requiredEnv lists the variables the service refuses to start without.
var requiredEnv = []string{
	"VERSION",
	"PORT",
	"NODE_ENV",
	"MERCHANT_ID",
	"HASHKEY",
	"HASHIV",
	"NEWEBPAY_VERSION",
	"CLIENT_RETURN_URL",
	"PAYMENT_SERVER_URL",
	"PAYGATEWAY",
	"SERVER_URL",
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from the given lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	env := envReader{lookup: lookup}

	var missing []string
	for _, key := range requiredEnv {
		if _, ok := lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	scheme := strings.ToLower(env.get("ORDER_NUMBER_SCHEME", OrderNumberTimestamp))
	switch scheme {
	case OrderNumberTimestamp, OrderNumberSnowflake:
	default:
		return Config{}, fmt.Errorf("%w: ORDER_NUMBER_SCHEME %q", ErrInvalidEnv, scheme)
	}

	nodeID, err := strconv.ParseInt(env.get("SNOWFLAKE_NODE_ID", "1"), 10, 64)
	if err != nil || nodeID < 0 || nodeID > maxSnowflakeNodeID {
		return Config{}, fmt.Errorf("%w: SNOWFLAKE_NODE_ID must be between 0 and %d", ErrInvalidEnv, maxSnowflakeNodeID)
	}

	timeout, err := time.ParseDuration(env.get("HTTP_CLIENT_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: HTTP_CLIENT_TIMEOUT: %v", ErrInvalidEnv, err)
	}

	cfg := Config{
		AppName:    env.get("APP_SERVICE", "periodpay"),
		AppVersion: env.raw("VERSION"),
		Port:       env.raw("PORT"),
		Mode:       env.raw("NODE_ENV"),
		Gateway: GatewayConfig{
			MerchantID: env.raw("MERCHANT_ID"),
			HashKey:    env.raw("HASHKEY"),
			HashIV:     env.raw("HASHIV"),
			Version:    env.raw("NEWEBPAY_VERSION"),
			URL:        strings.TrimRight(env.raw("PAYGATEWAY"), "/"),
		},
		ClientReturnURL:    env.raw("CLIENT_RETURN_URL"),
		PaymentServerURL:   strings.TrimRight(env.raw("PAYMENT_SERVER_URL"), "/"),
		OrderServiceURL:    strings.TrimRight(env.raw("SERVER_URL"), "/"),
		SettingsFile:       env.get("SETTINGS_FILE", ""),
		SettingsWatch:      env.getBool("SETTINGS_WATCH", false),
		CORSAllowedOrigins: splitList(env.get("CORS_ALLOWED_ORIGINS", "http://localhost:3001")),
		HTTPClientTimeout:  timeout,
		OrderNumberScheme:  scheme,
		SnowflakeNodeID:    nodeID,
		IdentityJWTSecret:  env.get("IDENTITY_JWT_SECRET", ""),
		Redis: RedisConfig{
			Addr:     env.get("REDIS_ADDR", ""),
			Password: env.get("REDIS_PASSWORD", ""),
			DB:       env.getInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			OrderRate:  env.getFloat("ORDER_RATE_LIMIT", 1),
			OrderBurst: env.getInt("ORDER_RATE_BURST", 5),
		},
		OTLPEndpoint: env.get("OTLP_ENDPOINT", "localhost:4317"),
	}

	return cfg, nil
}

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeProduction)
}

func (c Config) ListenAddr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

type envReader struct {
	lookup func(string) (string, bool)
}

// raw returns the value exactly as set, empty values included.
func (e envReader) raw(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e envReader) get(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e envReader) getInt(key string, def int) int {
	value := e.get(key, "")
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func (e envReader) getBool(key string, def bool) bool {
	value := e.get(key, "")
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func (e envReader) getFloat(key string, def float64) float64 {
	value := e.get(key, "")
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
