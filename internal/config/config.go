package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MaskPassword скрывает пароль за звёздочками
func MaskPassword(password string) string {
	if len(password) == 0 {
		return ""
	}
	if len(password) <= 2 {
		return strings.Repeat("*", len(password))
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}

const (
	ApplyModeSync  = "sync"
	ApplyModeAsync = "async"

	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	// Simulator
	Port              string
	DBPath            string
	SimCount          int
	SimulatorUsername string
	SimulatorPassword string
	ApplyMode         string
	ApplyDelayMs      int
	JwtSecret         string
	CorsAllowOrigins  string

	// Upstream client
	ApiBaseUrl       string
	ApiUsername      string
	ApiPassword      string
	ApiDelayMs       int
	ApiInsecureTLS   bool
	ApiTimeoutSec    int
	SimulatorBaseUrl string

	// Tools
	CacheBackend   string
	CacheDir       string
	CacheTTLSec    int
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SpecExtractDir string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8888"),
		DBPath:            getEnv("SIMULATOR_DB_PATH", "simulator.db"),
		SimCount:          getEnvInt("SIMULATOR_SIM_COUNT", 50),
		SimulatorUsername: getEnv("SIMULATOR_API_USERNAME", ""),
		SimulatorPassword: getEnv("SIMULATOR_API_PASSWORD", ""),
		ApplyMode:         normalizeApplyMode(getEnv("SIMULATOR_APPLY_MODE", ApplyModeSync)),
		ApplyDelayMs:      getEnvInt("SIMULATOR_APPLY_DELAY_MS", 0),
		JwtSecret:         getEnv("JWT_SECRET", "change-me-in-prod"),
		CorsAllowOrigins:  getEnv("CORS_ALLOW_ORIGINS", "*"),

		ApiBaseUrl:       getEnv("EYESON_API_BASE_URL", "https://eot-portal.pelephone.co.il:8888"),
		ApiUsername:      getEnv("EYESON_API_USERNAME", ""),
		ApiPassword:      getEnv("EYESON_API_PASSWORD", ""),
		ApiDelayMs:       getEnvInt("EYESON_API_DELAY_MS", 1000),
		ApiInsecureTLS:   getEnvBool("EYESON_API_INSECURE_TLS", true),
		ApiTimeoutSec:    getEnvInt("EYESON_API_TIMEOUT_SEC", 30),
		SimulatorBaseUrl: getEnv("SIMULATOR_BASE_URL", "http://localhost:8888"),

		CacheBackend:   strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendFile)),
		CacheDir:       getEnv("CACHE_DIR", "api_docs"),
		CacheTTLSec:    getEnvInt("CACHE_TTL_SEC", 0),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		SpecExtractDir: getEnv("SPEC_EXTRACT_DIR", "docs/_spec_extract"),
	}

	return cfg, nil
}

func normalizeApplyMode(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), ApplyModeAsync) {
		return ApplyModeAsync
	}
	return ApplyModeSync
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	val, err := strconv.Atoi(strValue)
	if err != nil {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	val, err := strconv.ParseBool(strValue)
	if err != nil {
		return fallback
	}
	return val
}
