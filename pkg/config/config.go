// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Risk     RiskConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// RiskConfig holds the weighted risk model parameters. The weights and
// thresholds are tunable; defaults reflect the JFSC-style model the
// compliance team signed off on.
type RiskConfig struct {
	WeightJurisdiction    int
	WeightPEP             int
	WeightSanctions       int
	WeightAdverseMedia    int
	WeightEntityStructure int

	MediumThreshold float64
	HighThreshold   float64

	ProhibitedJurisdictions []string
	HighRiskJurisdictions   []string
	MediumRiskJurisdictions []string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 8*time.Hour),
		},
		Risk: LoadRiskConfig(),
	}
}

// LoadRiskConfig reads the risk model parameters, falling back to the
// documented defaults (weights summing to 100, thresholds 40/70).
func LoadRiskConfig() RiskConfig {
	return RiskConfig{
		WeightJurisdiction:    getIntEnv("RISK_WEIGHT_JURISDICTION", 25),
		WeightPEP:             getIntEnv("RISK_WEIGHT_PEP", 25),
		WeightSanctions:       getIntEnv("RISK_WEIGHT_SANCTIONS", 30),
		WeightAdverseMedia:    getIntEnv("RISK_WEIGHT_ADVERSE_MEDIA", 10),
		WeightEntityStructure: getIntEnv("RISK_WEIGHT_ENTITY_STRUCTURE", 10),

		MediumThreshold: getFloatEnv("RISK_THRESHOLD_MEDIUM", 40),
		HighThreshold:   getFloatEnv("RISK_THRESHOLD_HIGH", 70),

		ProhibitedJurisdictions: getListEnv("RISK_PROHIBITED_JURISDICTIONS", []string{"IR", "KP", "SY", "CU"}),
		HighRiskJurisdictions:   getListEnv("RISK_HIGH_JURISDICTIONS", []string{"RU", "BY", "AF", "MM", "YE", "LY", "SS", "VE"}),
		MediumRiskJurisdictions: getListEnv("RISK_MEDIUM_JURISDICTIONS", []string{"AE", "TR", "PA", "KY", "VG", "MT", "CY"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, strings.ToUpper(trimmed))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
