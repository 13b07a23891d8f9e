package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Store backends accepted by AMENITY_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort          int
	Store             string
	SQLitePath        string
	PostgresURL       string
	TimeZone          string
	Location          *time.Location
	StatsWindowMonths int
	BuildingWindow    time.Duration
	ICSProdID         string
	ICSUIDDomain      string
	KafkaBrokers      []string
	KafkaTopic        string
	LogLevel          string
	LogFormat         string
	SeedFile          string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every missing or
// malformed variable at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		Store:             StoreSQLite,
		SQLitePath:        "amenity.db",
		TimeZone:          "UTC",
		Location:          time.UTC,
		StatsWindowMonths: 12,
		BuildingWindow:    30 * 24 * time.Hour,
		ICSProdID:         "-//Amenity Booking//Calendar Export//EN",
		ICSUIDDomain:      "amenity.local",
		KafkaTopic:        "amenity.bookings",
		LogLevel:          "info",
		LogFormat:         "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("AMENITY_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "AMENITY_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(env("AMENITY_STORE")); store != "" {
		switch store {
		case StoreSQLite, StorePostgres, StoreMemory:
			cfg.Store = store
		default:
			invalid = append(invalid, "AMENITY_STORE")
		}
	}

	if path := env("AMENITY_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	cfg.PostgresURL = env("AMENITY_POSTGRES_URL")
	if cfg.Store == StorePostgres && cfg.PostgresURL == "" {
		missing = append(missing, "AMENITY_POSTGRES_URL")
	}

	if tz := env("AMENITY_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "AMENITY_TIMEZONE")
		} else {
			cfg.TimeZone = tz
			cfg.Location = loc
		}
	}

	if value := env("AMENITY_STATS_WINDOW_MONTHS"); value != "" {
		months, err := strconv.Atoi(value)
		if err != nil || months <= 0 {
			invalid = append(invalid, "AMENITY_STATS_WINDOW_MONTHS")
		} else {
			cfg.StatsWindowMonths = months
		}
	}

	if value := env("AMENITY_BUILDING_WINDOW_DAYS"); value != "" {
		days, err := strconv.Atoi(value)
		if err != nil || days <= 0 {
			invalid = append(invalid, "AMENITY_BUILDING_WINDOW_DAYS")
		} else {
			cfg.BuildingWindow = time.Duration(days) * 24 * time.Hour
		}
	}

	if prodID := env("AMENITY_ICS_PRODID"); prodID != "" {
		cfg.ICSProdID = prodID
	}
	if domain := env("AMENITY_ICS_UID_DOMAIN"); domain != "" {
		cfg.ICSUIDDomain = domain
	}

	cfg.KafkaBrokers = splitList(env("AMENITY_KAFKA_BROKERS"))
	if topic := env("AMENITY_KAFKA_TOPIC"); topic != "" {
		cfg.KafkaTopic = topic
	}

	if level := strings.ToLower(env("AMENITY_LOG_LEVEL")); level != "" {
		switch level {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "AMENITY_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(env("AMENITY_LOG_FORMAT")); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "AMENITY_LOG_FORMAT")
		}
	}

	cfg.SeedFile = env("AMENITY_SEED_FILE")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// KafkaEnabled reports whether domain events go to a broker.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
