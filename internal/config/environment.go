package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreBolt   = "bbolt"
	StoreMemory = "memory"
)

type Config struct {
	Port     int
	Store    string
	DBPath   string
	DataPath string
	// ConfigFile optionally overrides the built-in sources.
	ConfigFile string

	GoogleFontsAPIKey string
	MetadataTTL       time.Duration
	// MemoryEntries sizes the in-process LRU in front of the durable store.
	// Zero disables it.
	MemoryEntries int
	// RefreshInterval keeps feed indexes warm. Zero disables it.
	RefreshInterval time.Duration
	UserAgent       string
	AutocertDomains []string
}

func GetConfig() Config {
	config := Config{
		Port:          8080, // default port
		Store:         StoreSQLite,
		DBPath:        "data/ogpimage.db",
		DataPath:      "data",
		MetadataTTL:   24 * time.Hour,
		MemoryEntries: 256,
		UserAgent:     "ogpimage/1.0",
	}

	// Override with environment variables if present
	if port := os.Getenv("OGP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	if store := os.Getenv("OGP_STORE"); store != "" {
		config.Store = strings.ToLower(store)
	}

	if dbPath := os.Getenv("OGP_DB_PATH"); dbPath != "" {
		config.DBPath = dbPath
	}

	if dataPath := os.Getenv("OGP_DATA_PATH"); dataPath != "" {
		config.DataPath = dataPath
	}

	config.ConfigFile = os.Getenv("OGP_CONFIG")
	config.GoogleFontsAPIKey = os.Getenv("GOOGLE_FONTS_API_KEY")

	if ttl := os.Getenv("OGP_METADATA_TTL"); ttl != "" {
		if d, err := parseDuration(ttl); err == nil {
			config.MetadataTTL = d
		}
	}

	if n := os.Getenv("OGP_MEMORY_ENTRIES"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v >= 0 {
			config.MemoryEntries = v
		}
	}

	if interval := os.Getenv("OGP_REFRESH_INTERVAL"); interval != "" {
		if d, err := parseDuration(interval); err == nil {
			config.RefreshInterval = d
		}
	}

	if ua := os.Getenv("OGP_USER_AGENT"); ua != "" {
		config.UserAgent = ua
	}

	if domains := os.Getenv("OGP_AUTOCERT_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				config.AutocertDomains = append(config.AutocertDomains, d)
			}
		}
	}

	return config
}

// parseDuration accepts Go durations ("12h") or bare seconds ("86400").
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreBolt, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store, StoreSQLite, StoreBolt, StoreMemory)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}
