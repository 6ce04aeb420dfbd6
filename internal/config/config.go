package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "config")

// SourceSpec is one configured survey source
type SourceSpec struct {
	ID       string
	Location string
}

// Config holds all configuration for the API and the importer
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Survey sources
	Sources       []SourceSpec
	LocationsFile string
	PreloadOnBoot bool
	// Loaded sources older than this are reloaded; 0 disables
	SourceMaxAge time.Duration

	// Map hand-off
	MapTopN        int
	LineBaseWeight float64
	LineScale      float64

	// Logging
	LogLevel string

	// Object storage (s3:// sources)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// Reload notifications
	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string
}

// LoadEnvFiles loads .env then .env.local (which overrides) from dir.
// Missing files are ignored.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Overload(filepath.Join(dir, ".env.local"))
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// HTTP
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		// Survey sources
		Sources:       ParseSources(getEnv("SURVEY_SOURCES", "survey=data/dados_filtrados_com_modal.csv")),
		LocationsFile: getEnv("LOCATIONS_FILE", ""),
		PreloadOnBoot: getEnvBool("PRELOAD_SOURCES", true),
		SourceMaxAge:  getEnvDuration("SOURCE_MAX_AGE", 0),

		// Map hand-off
		MapTopN:        getEnvInt("MAP_TOP_N", 100),
		LineBaseWeight: getEnvFloat("LINE_BASE_WEIGHT", 1),
		LineScale:      getEnvPositiveFloat("LINE_SCALE", 5.0/30.0),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Object storage
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		// Reload notifications
		KafkaBroker:  getEnv("KAFKA_BROKER", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "survey-reload"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "mapa-od-api"),
	}
}

// ParseSources parses "id=location,id=location". An entry without an id is
// named after its file name. Commas inside a URL host list
// (mongodb://h1:27017,h2:27017/...) stay part of the location.
func ParseSources(value string) []SourceSpec {
	var entries []string
	for _, part := range strings.Split(value, ",") {
		if n := len(entries); n > 0 && inHostList(entries[n-1]) && !hasID(part) {
			entries[n-1] += "," + part
			continue
		}
		entries = append(entries, part)
	}

	var specs []SourceSpec
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if hasID(entry) {
			id, location, _ := strings.Cut(entry, "=")
			specs = append(specs, SourceSpec{ID: id, Location: strings.TrimSpace(location)})
			continue
		}
		base := filepath.Base(entry)
		specs = append(specs, SourceSpec{
			ID:       strings.TrimSuffix(base, filepath.Ext(base)),
			Location: entry,
		})
	}
	return specs
}

// inHostList reports whether entry ends inside the authority of a URL, so
// a following comma separates hosts rather than sources
func inHostList(entry string) bool {
	_, rest, ok := strings.Cut(entry, "://")
	return ok && rest != "" && !strings.ContainsAny(rest, "/?#")
}

func hasID(entry string) bool {
	id, _, ok := strings.Cut(strings.TrimSpace(entry), "=")
	return ok && isIdent(id)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvPositiveFloat is getEnvFloat for values that must be above zero
func getEnvPositiveFloat(key string, defaultValue float64) float64 {
	f := getEnvFloat(key, defaultValue)
	if f <= 0 {
		log.Warnf("%s must be positive, got %v; using %v", key, f, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
