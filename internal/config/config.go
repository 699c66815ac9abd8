package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env            string
	HTTPPort       string
	BackendURL     string
	BackendTimeout time.Duration
	SubmitTimeout  time.Duration

	// Location is fixed for a kiosk; LocationSet is false when no fix is configured.
	LocationLat     float64
	LocationLng     float64
	LocationSet     bool
	LocationTimeout time.Duration

	CameraDir    string
	CameraMaxAge time.Duration
	JPEGQuality  int

	HistoryBackend string
	RedisAddr      string
	HistoryTTL     time.Duration

	RateLimitPerMin int
	AllowedOrigins  []string
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	lat, latOK := floatEnv("LOCATION_LAT")
	lng, lngOK := floatEnv("LOCATION_LNG")
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		BackendURL:      strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout:  durationEnv("BACKEND_TIMEOUT", 20*time.Second),
		SubmitTimeout:   durationEnv("SUBMIT_TIMEOUT", 30*time.Second),
		LocationLat:     lat,
		LocationLng:     lng,
		LocationSet:     latOK && lngOK,
		LocationTimeout: durationEnv("LOCATION_TIMEOUT", 10*time.Second),
		CameraDir:       getEnv("CAMERA_DIR", ""),
		CameraMaxAge:    durationEnv("CAMERA_MAX_AGE", 5*time.Second),
		JPEGQuality:     intEnv("JPEG_QUALITY", 90),
		HistoryBackend:  getEnv("HISTORY_BACKEND", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		HistoryTTL:      durationEnv("HISTORY_TTL", time.Hour),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 30),
		AllowedOrigins:  listEnv("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// Production reports whether the process runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

// floatEnv has no fallback: an unset or invalid value reports false.
func floatEnv(key string) (float64, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		log.Printf("invalid float for %s: %v, ignoring", key, err)
		return 0, false
	}
	return f, true
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
