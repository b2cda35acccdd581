package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string
	DBPath   string

	RecognizerURL     string
	RecognizerAPIKey  string
	RecognizerModel   string
	RecognizerTimeout time.Duration
	RecognizerSkip    bool
	MinConfidence     float64
	Institution       string

	ScanInterval    time.Duration
	AcceptedHold    time.Duration
	RejectedHold    time.Duration
	DuplicateHold   time.Duration
	CallFailedHold  time.Duration
	CaptureSource   string // "http" or "dir"
	CaptureURL      string
	CaptureDir      string
	ProbeAddr       string
	ProbeInterval   time.Duration
	RateLimitPerMin int
}

// Load returns application config populated from environment variables with
// sensible defaults.
func Load() App {
	return App{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8082"),
		DBPath:   getEnv("DB_PATH", "./idscan.db"),

		RecognizerURL:     getEnv("RECOGNIZER_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RecognizerAPIKey:  getEnv("RECOGNIZER_API_KEY", ""),
		RecognizerModel:   getEnv("RECOGNIZER_MODEL", "gemini-2.5-flash-preview-09-2025"),
		RecognizerTimeout: durationEnv("RECOGNIZER_TIMEOUT", 20*time.Second),
		RecognizerSkip:    boolEnv("RECOGNIZER_SKIP", false),
		MinConfidence:     floatEnv("RECOGNIZER_MIN_CONFIDENCE", 0),
		Institution:       getEnv("INSTITUTION_NAME", "Vel Tech University"),

		ScanInterval:    durationEnv("SCAN_INTERVAL", 3*time.Second),
		AcceptedHold:    durationEnv("ACCEPTED_HOLD", 1500*time.Millisecond),
		RejectedHold:    durationEnv("REJECTED_HOLD", 2500*time.Millisecond),
		DuplicateHold:   durationEnv("DUPLICATE_HOLD", 2500*time.Millisecond),
		CallFailedHold:  durationEnv("CALLFAILED_HOLD", 2*time.Second),
		CaptureSource:   getEnv("CAPTURE_SOURCE", "http"),
		CaptureURL:      getEnv("CAPTURE_URL", "http://localhost:8080/snapshot.jpg"),
		CaptureDir:      getEnv("CAPTURE_DIR", "./frames"),
		ProbeAddr:       getEnv("PROBE_ADDR", "generativelanguage.googleapis.com:443"),
		ProbeInterval:   durationEnv("PROBE_INTERVAL", 5*time.Second),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
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

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
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

func floatEnv(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var parsed float64
		if _, err := fmt.Sscanf(val, "%g", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid float for %s, using fallback %g", key, fallback)
	}
	return fallback
}
