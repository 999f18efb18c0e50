package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the zone sync client
type Config struct {
	// Remote store configuration
	StoreURL     string
	StoreTimeout time.Duration
	StoreRPS     float64
	StoreBurst   int

	// Store endpoint paths, {id} is replaced with the entity id
	ZonesListPath    string
	ZoneSavePath     string
	ZoneDeletePath   string
	CamerasListPath  string
	CameraSavePath   string
	CameraDeletePath string
	BoundaryPath     string
	ChangesPath      string

	// Anti-forgery token configuration
	CSRFCookie string
	CSRFHeader string
	CSRFToken  string

	// Reference boundary
	BoundaryFile      string
	BoundaryFromStore bool

	// Interaction
	RenameOnEdit bool
	MoveTimeout  time.Duration

	// Logging and metrics
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		StoreURL:     strings.TrimRight(getEnv("STORE_URL", "http://localhost:8000"), "/"),
		StoreTimeout: time.Duration(getIntEnv("STORE_TIMEOUT_SEC", 10)) * time.Second,
		StoreRPS:     getFloatEnv("STORE_RPS", 0),
		StoreBurst:   getIntEnv("STORE_BURST", 1),

		ZonesListPath:    getEnv("ZONES_LIST_PATH", "/get-polygons/"),
		ZoneSavePath:     getEnv("ZONE_SAVE_PATH", "/save-polygon/"),
		ZoneDeletePath:   getEnv("ZONE_DELETE_PATH", "/delete-polygon/{id}/"),
		CamerasListPath:  getEnv("CAMERAS_LIST_PATH", "/get_cameras/"),
		CameraSavePath:   getEnv("CAMERA_SAVE_PATH", "/save_camera/"),
		CameraDeletePath: getEnv("CAMERA_DELETE_PATH", "/delete_camera/{id}/"),
		BoundaryPath:     getEnv("BOUNDARY_PATH", "/get-isgb-polygon/"),
		ChangesPath:      getEnv("CHANGES_PATH", "/ws/changes/"),

		CSRFCookie: getEnv("CSRF_COOKIE", "csrftoken"),
		CSRFHeader: getEnv("CSRF_HEADER", "X-CSRFToken"),
		CSRFToken:  getEnv("CSRF_TOKEN", ""),

		BoundaryFile:      getEnv("BOUNDARY_FILE", ""),
		BoundaryFromStore: getBoolEnv("BOUNDARY_FROM_STORE", false),

		RenameOnEdit: getBoolEnv("RENAME_ON_EDIT", true),
		MoveTimeout:  time.Duration(getIntEnv("MOVE_TIMEOUT_SEC", 120)) * time.Second,

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "cli"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
