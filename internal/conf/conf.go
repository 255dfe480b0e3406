package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents application configuration
type Config struct {
	// Storage configuration
	Storage StorageConfig

	// Capture configuration
	Capture CaptureConfig

	// Browser configuration
	Browser BrowserConfig

	// LLM code generation configuration (optional)
	LLM LLMConfig

	// Debug mode
	Debug bool
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	DBPath string
}

// CaptureConfig contains capture scheduling configuration
type CaptureConfig struct {
	// Interval between capture passes over each tab
	Interval time.Duration

	// Interval between tab-steering maintenance passes
	SteerInterval time.Duration
}

// BrowserConfig contains the browser collaborator configuration
type BrowserConfig struct {
	Enabled    bool
	ControlURL string
	Headless   bool
}

// LLMConfig contains code generation configuration
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("COMMHUB_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".commhub", "state.db")
	}

	captureSeconds := 20
	if val := os.Getenv("CAPTURE_INTERVAL_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			captureSeconds = parsed
		}
	}

	steerSeconds := 300
	if val := os.Getenv("STEER_INTERVAL_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			steerSeconds = parsed
		}
	}

	browserEnabled := true
	if val := os.Getenv("BROWSER_ENABLED"); val != "" {
		browserEnabled = val == "true"
	}

	headless := true
	if val := os.Getenv("BROWSER_HEADLESS"); val != "" {
		headless = val == "true"
	}

	return &Config{
		Storage: StorageConfig{
			DBPath: dbPath,
		},
		Capture: CaptureConfig{
			Interval:      time.Duration(captureSeconds) * time.Second,
			SteerInterval: time.Duration(steerSeconds) * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:    browserEnabled,
			ControlURL: os.Getenv("BROWSER_CONTROL_URL"),
			Headless:   headless,
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			Model:   os.Getenv("LLM_MODEL"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}
