// Package config provides configuration management for faceattend.
// It loads configuration from YAML files with sensible defaults, then applies
// overrides from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FACEATTEND_"

// Ledger backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config holds all faceattend configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Display     DisplayConfig     `yaml:"display"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device         int     `yaml:"device" validate:"gte=0"`
	Width          int     `yaml:"width" validate:"gt=0"`
	Height         int     `yaml:"height" validate:"gt=0"`
	OpenAttempts   int     `yaml:"open_attempts" validate:"gte=1"`
	OpenRetryDelay int     `yaml:"open_retry_delay_ms" validate:"gte=0"`
	ReadRetryDelay int     `yaml:"read_retry_delay_ms" validate:"gte=0"`
	DetectionScale float64 `yaml:"detection_scale" validate:"gt=0,lte=1"`
	WarmupMillis   int     `yaml:"warmup_ms" validate:"gte=0"`
}

// RecognitionConfig holds face recognition settings.
type RecognitionConfig struct {
	// Tolerance is the maximum Euclidean distance for two descriptors to match.
	Tolerance float64 `yaml:"tolerance" validate:"gt=0,lte=1"`
	ModelPath string  `yaml:"model_path" validate:"required"`
	// CNN switches go-face to the mmod CNN detector (slower, more accurate).
	CNN bool `yaml:"cnn"`
	// MaxImageSide downsizes enrollment images whose longest side is larger.
	MaxImageSide int `yaml:"max_image_side" validate:"gte=0"`
}

// GalleryConfig holds enrollment gallery settings.
type GalleryConfig struct {
	Dir             string `yaml:"dir" validate:"required"`
	CacheEnabled    bool   `yaml:"cache_enabled"`
	CacheEncryption bool   `yaml:"cache_encryption"`
	CacheDir        string `yaml:"cache_dir"`
	ShowProgress    bool   `yaml:"show_progress"`
}

// LedgerConfig holds attendance ledger settings.
type LedgerConfig struct {
	Backend string `yaml:"backend" validate:"required"`
	Path    string `yaml:"path" validate:"required"`
}

// DisplayConfig holds on-screen rendering settings.
type DisplayConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WindowTitle string `yaml:"window_title"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/faceattend")
	return &Config{
		Camera: CameraConfig{
			Device:         0,
			Width:          640,
			Height:         480,
			OpenAttempts:   3,
			OpenRetryDelay: 1000,
			ReadRetryDelay: 500,
			DetectionScale: 0.25,
			WarmupMillis:   1000,
		},
		Recognition: RecognitionConfig{
			Tolerance:    0.6,
			ModelPath:    filepath.Join(dataDir, "models"),
			CNN:          false,
			MaxImageSide: 1600,
		},
		Gallery: GalleryConfig{
			Dir:             "known_faces",
			CacheEnabled:    true,
			CacheEncryption: true,
			CacheDir:        filepath.Join(dataDir, "cache"),
			ShowProgress:    true,
		},
		Ledger: LedgerConfig{
			Backend: BackendCSV,
			Path:    "attendance.csv",
		},
		Display: DisplayConfig{
			Enabled:     true,
			WindowTitle: "Face Recognition Attendance System",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from the specified file and applies
// environment overrides on top.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	loadDotEnv()
	if err := config.ApplyEnv(); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/faceattend/faceattend.yaml"); err == nil {
		return Load("/etc/faceattend/faceattend.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfig := filepath.Join(homeDir, ".config/faceattend/faceattend.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return Load(userConfig)
		}
	}

	config := DefaultConfig()
	loadDotEnv()
	if err := config.ApplyEnv(); err != nil {
		return config, err
	}
	return config, nil
}

// loadDotEnv reads .env from the working directory. Variables already set
// in the environment win, and a missing file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides fields from FACEATTEND_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	setInt("CAMERA_DEVICE", &c.Camera.Device)
	setFloat("RECOGNITION_TOLERANCE", &c.Recognition.Tolerance)
	setString("MODEL_PATH", &c.Recognition.ModelPath)
	setBool("RECOGNITION_CNN", &c.Recognition.CNN)
	setString("GALLERY_DIR", &c.Gallery.Dir)
	setBool("GALLERY_CACHE", &c.Gallery.CacheEnabled)
	setString("LEDGER_BACKEND", &c.Ledger.Backend)
	setString("LEDGER_PATH", &c.Ledger.Path)
	setBool("DISPLAY", &c.Display.Enabled)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (must satisfy %s)", fe.Namespace(), fe.Value(), fieldRule(fe))
		}
		return err
	}

	validBackends := map[string]bool{BackendCSV: true, BackendSQLite: true}
	if !validBackends[c.Ledger.Backend] {
		return fmt.Errorf("invalid ledger backend: %s (must be csv or sqlite)", c.Ledger.Backend)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Gallery.Dir = ExpandPath(c.Gallery.Dir)
	c.Gallery.CacheDir = ExpandPath(c.Gallery.CacheDir)
	c.Ledger.Path = ExpandPath(c.Ledger.Path)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the gallery, cache and ledger directories.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Gallery.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create gallery directory: %w", err)
	}

	if c.Gallery.CacheEnabled && c.Gallery.CacheDir != "" {
		if err := os.MkdirAll(c.Gallery.CacheDir, 0700); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	if dir := filepath.Dir(c.Ledger.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	return nil
}

// CachePath returns the descriptor cache file path.
func (c *Config) CachePath() string {
	return filepath.Join(c.Gallery.CacheDir, "descriptors.cache")
}
