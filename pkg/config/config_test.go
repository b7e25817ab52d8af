package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Camera.Device != 0 {
		t.Errorf("expected camera device 0, got %d", cfg.Camera.Device)
	}
	if cfg.Camera.OpenAttempts != 3 {
		t.Errorf("expected 3 open attempts, got %d", cfg.Camera.OpenAttempts)
	}
	if cfg.Camera.DetectionScale != 0.25 {
		t.Errorf("expected detection scale 0.25, got %f", cfg.Camera.DetectionScale)
	}
	if cfg.Recognition.Tolerance != 0.6 {
		t.Errorf("expected tolerance 0.6, got %f", cfg.Recognition.Tolerance)
	}
	if cfg.Gallery.Dir != "known_faces" {
		t.Errorf("expected gallery dir known_faces, got %s", cfg.Gallery.Dir)
	}
	if cfg.Ledger.Backend != BackendCSV {
		t.Errorf("expected csv ledger backend, got %s", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Path != "attendance.csv" {
		t.Errorf("expected ledger path attendance.csv, got %s", cfg.Ledger.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "faceattend.yaml")

	configContent := `
camera:
  device: 1
  width: 1280
  height: 720

recognition:
  tolerance: 0.5
  model_path: /custom/models
  cnn: true

gallery:
  dir: /srv/faces
  cache_enabled: false

ledger:
  backend: sqlite
  path: /srv/attendance.db

display:
  enabled: false

logging:
  level: debug
  file: /var/log/faceattend.log
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Camera.Device != 1 {
		t.Errorf("expected camera device 1, got %d", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.OpenAttempts != 3 {
		t.Errorf("unset fields should keep defaults, got open attempts %d", cfg.Camera.OpenAttempts)
	}
	if cfg.Recognition.Tolerance != 0.5 {
		t.Errorf("expected tolerance 0.5, got %f", cfg.Recognition.Tolerance)
	}
	if !cfg.Recognition.CNN {
		t.Error("expected cnn detector to be enabled")
	}
	if cfg.Gallery.Dir != "/srv/faces" || cfg.Gallery.CacheEnabled {
		t.Errorf("unexpected gallery config: %+v", cfg.Gallery)
	}
	if cfg.Ledger.Backend != BackendSQLite || cfg.Ledger.Path != "/srv/attendance.db" {
		t.Errorf("unexpected ledger config: %+v", cfg.Ledger)
	}
	if cfg.Display.Enabled {
		t.Error("expected display to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")

	if cfg == nil {
		t.Error("expected default config on error")
	}
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(configPath)
	if cfg == nil {
		t.Error("expected default config on error")
	}
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FACEATTEND_GALLERY_DIR", "/env/faces")
	t.Setenv("FACEATTEND_RECOGNITION_TOLERANCE", "0.45")
	t.Setenv("FACEATTEND_CAMERA_DEVICE", "2")
	t.Setenv("FACEATTEND_DISPLAY", "false")
	t.Setenv("FACEATTEND_LEDGER_BACKEND", "sqlite")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Gallery.Dir != "/env/faces" {
		t.Errorf("expected gallery dir from env, got %s", cfg.Gallery.Dir)
	}
	if cfg.Recognition.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %f", cfg.Recognition.Tolerance)
	}
	if cfg.Camera.Device != 2 {
		t.Errorf("expected camera device 2, got %d", cfg.Camera.Device)
	}
	if cfg.Display.Enabled {
		t.Error("expected display disabled from env")
	}
	if cfg.Ledger.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Ledger.Backend)
	}
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	t.Setenv("FACEATTEND_CAMERA_DEVICE", "front")

	cfg := DefaultConfig()
	err := cfg.ApplyEnv()
	if err == nil {
		t.Fatal("expected error for non-numeric camera device")
	}
	if !strings.Contains(err.Error(), "FACEATTEND_CAMERA_DEVICE") {
		t.Errorf("error should name the variable: %v", err)
	}
	if cfg.Camera.Device != 0 {
		t.Errorf("invalid value should not be applied, got %d", cfg.Camera.Device)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "faceattend.yaml")
	if err := os.WriteFile(configPath, []byte("ledger:\n  path: /file/attendance.csv\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("FACEATTEND_LEDGER_PATH", "/env/attendance.csv")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ledger.Path != "/env/attendance.csv" {
		t.Errorf("expected env to win over file, got %s", cfg.Ledger.Path)
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("~/faces"); strings.HasPrefix(got, "~") {
		t.Errorf("tilde was not expanded: %s", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("unexpected expansion: %s", got)
	}
	if got := ExpandPath("relative/path"); got != "relative/path" {
		t.Errorf("unexpected expansion: %s", got)
	}

	t.Setenv("FACES_ROOT", "/srv")
	if got := ExpandPath("$FACES_ROOT/known_faces"); got != "/srv/known_faces" {
		t.Errorf("env var was not expanded: %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:      "invalid camera width",
			modify:    func(c *Config) { c.Camera.Width = 0 },
			wantError: true,
			errorMsg:  "Camera.Width",
		},
		{
			name:      "negative camera device",
			modify:    func(c *Config) { c.Camera.Device = -1 },
			wantError: true,
			errorMsg:  "Camera.Device",
		},
		{
			name:      "zero open attempts",
			modify:    func(c *Config) { c.Camera.OpenAttempts = 0 },
			wantError: true,
			errorMsg:  "Camera.OpenAttempts",
		},
		{
			name:      "detection scale above one",
			modify:    func(c *Config) { c.Camera.DetectionScale = 1.5 },
			wantError: true,
			errorMsg:  "Camera.DetectionScale",
		},
		{
			name:      "tolerance too high",
			modify:    func(c *Config) { c.Recognition.Tolerance = 2.0 },
			wantError: true,
			errorMsg:  "Recognition.Tolerance",
		},
		{
			name:      "missing gallery dir",
			modify:    func(c *Config) { c.Gallery.Dir = "" },
			wantError: true,
			errorMsg:  "Gallery.Dir",
		},
		{
			name:      "unknown ledger backend",
			modify:    func(c *Config) { c.Ledger.Backend = "postgres" },
			wantError: true,
			errorMsg:  "invalid ledger backend",
		},
		{
			name:   "sqlite ledger backend",
			modify: func(c *Config) { c.Ledger.Backend = BackendSQLite },
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
			errorMsg:  "invalid log level",
		},
		{
			name:   "valid log level warn",
			modify: func(c *Config) { c.Logging.Level = "warn" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error message doesn't contain '%s': %v", tt.errorMsg, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ExpandPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gallery.Dir = "~/faceattend/faces"
	cfg.Ledger.Path = "~/faceattend/attendance.csv"

	cfg.ExpandPaths()

	if strings.HasPrefix(cfg.Gallery.Dir, "~") {
		t.Error("Gallery.Dir tilde was not expanded")
	}
	if strings.HasPrefix(cfg.Ledger.Path, "~") {
		t.Error("Ledger.Path tilde was not expanded")
	}
}

func TestConfig_EnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Gallery.Dir = filepath.Join(tmpDir, "known_faces")
	cfg.Gallery.CacheDir = filepath.Join(tmpDir, "cache")
	cfg.Ledger.Path = filepath.Join(tmpDir, "records", "attendance.csv")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Gallery.Dir, cfg.Gallery.CacheDir, filepath.Dir(cfg.Ledger.Path)} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("%s was not created", dir)
		}
	}
}

func TestConfig_CachePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gallery.CacheDir = "/var/cache/faceattend"

	if got := cfg.CachePath(); got != "/var/cache/faceattend/descriptors.cache" {
		t.Errorf("unexpected cache path: %s", got)
	}
}

func BenchmarkConfig_Validate(b *testing.B) {
	cfg := DefaultConfig()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
