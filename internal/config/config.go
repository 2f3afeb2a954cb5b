package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	ModelsDir string `toml:"models_dir"`
}

// Analysis contains per-song and per-batch orchestration settings.
type Analysis struct {
	BatchSize          int      `toml:"batch_size"`
	SongTimeoutSeconds int      `toml:"song_timeout_seconds"`
	BatchYieldMillis   int      `toml:"batch_yield_ms"`
	KeepFraction       float64  `toml:"keep_fraction"`
	TrimEnds           bool     `toml:"trim_ends"`
	SampleRate         int      `toml:"sample_rate"`
	Models             []string `toml:"models"`
}

// Extraction contains mel-spectrum feature extraction settings.
type Extraction struct {
	// ReuseWorker keeps one extraction worker for the whole session. When
	// false a fresh worker is spawned per song and discarded after it answers.
	ReuseWorker bool `toml:"reuse_worker"`
	FrameSize   int  `toml:"frame_size"`
	HopSize     int  `toml:"hop_size"`
	MelBands    int  `toml:"mel_bands"`
	PatchSize   int  `toml:"patch_size"`
}

// Inference contains classifier backend settings.
type Inference struct {
	Backend              string `toml:"backend"`
	ONNXLibraryPath      string `toml:"onnx_library_path"`
	LoadTimeoutSeconds   int    `toml:"load_timeout_seconds"`
	WarmupTimeoutSeconds int    `toml:"warmup_timeout_seconds"`
}

// Decoder contains ffmpeg decoding settings.
type Decoder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	SampleRate     int    `toml:"sample_rate"`
	Channels       int    `toml:"channels"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Export contains CSV export and object storage upload settings.
type Export struct {
	UploadEnabled bool   `toml:"upload_enabled"`
	Endpoint      string `toml:"endpoint"`
	Bucket        string `toml:"bucket"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	UseSSL        bool   `toml:"use_ssl"`
	Prefix        string `toml:"prefix"`
}

// Watch contains drop-folder watcher settings.
type Watch struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for songlens.
//
// Configuration sections by subsystem:
//   - Paths: state, log and model directories
//   - Analysis: batching, per-song timeout, audio shortening, model list
//   - Extraction: mel-spectrum parameters and worker reuse
//   - Inference: classifier backend and init/warm-up timeouts
//   - Decoder: ffmpeg binary and decode format
//   - Export: CSV upload to S3-compatible storage
//   - Watch: drop-folder debounce
//   - Logging: log format, level, and rotation
type Config struct {
	Paths      Paths      `toml:"paths"`
	Analysis   Analysis   `toml:"analysis"`
	Extraction Extraction `toml:"extraction"`
	Inference  Inference  `toml:"inference"`
	Decoder    Decoder    `toml:"decoder"`
	Export     Export     `toml:"export"`
	Watch      Watch      `toml:"watch"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/songlens/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("songlens.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SongTimeout returns the per-song analysis timeout.
func (c *Config) SongTimeout() time.Duration {
	return time.Duration(c.Analysis.SongTimeoutSeconds) * time.Second
}

// BatchYield returns the pause between batches.
func (c *Config) BatchYield() time.Duration {
	return time.Duration(c.Analysis.BatchYieldMillis) * time.Millisecond
}

// ModelLoadTimeout bounds the model load step of worker initialization.
func (c *Config) ModelLoadTimeout() time.Duration {
	return time.Duration(c.Inference.LoadTimeoutSeconds) * time.Second
}

// WarmupTimeout bounds the warm-up prediction of worker initialization.
func (c *Config) WarmupTimeout() time.Duration {
	return time.Duration(c.Inference.WarmupTimeoutSeconds) * time.Second
}

// DecodeTimeout bounds a single ffmpeg decode.
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Decoder.TimeoutSeconds) * time.Second
}

// WatchDebounce returns the quiet period the watcher waits before analyzing.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// ModelNames returns a copy of the configured classifier names.
func (c *Config) ModelNames() []string {
	out := make([]string, len(c.Analysis.Models))
	copy(out, c.Analysis.Models)
	return out
}

// DatabasePath returns the SQLite results database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "songlens.db")
}

// LockPath returns the lock file guarding the results database.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "songlens.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
