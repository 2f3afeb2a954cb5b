package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songlens/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SONGLENS_MODELS_DIR", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "songlens")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Analysis.BatchSize != 20 {
		t.Fatalf("unexpected batch size %d", cfg.Analysis.BatchSize)
	}
	if cfg.SongTimeout().Seconds() != 30 {
		t.Fatalf("unexpected song timeout %s", cfg.SongTimeout())
	}
	if got := strings.Join(cfg.ModelNames(), ","); got != "mood_happy,mood_sad,mood_relaxed,mood_aggressive,danceability" {
		t.Fatalf("unexpected models %q", got)
	}
	if cfg.ModelLoadTimeout().Seconds() != 30 || cfg.WarmupTimeout().Seconds() != 10 {
		t.Fatalf("unexpected init timeouts %s %s", cfg.ModelLoadTimeout(), cfg.WarmupTimeout())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SONGLENS_MODELS_DIR", "")

	configPath := filepath.Join(tempHome, "songlens.toml")
	content := `
[paths]
state_dir = "~/state"
models_dir = "~/models"

[analysis]
batch_size = 5
models = ["Mood_Happy", "mood_happy", " danceability "]

[extraction]
reuse_worker = false

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.Analysis.BatchSize != 5 {
		t.Fatalf("unexpected batch size %d", cfg.Analysis.BatchSize)
	}
	if got := strings.Join(cfg.Analysis.Models, ","); got != "mood_happy,danceability" {
		t.Fatalf("expected deduplicated lowercased models, got %q", got)
	}
	if cfg.Extraction.ReuseWorker {
		t.Fatal("expected reuse_worker false")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestModelsDirEnvOverride(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	modelsDir := filepath.Join(tempHome, "onnx")
	t.Setenv("SONGLENS_MODELS_DIR", modelsDir)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ModelsDir != modelsDir {
		t.Fatalf("expected models dir from env, got %q", cfg.Paths.ModelsDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"timeout", func(c *config.Config) { c.Analysis.SongTimeoutSeconds = 0 }, "song_timeout_seconds"},
		{"keep fraction", func(c *config.Config) { c.Analysis.KeepFraction = 2 }, "keep_fraction"},
		{"backend", func(c *config.Config) { c.Inference.Backend = "tfjs" }, "inference.backend"},
		{"upload", func(c *config.Config) { c.Export.UploadEnabled = true }, "export.endpoint"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "cfg", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Extraction.PatchSize != 187 || cfg.Extraction.MelBands != 96 {
		t.Fatalf("unexpected extraction defaults %+v", cfg.Extraction)
	}
}
