package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songlens/internal/config"
	"songlens/internal/keybpm"
	"songlens/internal/song"
	"songlens/internal/store"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

// setupCLITestEnv writes a config whose directories live under a temp dir.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "songlens.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
models_dir = %q

[logging]
level = "error"
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), filepath.Join(base, "models"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedSession stores a finished session with the given views.
func seedSession(t *testing.T, env *cliTestEnv, id string, views ...song.View) {
	t.Helper()

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.CreateSession(ctx, id, len(views)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	completed, failed := 0, 0
	for _, v := range views {
		if err := st.SaveRecord(ctx, id, v); err != nil {
			t.Fatalf("save record: %v", err)
		}
		if v.Status == song.StatusCompleted {
			completed++
		} else {
			failed++
		}
	}
	if err := st.FinishSession(ctx, id, completed, failed); err != nil {
		t.Fatalf("finish session: %v", err)
	}
}

func completedView(id int, name string) song.View {
	models := append([]string(nil), config.DefaultModels...)
	results := make(map[string]song.Result, len(models))
	for _, m := range models {
		results[m] = song.Result{Value: 0.424}
	}
	return song.View{
		ID:       id,
		FileName: name,
		Path:     "/music/" + name,
		BatchID:  1,
		Status:   song.StatusCompleted,
		Analysis: keybpm.Result{Key: "A", Scale: "minor", BPM: 121.6},
		Results:  results,
		Models:   models,
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
