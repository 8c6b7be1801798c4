package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "storyforge.db" || cfg.Workers != 2 || cfg.RPCTimeout != 90*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RunMode() != story.ModeDraft {
		t.Fatalf("expected draft mode, got %s", cfg.RunMode())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORYFORGE_DB_PATH", "/tmp/x.db")
	t.Setenv("STORYFORGE_WORKERS", "4")
	t.Setenv("STORYFORGE_MODE", "Polished")
	t.Setenv("STORYFORGE_RPC_TIMEOUT", "15s")
	t.Setenv("STORYFORGE_SEED", "42")
	t.Setenv("STORYFORGE_HEURISTIC_CRITIC", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Workers != 4 || cfg.RPCTimeout != 15*time.Second || cfg.Seed != 42 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.RunMode() != story.ModePolished || !cfg.HeuristicCritic {
		t.Fatalf("unexpected mode/critic: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"STORYFORGE_WORKERS", "0", "STORYFORGE_WORKERS"},
		{"STORYFORGE_WORKERS", "many", "parse env:"},
		{"STORYFORGE_MODE", "fast", "STORYFORGE_MODE"},
		{"STORYFORGE_RPC_TIMEOUT", "0s", "STORYFORGE_RPC_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseDiamond(t *testing.T) {
	cfg, err := ParseDiamond([]byte(`
version: 1
name: wide
diamond:
  max_levels: 5
  max_width: 6
  min_endings: 3
  max_endings: 5
`))
	if err != nil {
		t.Fatalf("ParseDiamond: %v", err)
	}
	want := story.DefaultDiamondConfig()
	want.MaxLevels, want.MaxWidth, want.MinEndings, want.MaxEndings = 5, 6, 3, 5
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestParseDiamondRejects(t *testing.T) {
	tests := map[string]string{
		"version": "version: 2\ndiamond:\n  max_levels: 4\n",
		"range":   "version: 1\ndiamond:\n  max_levels: 9\n",
		"endings": "version: 1\ndiamond:\n  min_endings: 4\n  max_endings: 3\n",
		"syntax":  "version: [1\n",
	}
	for name, doc := range tests {
		if _, err := ParseDiamond([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDiamondFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diamond.yaml")
	if err := os.WriteFile(path, []byte("version: 1\ndiamond:\n  max_levels: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{DiamondFile: path}
	d, err := cfg.Diamond()
	if err != nil {
		t.Fatalf("Diamond: %v", err)
	}
	if d.MaxLevels != 3 || d.MaxWidth != story.DefaultDiamondConfig().MaxWidth {
		t.Fatalf("unexpected preset: %+v", d)
	}

	if d, err := (Config{}).Diamond(); err != nil || d != story.DefaultDiamondConfig() {
		t.Fatalf("expected default diamond, got %+v (%v)", d, err)
	}
	if _, err := (Config{DiamondFile: filepath.Join(t.TempDir(), "missing.yaml")}).Diamond(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
