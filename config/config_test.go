package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Game != DefaultGameConfig() {
		t.Errorf("expected default game config, got %+v", cfg.Game)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Database.Driver)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s request timeout, got %v", cfg.Server.RequestTimeout)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":7000"
game:
  min_participants: 5
  tick_interval: 250ms
  durations:
    night: 20
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NIGHTFALL_GAME_DURATIONS_VOTING", "15")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != ":7000" {
		t.Errorf("expected :7000, got %q", cfg.Server.HTTPAddress)
	}
	if cfg.Game.MinParticipants != 5 {
		t.Errorf("expected min 5, got %d", cfg.Game.MinParticipants)
	}
	if cfg.Game.TickInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms tick, got %v", cfg.Game.TickInterval)
	}
	if cfg.Game.Durations.Night != 20 {
		t.Errorf("expected night 20, got %d", cfg.Game.Durations.Night)
	}
	if cfg.Game.Durations.Voting != 15 {
		t.Errorf("expected env override voting 15, got %d", cfg.Game.Durations.Voting)
	}
}

func TestValidateRejectsBadGameConfig(t *testing.T) {
	g := DefaultGameConfig()
	g.MinParticipants = 2
	g.MaxParticipants = 1
	g.Durations.Night = 0

	err := g.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"min_participants", "max_participants", "durations.night"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
