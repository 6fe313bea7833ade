package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"pawvox/internal/config"
	"pawvox/internal/kv"
)

func offlineConfig(t *testing.T) *config.Config {
	return &config.Config{
		KV:           kvConfig(t),
		TTSBudget:    10000,
		ConserveAt:   8000,
		TTSCacheSize: 10,
	}
}

func kvConfig(t *testing.T) kv.Config {
	return kv.Config{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "pawvox.db")}
}

func TestBuildOffline(t *testing.T) {
	a, err := Build(offlineConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	resp := a.Assistant.Turn(context.Background(), "What can you do?")
	if resp.Text == "" || resp.AudioURL != "" {
		t.Errorf("offline reply = %+v", resp)
	}
	if len(a.Assistant.Commands()) != 5 {
		t.Errorf("commands = %d, want 5 registered handlers", len(a.Assistant.Commands()))
	}
}

func TestActivePetSurvivesRestart(t *testing.T) {
	cfg := offlineConfig(t)
	first, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Bridge.HandlePetSelection("Max"); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if got := second.Store.ActivePet(); got != "Max" {
		t.Errorf("ActivePet after restart = %q, want Max", got)
	}
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.KV.Backend = "etcd"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "etcd") {
		t.Errorf("Build() error = %v", err)
	}
}
