package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MaxPositions != 5 {
		t.Errorf("MaxPositions = %d, want 5", cfg.MaxPositions)
	}
	if !cfg.SimMode() {
		t.Error("expected sim mode without venue credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UNIVERSE", " aapl, msft ,")
	t.Setenv("MAX_RISK_FRACTION", "0.01")
	t.Setenv("MAX_POSITIONS", "3")
	t.Setenv("VENUE_API_KEY", "key")
	t.Setenv("VENUE_API_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"AAPL", "MSFT"}; !reflect.DeepEqual(cfg.Universe, want) {
		t.Errorf("Universe = %v, want %v", cfg.Universe, want)
	}
	if cfg.MaxRiskFraction != 0.01 {
		t.Errorf("MaxRiskFraction = %v, want 0.01", cfg.MaxRiskFraction)
	}
	if cfg.MaxPositions != 3 {
		t.Errorf("MaxPositions = %d, want 3", cfg.MaxPositions)
	}
	if cfg.SimMode() {
		t.Error("expected live mode with venue credentials")
	}
}

func TestBadNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_RISK_FRACTION", "not-a-number")
	t.Setenv("MAX_POSITIONS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRiskFraction != 0.02 {
		t.Errorf("MaxRiskFraction = %v, want default 0.02", cfg.MaxRiskFraction)
	}
	if cfg.MaxPositions != 5 {
		t.Errorf("MaxPositions = %d, want default 5", cfg.MaxPositions)
	}
}
