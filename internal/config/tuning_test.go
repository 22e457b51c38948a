package config

import (
	"errors"
	"testing"

	"github.com/banshee-data/landform-texture/internal/texture/errs"
)

func TestDefaultsAreSane(t *testing.T) {
	cfg := EmptyTuningConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty config should validate: %v", err)
	}
	if q := cfg.GetBackprojectQuality(); q < 0 || q > 1 {
		t.Errorf("default BackprojectQuality out of range: %v", q)
	}
	if s := cfg.GetObsSelectionStrategy(); s != StrategyExhaustive {
		t.Errorf("default strategy = %q, want %q", s, StrategyExhaustive)
	}
	if pc := cfg.GetPreferColor(); pc != PreferColorEquivalentScores {
		t.Errorf("default PreferColor = %q, want %q", pc, PreferColorEquivalentScores)
	}
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	cfg := EmptyTuningConfig()
	cfg.ObsSelectionStrategy = ptrString("Bogus")
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unsupported strategy")
	}
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *errs.ConfigError, got %T", err)
	}
}

func TestValidateRejectsContradictoryAlignmentOptions(t *testing.T) {
	cfg := EmptyTuningConfig()
	cfg.UsePriors = ptrBool(true)
	cfg.OnlyAligned = ptrBool(true)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for UsePriors && OnlyAligned")
	}
}

func TestValidateRejectsBadStretchMode(t *testing.T) {
	cfg := EmptyTuningConfig()
	cfg.StretchMode = ptrString("Gamma")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported stretch mode")
	}
}

func TestStretchModeDefaultsToNone(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetStretchMode(); got != StretchModeNone {
		t.Errorf("GetStretchMode() = %q, want %q", got, StretchModeNone)
	}
}

func TestValidateRejectsOutOfRangeQuality(t *testing.T) {
	cfg := EmptyTuningConfig()
	cfg.BackprojectQuality = ptrFloat64(1.5)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range BackprojectQuality")
	}
}

func TestValidateRejectsBadJSONExtension(t *testing.T) {
	_, err := LoadTuningConfig("testdata/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-.json path")
	}
}

func TestGettersFallBackToDefaultsWhenUnset(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetNumMultigridIterations(); got != 10 {
		t.Errorf("GetNumMultigridIterations() = %d, want 10", got)
	}
	if _, ok := cfg.GetOverrideMedianHue(); ok {
		t.Errorf("GetOverrideMedianHue() should report unset when nil")
	}
	cfg.OverrideMedianHue = ptrFloat64(33)
	if hue, ok := cfg.GetOverrideMedianHue(); !ok || hue != 33 {
		t.Errorf("GetOverrideMedianHue() = (%v, %v), want (33, true)", hue, ok)
	}
}
