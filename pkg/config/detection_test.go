package config

import (
	"strings"
	"testing"
)

func TestDetectionNormalizeDefaults(t *testing.T) {
	d := &Detection{}
	if err := d.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.MinVolumeBurst != 2.0 {
		t.Fatalf("expected default burst 2.0, got %v", d.MinVolumeBurst)
	}
	if d.Direction != "up" {
		t.Fatalf("expected default direction up, got %q", d.Direction)
	}
	if d.SpikeWindowSeconds != 10 || d.BaselineWindowSeconds != 60 {
		t.Fatalf("unexpected window defaults %d/%d", d.SpikeWindowSeconds, d.BaselineWindowSeconds)
	}
}

func TestDetectionNormalizeKeepsExplicitValues(t *testing.T) {
	d := &Detection{MinVolumeBurst: 5.0, CooldownSeconds: 60}
	if err := d.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.MinVolumeBurst != 5.0 {
		t.Fatalf("explicit burst overwritten: %v", d.MinVolumeBurst)
	}
	if d.CooldownSeconds != 60 {
		t.Fatalf("explicit cooldown overwritten: %v", d.CooldownSeconds)
	}
}

func TestDetectionNormalizeRejectsBadDirection(t *testing.T) {
	d := &Detection{Direction: "sideways"}
	if err := d.Normalize(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDetectionNormalizeRejectsInvertedWindows(t *testing.T) {
	d := &Detection{SpikeWindowSeconds: 60, BaselineWindowSeconds: 30}
	err := d.Normalize()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "shorter than baseline") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDollarVolumeFloorProRates(t *testing.T) {
	d := &Detection{}
	if err := d.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	// 30000 per 60s history window scaled to a 10s spike window.
	if got := d.DollarVolumeFloor(); got != 5000 {
		t.Fatalf("expected floor 5000, got %v", got)
	}
}
