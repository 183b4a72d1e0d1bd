package config

import (
	"testing"
	"time"
)

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "Go duration string", value: "90s", expected: 90 * time.Second},
		{name: "Minutes duration", value: "5m", expected: 5 * time.Minute},
		{name: "Bare integer read as minutes", value: "30", expected: 30 * time.Minute},
		{name: "Garbage falls back to default", value: "soon", expected: 5 * time.Minute},
		{name: "Empty falls back to default", value: "", expected: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("SCAN_INTERVAL", tt.value)
			}
			got := getDurationEnv("SCAN_INTERVAL", 5*time.Minute)
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ScanInterval != 5*time.Minute {
		t.Errorf("Expected default scan interval 5m, got %v", cfg.ScanInterval)
	}
	if cfg.MaxTweetsScan != 10 {
		t.Errorf("Expected default max tweets scan 10, got %d", cfg.MaxTweetsScan)
	}
	if cfg.MaxRepliesPerCycle != 5 {
		t.Errorf("Expected default max replies 5, got %d", cfg.MaxRepliesPerCycle)
	}
	if cfg.MinInsightScore != 50 {
		t.Errorf("Expected default min insight score 50, got %.1f", cfg.MinInsightScore)
	}
	if cfg.DedupCapacity != 1000 {
		t.Errorf("Expected default dedup capacity 1000, got %d", cfg.DedupCapacity)
	}
}

func TestValidateSummaryCron(t *testing.T) {
	cfg := &Config{SummaryCron: "*/20 * * * *"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid cron expression, got error: %v", err)
	}

	cfg.SummaryCron = "not a cron"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}
