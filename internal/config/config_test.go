package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.CapacityThreshold != 0.9 {
					t.Errorf("expected capacity threshold 0.9, got %v", cfg.CapacityThreshold)
				}
				if cfg.MaxRetryRounds != 3 {
					t.Errorf("expected 3 retry rounds, got %d", cfg.MaxRetryRounds)
				}
				if cfg.DuplicateWindow != 60*time.Second {
					t.Errorf("expected 60s duplicate window, got %v", cfg.DuplicateWindow)
				}
				if cfg.HoldCheckInterval != 10*time.Second {
					t.Errorf("expected 10s hold check interval, got %v", cfg.HoldCheckInterval)
				}
				if cfg.HandoffRetention != 7*24*time.Hour {
					t.Errorf("expected 7d handoff retention, got %v", cfg.HandoffRetention)
				}
				if !cfg.EnableContinuity {
					t.Error("expected continuity enabled by default")
				}
				if cfg.EnableWeighted {
					t.Error("expected weighted rotation disabled by default")
				}
				if len(cfg.EscalationKeywords) == 0 {
					t.Error("expected default escalation keywords")
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                     "9000",
				"LOG_LEVEL":                "debug",
				"CAPACITY_THRESHOLD":       "0.75",
				"MAX_RETRY_ROUNDS":         "5",
				"ENABLE_WEIGHTED_ROTATION": "true",
				"ESCALATION_KEYWORDS":      "manager, refund",
				"ALLOWED_ORIGINS":          "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.CapacityThreshold != 0.75 {
					t.Errorf("expected capacity threshold 0.75, got %v", cfg.CapacityThreshold)
				}
				if cfg.MaxRetryRounds != 5 {
					t.Errorf("expected 5 retry rounds, got %d", cfg.MaxRetryRounds)
				}
				if !cfg.EnableWeighted {
					t.Error("expected weighted rotation enabled")
				}
				if len(cfg.EscalationKeywords) != 2 || cfg.EscalationKeywords[1] != "refund" {
					t.Errorf("expected trimmed keywords, got %v", cfg.EscalationKeywords)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "invalid CAPACITY_THRESHOLD",
			env: map[string]string{
				"CAPACITY_THRESHOLD": "not-a-number",
			},
			wantErr: true,
		},
		{
			name: "out of range CAPACITY_THRESHOLD",
			env: map[string]string{
				"CAPACITY_THRESHOLD": "1.5",
			},
			wantErr: true,
		},
		{
			name: "invalid DUPLICATE_WINDOW_SECONDS",
			env: map[string]string{
				"DUPLICATE_WINDOW_SECONDS": "soon",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer os.Clearenv()

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
