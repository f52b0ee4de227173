package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestIndexPathMustDiffer(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Index.Path = cfg.SQLite.Path
	if err := cfg.Validate(); err == nil {
		t.Fatal("shared store and index file should fail validation")
	}
}

func TestTagsConfig_TTLRequired(t *testing.T) {
	cfg := TagsConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero ttl should fail validation")
	}
}

func TestBusConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BusConfig
		wantErr bool
	}{
		{"empty driver defaults to memory", BusConfig{}, false},
		{"unknown driver", BusConfig{Driver: "kafka"}, true},
		{"redis without addr", BusConfig{Driver: BusDriverRedis, Redis: RedisConfig{Stream: "s", Group: "g", Consumer: "c"}}, true},
		{"redis complete", BusConfig{Driver: BusDriverRedis, Redis: RedisConfig{Addr: "localhost:6379", Stream: "s", Group: "g", Consumer: "c"}}, false},
		{"negative deliveries", BusConfig{Driver: BusDriverMemory, MaxDeliveries: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
