package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost:5432/gatehouse")
	t.Setenv("GATEHOUSE_OIDC_ISSUER", "https://idp.example.com")
	t.Setenv("GATEHOUSE_OIDC_CLIENT_ID", "gatehouse-client")
	t.Setenv("GATEHOUSE_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Session.IssuerName != "gatehouse" {
		t.Errorf("Session.IssuerName = %v, want gatehouse", cfg.Session.IssuerName)
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("Session.TTL = %v, want 12h", cfg.Session.TTL)
	}
	if len(cfg.Provider.Scopes) != 3 || cfg.Provider.Scopes[0] != "openid" {
		t.Errorf("Provider.Scopes = %v, want openid email profile", cfg.Provider.Scopes)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Database.MaxOpenConns = %v, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Redis.URL != "" {
		t.Errorf("Redis.URL = %v, want empty", cfg.Redis.URL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEHOUSE_PORT", "8888")
	t.Setenv("GATEHOUSE_SESSION_TTL", "1h")
	t.Setenv("GATEHOUSE_OIDC_SCOPES", "openid, email")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8888" {
		t.Errorf("Server.Port = %v, want 8888", cfg.Server.Port)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("Session.TTL = %v, want 1h", cfg.Session.TTL)
	}
	if len(cfg.Provider.Scopes) != 2 || cfg.Provider.Scopes[1] != "email" {
		t.Errorf("Provider.Scopes = %v, want [openid email]", cfg.Provider.Scopes)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				URL: "postgres://localhost:5432/gatehouse",
			},
			Provider: ProviderConfig{
				IssuerURL: "https://idp.example.com",
				ClientID:  "client",
			},
			Session: SessionConfig{
				Secret:     "0123456789abcdef0123456789abcdef",
				IssuerName: "gatehouse",
				TTL:        time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"port collision", func(c *Config) { c.Server.HealthPort = c.Server.Port }, true},
		{"missing postgres url", func(c *Config) { c.Database.URL = "" }, true},
		{"missing issuer", func(c *Config) { c.Provider.IssuerURL = "" }, true},
		{"missing client id", func(c *Config) { c.Provider.ClientID = "" }, true},
		{"missing session secret", func(c *Config) { c.Session.Secret = "" }, true},
		{"short session secret", func(c *Config) { c.Session.Secret = "tooshort" }, true},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, true},
		{"otel enabled without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"ERROR", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
