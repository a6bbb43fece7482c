package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Binary != "ollama" || cfg.Engine.VersionFlag != "--version" {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.Download.MaxRedirects != 5 {
		t.Errorf("MaxRedirects = %d, want 5", cfg.Download.MaxRedirects)
	}
	if cfg.Download.WindowsURL != "https://ollama.com/download/OllamaSetup.exe" {
		t.Errorf("WindowsURL = %s", cfg.Download.WindowsURL)
	}
	if cfg.Download.DefaultURL != "https://ollama.com/download" {
		t.Errorf("DefaultURL = %s", cfg.Download.DefaultURL)
	}
	if cfg.Server.BindAddr != "127.0.0.1:11500" {
		t.Errorf("BindAddr = %s", cfg.Server.BindAddr)
	}
	if cfg.Engine.GetProbeTimeout() != 10*time.Second {
		t.Errorf("GetProbeTimeout() = %v", cfg.Engine.GetProbeTimeout())
	}
	if cfg.Download.GetIdleTimeout() != 30*time.Second {
		t.Errorf("GetIdleTimeout() = %v", cfg.Download.GetIdleTimeout())
	}
	if cfg.Server.GetWriteTimeout() != 0 {
		t.Errorf("GetWriteTimeout() = %v, want 0", cfg.Server.GetWriteTimeout())
	}
	if got := cfg.Download.GetUserAgent("1.2.3"); got != "localai-desktop/1.2.3" {
		t.Errorf("GetUserAgent() = %s", got)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  root_dir: /srv/localai
engine:
  binary: ollama-dev
download:
  idle_timeout: 5s
  user_agent: custom/1
server:
  allowed_origins:
    - http://localhost:4200
logging:
  level: debug
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Binary != "ollama-dev" {
		t.Errorf("Binary = %s", cfg.Engine.Binary)
	}
	if cfg.Download.GetIdleTimeout() != 5*time.Second {
		t.Errorf("GetIdleTimeout() = %v", cfg.Download.GetIdleTimeout())
	}
	if cfg.Download.GetUserAgent("x") != "custom/1" {
		t.Errorf("GetUserAgent() = %s", cfg.Download.GetUserAgent("x"))
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:4200" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if got, want := cfg.App.GetDownloadsDir(), filepath.Join("/srv/localai", "downloads"); got != want {
		t.Errorf("GetDownloadsDir() = %s, want %s", got, want)
	}
	if got, want := cfg.GetDatabasePath(), filepath.Join("/srv/localai", "data", "localai-desktop.db"); got != want {
		t.Errorf("GetDatabasePath() = %s, want %s", got, want)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOCALAI_SERVER_BIND_ADDR", "127.0.0.1:9999")
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.BindAddr != "127.0.0.1:9999" {
		t.Errorf("BindAddr = %s, want env override", cfg.Server.BindAddr)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for a missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad scheme", "download:\n  default_url: ftp://ollama.com/x\n", "download.default_url"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"bad duration", "download:\n  idle_timeout: soon\n", "download.idle_timeout"},
		{"too many redirects", "download:\n  max_redirects: 50\n", "max_redirects"},
		{"zero redirects", "download:\n  max_redirects: 0\n", "max_redirects"},
		{"empty binary", "engine:\n  binary: \" \"\n", "engine.binary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
