package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if opts.configPath != "" || opts.personaName != "" || opts.meetingURL != "" || opts.port != 0 {
			t.Errorf("parseFlags() = %+v, want zero values", opts)
		}
	})

	t.Run("all flags", func(t *testing.T) {
		opts, err := parseFlags([]string{
			"--config", "/etc/meetpilot.yaml",
			"--persona", "interviewer",
			"--meeting-url", "https://meet.example.com/abc",
			"--port", "9000",
		})
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if opts.configPath != "/etc/meetpilot.yaml" {
			t.Errorf("configPath = %q", opts.configPath)
		}
		if opts.personaName != "interviewer" {
			t.Errorf("personaName = %q", opts.personaName)
		}
		if opts.meetingURL != "https://meet.example.com/abc" {
			t.Errorf("meetingURL = %q", opts.meetingURL)
		}
		if opts.port != 9000 {
			t.Errorf("port = %d", opts.port)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		if _, err := parseFlags([]string{"--port", "nope"}); err == nil {
			t.Error("parseFlags() expected error for non-numeric port")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path missing is fatal", func(t *testing.T) {
		if _, _, err := loadConfig("/nonexistent/config.yaml"); err == nil {
			t.Error("loadConfig() expected error for missing explicit path")
		}
	})

	t.Run("env path missing is fatal", func(t *testing.T) {
		t.Setenv("MEETPILOT_CONFIG", "/nonexistent/config.yaml")
		if _, _, err := loadConfig(""); err == nil {
			t.Error("loadConfig() expected error for missing env path")
		}
	})

	t.Run("built-in defaults without a file", func(t *testing.T) {
		t.Setenv("MEETPILOT_CONFIG", "")
		cfg, path, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if path != "(built-in defaults)" {
			t.Errorf("path = %q, want built-in defaults marker", path)
		}
		if cfg.Session.DefaultPort != 8765 {
			t.Errorf("DefaultPort = %d, want 8765", cfg.Session.DefaultPort)
		}
	})

	t.Run("explicit file loads", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := []byte("session:\n  default_port: 9100\n")
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("writing config: %v", err)
		}

		cfg, used, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if used != path {
			t.Errorf("used path = %q, want %q", used, path)
		}
		if cfg.Session.DefaultPort != 9100 {
			t.Errorf("DefaultPort = %d, want 9100", cfg.Session.DefaultPort)
		}
	})
}
