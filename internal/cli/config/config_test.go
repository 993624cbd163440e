package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != "127.0.0.1:7180" || cfg.Output != "table" || cfg.Timeout != 30*time.Second {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	body := "server: wp.internal:7180\noutput: json\ntimeout: 5s\nserver_config: /etc/waypoint/server.yaml\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WAYPOINT_CLI_OUTPUT", "yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != "wp.internal:7180" || cfg.Timeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ServerConfig != "/etc/waypoint/server.yaml" {
		t.Errorf("ServerConfig = %q", cfg.ServerConfig)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, environment should override the file", cfg.Output)
	}
}

func TestLoad_RejectsBadOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	os.WriteFile(path, []byte("output: xml\n"), 0600)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("Load() error = %v, want unknown format", err)
	}
}

func TestDefaultPath(t *testing.T) {
	if !strings.HasSuffix(DefaultPath(), filepath.Join("waypoint", "cli.yaml")) {
		t.Errorf("DefaultPath() = %q", DefaultPath())
	}
}
