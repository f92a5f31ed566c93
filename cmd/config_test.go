package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".now.yaml")

	var out bytes.Buffer
	if err := writeDefaultConfig(&out, path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	var parsed map[string]any
	data, _ := os.ReadFile(path)
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("default config is not valid YAML: %v", err)
	}
	if _, ok := parsed["token"]; !ok {
		t.Errorf("expected a token key, got %v", parsed)
	}

	out.Reset()
	os.WriteFile(path, []byte("token: keep\n"), 0o600)
	if err := writeDefaultConfig(&out, path); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("unexpected output %q", out.String())
	}
	if data, _ := os.ReadFile(path); string(data) != "token: keep\n" {
		t.Errorf("existing config was overwritten")
	}
}

func TestEffectiveConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("NOW_TOKEN", "")
	t.Setenv("NOW_API_URL", "")
	t.Setenv("NOW_TEAM", "")

	viper.Set("token", "abcd1234efgh5678")
	viper.Set("team.slug", "acme")

	cfg := effectiveConfig("", "", "team_1")
	if cfg.Token != "abcd********5678" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.TeamID != "team_1" || cfg.TeamSlug != "acme" {
		t.Errorf("unexpected team %+v", cfg)
	}

	var out bytes.Buffer
	if err := showConfig(&out, cfg); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "abcd1234efgh5678") {
		t.Errorf("token leaked: %s", out.String())
	}
	if !strings.Contains(out.String(), "api_url: https://api.zeit.co") {
		t.Errorf("unexpected output %s", out.String())
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"short":      "*****",
		"0123456789": "0123**6789",
	}
	for in, want := range tests {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
