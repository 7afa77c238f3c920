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
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://api.example.test/v2
  token: abc
geo:
  web_endpoint: https://geo.example.test/locate
tracker:
  flush_interval: 7s
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tracker.FlushInterval != 7*time.Second {
		t.Fatalf("flush interval = %v", cfg.Tracker.FlushInterval)
	}
	if cfg.Geo.ReadTimeout != 60*time.Second || cfg.Geo.WatchTickTimeout != 15*time.Second {
		t.Fatalf("geo defaults: %v %v", cfg.Geo.ReadTimeout, cfg.Geo.WatchTickTimeout)
	}
	if cfg.Discovery.TrashRadiusKM != 10 || cfg.Discovery.ItemLimit != 20 {
		t.Fatalf("discovery defaults: %+v", cfg.Discovery)
	}
	if cfg.Cart.Store != "sqlite" {
		t.Fatalf("cart store default = %q", cfg.Cart.Store)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://api.example.test
  token: from-file
geo:
  static: {lat: 13.7, lng: 100.5}
`)
	t.Setenv("PICKUP_BACKEND_TOKEN", "from-env")
	t.Setenv("PICKUP_DRIVER_PORT", "4100")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.Token != "from-env" || cfg.Agent.DriverPort != 4100 {
		t.Fatalf("env not applied: token=%q port=%d", cfg.Backend.Token, cfg.Agent.DriverPort)
	}
	if cfg.Geo.Static == nil || cfg.Geo.Static.Lat != 13.7 {
		t.Fatalf("static fix not parsed: %+v", cfg.Geo.Static)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: not-a-url
cart:
  store: floppy
`)
	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"backend.base_url", "backend.token", "geo needs", "cart.store"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
