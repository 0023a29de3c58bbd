package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	testChdir(t, t.TempDir())
	c, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", c.Listen)
	}
	if c.APIVersion != platform.DefaultAPIVersion {
		t.Errorf("APIVersion = %q, want %q", c.APIVersion, platform.DefaultAPIVersion)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	path := writeFile(t, dir, "config.yaml", `
listen: ":9090"
requests_per_second: 1.5
history_db: /tmp/runs.db
shops:
  - name: eu-store
    role: source
    url: eu.myshopify.com
    token: from-file
  - name: us-store
    role: destination
    url: us.myshopify.com
`)
	envFile := writeFile(t, dir, "secrets.env", "SHOPMIGRATE_US_STORE_TOKEN=from-dotenv\n")
	t.Setenv(EnvListen, ":7070")
	t.Setenv("SHOPMIGRATE_US_STORE_TOKEN", "")
	os.Unsetenv("SHOPMIGRATE_US_STORE_TOKEN")

	c, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Listen != ":7070" {
		t.Errorf("Listen = %q, environment should win over the file", c.Listen)
	}
	if c.RequestsPerSecond != 1.5 || c.HistoryDB != "/tmp/runs.db" {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Burst != 4 {
		t.Errorf("Burst = %d, unset keys should keep defaults", c.Burst)
	}
	eu, ok := c.Shop("eu-store")
	if !ok || eu.Token != "from-file" {
		t.Errorf("Shop(eu-store) = %+v, %v", eu, ok)
	}
	us, _ := c.Shop("us-store")
	if us.Token != "from-dotenv" {
		t.Errorf("us-store token = %q, want from-dotenv", us.Token)
	}
	if _, ok := c.Shop("missing"); ok {
		t.Error("Shop(missing) should report false")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	tests := []struct {
		name    string
		path    string
		envFile string
	}{
		{"missing config", filepath.Join(dir, "nope.yaml"), ""},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "listen: [\n"), ""},
		{"unnamed shop", writeFile(t, dir, "unnamed.yaml", "shops:\n  - url: a.myshopify.com\n"), ""},
		{"missing explicit env file", "", filepath.Join(dir, "nope.env")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.path, tc.envFile); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestTokenEnv(t *testing.T) {
	tests := []struct {
		name   string
		expect string
	}{
		{"source", "SHOPMIGRATE_SOURCE_TOKEN"},
		{"eu-store", "SHOPMIGRATE_EU_STORE_TOKEN"},
		{"Shop 2", "SHOPMIGRATE_SHOP_2_TOKEN"},
	}
	for _, tc := range tests {
		if got := TokenEnv(tc.name); got != tc.expect {
			t.Errorf("TokenEnv(%q) = %q, want %q", tc.name, got, tc.expect)
		}
	}
}

func TestPlatformOptions(t *testing.T) {
	c := Default()
	c.ProxyURL = "http://relay.local/shopify"
	opts := c.PlatformOptions()
	if opts.ProxyURL != c.ProxyURL || opts.Burst != 4 || opts.RequestsPerSecond != 2 {
		t.Errorf("PlatformOptions() = %+v", opts)
	}
}
