package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// Environment variables consulted after the config file.
const (
	EnvListen    = "SHOPMIGRATE_LISTEN"
	EnvHistoryDB = "SHOPMIGRATE_HISTORY_DB"
	EnvProxyURL  = "SHOPMIGRATE_PROXY_URL"
	EnvRate      = "SHOPMIGRATE_REQUESTS_PER_SECOND"
)

// ShopConfig represents a pre-configured shop in the config file.
type ShopConfig struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"` // "source" or "destination"
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Config holds all configuration (config file, environment, CLI flags).
type Config struct {
	Listen            string       `yaml:"listen"`
	APIVersion        string       `yaml:"api_version"`
	RequestsPerSecond float64      `yaml:"requests_per_second"`
	Burst             int          `yaml:"burst"`
	HistoryDB         string       `yaml:"history_db"`
	ProxyURL          string       `yaml:"proxy_url"`
	Shops             []ShopConfig `yaml:"shops"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Listen:            ":8080",
		APIVersion:        platform.DefaultAPIVersion,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// Load builds the configuration. envFile is loaded into the process
// environment first without overriding variables that are already set; a
// missing envFile is only an error when it was named explicitly. The YAML
// file at path (optional) is applied next, then the environment.
func Load(path, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	c := Default()
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv(os.Getenv)
	return c, nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// loadFile overlays values from a YAML config file. Keys missing from the
// file keep their current value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for i := range c.Shops {
		if c.Shops[i].Name == "" {
			return fmt.Errorf("parsing %s: shop %d has no name", path, i+1)
		}
	}
	return nil
}

// applyEnv overlays environment variables. Shop tokens come from
// SHOPMIGRATE_<NAME>_TOKEN so they can stay out of the config file.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getenv(EnvHistoryDB); v != "" {
		c.HistoryDB = v
	}
	if v := getenv(EnvProxyURL); v != "" {
		c.ProxyURL = v
	}
	if v := getenv(EnvRate); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = rps
		}
	}
	for i := range c.Shops {
		if v := getenv(TokenEnv(c.Shops[i].Name)); v != "" {
			c.Shops[i].Token = v
		}
	}
}

// TokenEnv returns the environment variable holding the token of a shop.
func TokenEnv(shopName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(shopName) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "SHOPMIGRATE_" + b.String() + "_TOKEN"
}

// Shop returns the configured shop with the given name.
func (c *Config) Shop(name string) (ShopConfig, bool) {
	for _, s := range c.Shops {
		if s.Name == name {
			return s, true
		}
	}
	return ShopConfig{}, false
}

// PlatformOptions returns the client settings for shop requests.
func (c *Config) PlatformOptions() platform.Options {
	return platform.Options{
		ClientOptions: platform.ClientOptions{
			APIVersion:        c.APIVersion,
			RequestsPerSecond: c.RequestsPerSecond,
			Burst:             c.Burst,
		},
		ProxyURL: c.ProxyURL,
	}
}
