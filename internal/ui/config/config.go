// Package config loads and normalises UI server configuration files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr       = "127.0.0.1"
	defaultPort       = ":8081"
	defaultAPIBase    = "http://localhost:8080"
	defaultSiteName   = "E-verify"
	defaultCookieName = "everify_session"
	defaultTTLSeconds = 1800
	defaultLogLevel   = "info"

	// APIBaseEnv overrides api_base when the file leaves it empty.
	APIBaseEnv = "EVERIFY_API_BASE"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Port string `yaml:"port"`
}

// ListenAddr joins addr and port into a net.Listen address.
func (s ServerConfig) ListenAddr() string {
	port := s.Port
	if port != "" && !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return s.Addr + port
}

// SessionConfig controls the browser session cookie.
type SessionConfig struct {
	TTLSeconds int    `yaml:"ttl_seconds"`
	CookieName string `yaml:"cookie_name"`
}

// TTL returns the idle timeout of a session.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// TemplatesConfig optionally replaces the embedded templates with a directory.
type TemplatesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// TransportConfig tunes backend calls. A zero timeout leaves the HTTP client
// without one.
type TransportConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured client timeout.
func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Config represents the combined runtime settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	APIBase   string          `yaml:"api_base"`
	SiteName  string          `yaml:"site_name"`
	Session   SessionConfig   `yaml:"session"`
	Templates TemplatesConfig `yaml:"templates"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
}

// fileConfig accepts the flat addr/port keys older files used next to the
// server block.
type fileConfig struct {
	Config `yaml:",inline"`
	Addr   string `yaml:"addr"`
	Port   string `yaml:"port"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.normalise()
	return cfg
}

// Load reads the YAML (or JSON) config at path. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and normalises raw config bytes.
func Parse(data []byte) (Config, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg := raw.Config
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = raw.Addr
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = raw.Port
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	c.APIBase = strings.TrimSpace(c.APIBase)
	if c.APIBase == "" {
		c.APIBase = strings.TrimSpace(os.Getenv(APIBaseEnv))
	}
	if c.APIBase == "" {
		c.APIBase = defaultAPIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	if c.SiteName == "" {
		c.SiteName = defaultSiteName
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = defaultTTLSeconds
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = defaultCookieName
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Transport.TimeoutSeconds < 0 {
		c.Transport.TimeoutSeconds = 0
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("api_base: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base %q: scheme must be http or https", c.APIBase)
	}
	if u.Host == "" {
		return fmt.Errorf("api_base %q: missing host", c.APIBase)
	}
	if c.Templates.Watch && c.Templates.Dir == "" {
		return errors.New("templates.watch requires templates.dir")
	}
	return nil
}
