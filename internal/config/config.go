package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Config holds the client settings.
//
// INI format:
//
//	[server]
//	url = http://localhost:8080
//
//	[session]
//	token_file = ~/.config/filedock/token
//
//	[upload]
//	max_concurrent = 0
//
//	[logging]
//	file = /var/log/filedock.log
//	level = info
//
//	[proxy]
//	mode = no-proxy
//	host = proxy.corp
//	port = 8080
//	user = alice
//	no_proxy = localhost,10.0.0.0/8
type Config struct {
	// Backend
	ServerURL string

	// Session
	TokenFile string

	// Upload settings
	MaxConcurrent int // 0 = unlimited

	// Logging
	LogFile  string
	LogLevel string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool
}

// Environment variables read by ApplyEnv.
const (
	EnvServerURL     = "FILEDOCK_SERVER_URL"
	EnvTokenFile     = "FILEDOCK_TOKEN_FILE"
	EnvMaxConcurrent = "FILEDOCK_MAX_CONCURRENT"
	EnvProxyPassword = "FILEDOCK_PROXY_PASSWORD"
)

// DefaultServerURL is used when nothing else configures the backend.
const DefaultServerURL = "http://localhost:8080"

// Validation errors
var (
	ErrMissingServerURL   = errors.New("server url is required")
	ErrInvalidServerURL   = errors.New("server url must be an absolute http or https URL")
	ErrInvalidConcurrency = errors.New("max_concurrent must not be negative")
	ErrUnsupportedProxy   = errors.New("unsupported proxy mode")
	ErrMissingProxyHost   = errors.New("proxy host is required for basic and ntlm modes")
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:     DefaultServerURL,
		TokenFile:     DefaultTokenPath(),
		MaxConcurrent: 0,
		LogLevel:      "info",
		ProxyMode:     "no-proxy",
		ProxyPort:     8080,
	}
}

// LoadConfig loads configuration from an INI file on top of defaults.
// If the file doesn't exist, the defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)

	session := iniFile.Section("session")
	cfg.TokenFile = expandHome(session.Key("token_file").MustString(cfg.TokenFile))

	upload := iniFile.Section("upload")
	cfg.MaxConcurrent = upload.Key("max_concurrent").MustInt(cfg.MaxConcurrent)

	logging := iniFile.Section("logging")
	cfg.LogFile = expandHome(logging.Key("file").String())
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	return cfg, nil
}

// ApplyEnv overrides settings from FILEDOCK_* environment variables.
func (cfg *Config) ApplyEnv() error {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvTokenFile); v != "" {
		cfg.TokenFile = expandHome(v)
	}
	if v := os.Getenv(EnvMaxConcurrent); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxConcurrent, v, err)
		}
		cfg.MaxConcurrent = n
	}
	if v := os.Getenv(EnvProxyPassword); v != "" {
		cfg.ProxyPassword = v
	}
	return nil
}

// SaveConfig writes the configuration to an INI file.
// The proxy password is never written.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return fmt.Errorf("could not determine config directory")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"server", [][2]string{{"url", cfg.ServerURL}}},
		{"session", [][2]string{{"token_file", cfg.TokenFile}}},
		{"upload", [][2]string{{"max_concurrent", strconv.Itoa(cfg.MaxConcurrent)}}},
		{"logging", [][2]string{{"file", cfg.LogFile}, {"level", cfg.LogLevel}}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", strconv.Itoa(cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", strconv.FormatBool(cfg.ProxyWarmup)},
		}},
	}
	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return ErrMissingServerURL
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, cfg.ServerURL)
	}
	if cfg.MaxConcurrent < 0 {
		return ErrInvalidConcurrency
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedProxy, cfg.ProxyMode)
	}
	return nil
}

// BaseURL returns the server URL without a trailing slash.
func (cfg *Config) BaseURL() string {
	return strings.TrimRight(cfg.ServerURL, "/")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
