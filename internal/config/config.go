package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// Config is the merged configuration surface of the tool. Precedence, low
// to high: built-in defaults, environment (after an optional .env load),
// JSON config file, command-line key=value pairs.
type Config struct {
	SocksPort      int    `json:"socks_port"`
	MaxDownloads   int    `json:"max_downloads"`
	MaxTorChecks   int    `json:"max_tor_checks"`
	MaxRetries     int    `json:"max_retries"`
	BandwidthLimit int64  `json:"bandwidth_limit"`
	TorPath        string `json:"tor_path"`
	LinksFile      string `json:"links_file"`
	LogFile        string `json:"log_file"`
	OutputDir      string `json:"output_directory"`
	UserAgent      string `json:"user_agent"`
}

var intKeys = map[string]bool{
	"socks_port":      true,
	"max_downloads":   true,
	"max_tor_checks":  true,
	"max_retries":     true,
	"bandwidth_limit": true,
}

func Default() Config {
	base := DataDir()
	return Config{
		SocksPort:    9051,
		MaxDownloads: 7,
		MaxTorChecks: 5,
		MaxRetries:   5,
		LinksFile:    filepath.Join(base, "links.json"),
		LogFile:      filepath.Join(base, "log", "TorDownloader.log"),
		OutputDir:    filepath.Join(base, "output"),
	}
}

// DataDir is the default root for links, logs and downloaded files.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tordownloader"
	}
	return filepath.Join(home, ".tordownloader")
}

// ProxyAddr returns the SOCKS endpoint as host:port.
func (c Config) ProxyAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(c.SocksPort))
}

// PoolConfig builds the immutable snapshot handed to the scheduler.
func (c Config) PoolConfig() utils.PoolConfig {
	return utils.PoolConfig{
		MaxDownloads:   c.MaxDownloads,
		MaxTorChecks:   c.MaxTorChecks,
		MaxRetries:     c.MaxRetries,
		ProxyAddr:      c.ProxyAddr(),
		OutputDir:      c.OutputDir,
		UserAgent:      c.UserAgent,
		BandwidthLimit: c.BandwidthLimit,
	}
}

// Load merges all configuration sources. args are the raw command-line
// key=value pairs; a "config" pair names the JSON file to overlay.
func Load(args []string) (Config, error) {
	cfg := Default()
	applyEnv(&cfg)

	overrides, err := ParseArgs(args)
	if err != nil {
		return cfg, err
	}
	if file, ok := overrides["config"]; ok {
		delete(overrides, "config")
		fileValues, err := loadFile(fmt.Sprint(file))
		if err != nil {
			return cfg, err
		}
		if err := apply(&cfg, fileValues); err != nil {
			return cfg, err
		}
	}
	if err := apply(&cfg, overrides); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.MaxDownloads < 1 {
		return fmt.Errorf("max_downloads must be a positive integer, got %d", c.MaxDownloads)
	}
	if c.MaxTorChecks < 1 {
		return fmt.Errorf("max_tor_checks must be a positive integer, got %d", c.MaxTorChecks)
	}
	if c.SocksPort < 1 || c.SocksPort > 65535 {
		return fmt.Errorf("socks_port must be a valid port, got %d", c.SocksPort)
	}
	return nil
}

// ParseArgs parses original-style CONFIG=SETTING command-line pairs.
func ParseArgs(args []string) (map[string]any, error) {
	values := make(map[string]any)
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", arg)
		}
		values[key] = value
	}
	return values, nil
}

func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %v", path, err)
	}
	return values, nil
}

// apply overlays values onto cfg with typed coercion. Empty or nil values
// never override an earlier layer.
func apply(cfg *Config, values map[string]any) error {
	for key, raw := range values {
		if raw == nil || raw == "" {
			continue
		}
		if intKeys[key] {
			n, err := toInt64(raw)
			if err != nil {
				return fmt.Errorf("option %s: %v", key, err)
			}
			switch key {
			case "socks_port":
				cfg.SocksPort = int(n)
			case "max_downloads":
				cfg.MaxDownloads = int(n)
			case "max_tor_checks":
				cfg.MaxTorChecks = int(n)
			case "max_retries":
				cfg.MaxRetries = int(n)
			case "bandwidth_limit":
				cfg.BandwidthLimit = n
			}
			continue
		}
		value := fmt.Sprint(raw)
		switch key {
		case "tor_path":
			cfg.TorPath = value
		case "links_file":
			cfg.LinksFile = value
		case "log_file":
			cfg.LogFile = value
		case "output_directory", "output_dir":
			cfg.OutputDir = value
		case "user_agent":
			cfg.UserAgent = value
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case float64: // JSON numbers
		return int64(v), nil
	case int:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
}

// applyEnv overlays TD_* environment variables, loading a .env file first
// when one is present in the working directory.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()
	values := make(map[string]any)
	for _, key := range []string{
		"socks_port", "max_downloads", "max_tor_checks", "max_retries",
		"bandwidth_limit", "tor_path", "links_file", "log_file",
		"output_directory", "user_agent",
	} {
		if v := os.Getenv("TD_" + strings.ToUpper(key)); v != "" {
			values[key] = v
		}
	}
	_ = apply(cfg, values)
}
