// Package config loads Workforce's environment-driven configuration using
// viper's env binding, the way the rest of the corpus (go-coffee,
// teranos-QNTX) centralizes configuration rather than scattering
// os.Getenv calls through handlers.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved set of process-wide settings (§6,
// "Environment variables", §4.H bootstrap paths).
type Config struct {
	Host string
	Port int
	// URL is what ancillary tooling health-checks against; defaults to
	// http://<host>:<port> when WORKFORCE_URL is unset.
	URL string

	LogDir   string
	SkipLock bool

	DataDir  string
	CacheDir string

	// EventLogPath is the append-only domain-event log shared by every
	// workspace's bus, rotated at EventLogCapByte.
	EventLogPath    string
	EventLogCapByte int64

	// CacheMaxAge and CacheMaxBytes bound the Server Registry's cache
	// cycling sweep (§4.G).
	CacheMaxAge   time.Duration
	CacheMaxBytes int64
}

// Load reads WORKFORCE_* environment variables via viper's AutomaticEnv,
// filling in platform-appropriate defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("workforce")
	v.AutomaticEnv()

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8787)
	v.SetDefault("log_dir", "")
	v.SetDefault("skip_lock", false)

	for _, key := range []string{"host", "port", "url", "log_dir", "skip_lock"} {
		_ = v.BindEnv(key)
	}

	dataDir, err := dataDirDefault()
	if err != nil {
		return nil, err
	}
	cacheDir, err := cacheDirDefault()
	if err != nil {
		return nil, err
	}

	host := v.GetString("host")
	port := v.GetInt("port")
	logDir := v.GetString("log_dir")
	if logDir == "" {
		logDir = filepath.Join(dataDir, "logs")
	}

	url := v.GetString("url")
	if url == "" {
		url = "http://" + host + ":" + strconv.Itoa(port)
	}

	return &Config{
		Host:            host,
		Port:            port,
		URL:             url,
		LogDir:          logDir,
		SkipLock:        v.GetBool("skip_lock"),
		DataDir:         dataDir,
		CacheDir:        cacheDir,
		EventLogPath:    filepath.Join(dataDir, "events.log"),
		EventLogCapByte: 10 * 1024 * 1024,
		CacheMaxAge:     7 * 24 * time.Hour,
		CacheMaxBytes:   512 * 1024 * 1024,
	}, nil
}

// PIDFile is server.pid under the data root (§6, "Persistent state layout").
func (c *Config) PIDFile() string { return filepath.Join(c.DataDir, "server.pid") }

// LockFile is server.lock under the data root.
func (c *Config) LockFile() string { return filepath.Join(c.DataDir, "server.lock") }

func dataDirDefault() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "workforce"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".workforce"), nil
}

func cacheDirDefault() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "workforce"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "workforce"), nil
}
