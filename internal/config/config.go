package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	CodexRoot    string `toml:"codex_root"`
	ClaudeRoot   string `toml:"claude_root"`
	DataDir      string `toml:"data_dir"`
	ScanInterval int    `toml:"scan_interval"` // seconds
	Listen       string `toml:"listen"`
	LogLevel     string `toml:"log_level"`
}

// Path returns the config file location, honoring AIS_CONFIG.
func Path(home string) string {
	if p := os.Getenv("AIS_CONFIG"); p != "" {
		return expandHome(p, home)
	}
	return filepath.Join(home, ".config", "ais", "config.toml")
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CodexRoot:    filepath.Join(home, ".codex", "sessions"),
		ClaudeRoot:   filepath.Join(home, ".claude", "projects"),
		DataDir:      filepath.Join(home, ".config", "ais"),
		ScanInterval: 5,
		Listen:       "127.0.0.1:8787",
		LogLevel:     "info",
	}

	cfgPath := Path(home)
	if _, err := toml.DecodeFile(cfgPath, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
	}

	// expand ~ in paths
	cfg.CodexRoot = expandHome(cfg.CodexRoot, home)
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.DataDir = expandHome(cfg.DataDir, home)
	if cfg.ScanInterval < 1 {
		cfg.ScanInterval = 1
	}

	return cfg, nil
}

func (c *Config) CodexDBPath() string {
	return filepath.Join(c.DataDir, "index.sqlite")
}

func (c *Config) ClaudeDBPath() string {
	return filepath.Join(c.DataDir, "index_claude.sqlite")
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.ScanInterval) * time.Second
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
