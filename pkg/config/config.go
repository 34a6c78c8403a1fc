package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

type Config struct {
	path      string
	configDir string

	// Actual Config
	InstallDir        string   `json:"install-dir"`
	FeedRepo          string   `json:"feed-repo"`
	RegistryURL       string   `json:"registry-url"`
	Community         string   `json:"community"`
	AuthToken         string   `json:"auth-token"`
	Portable          bool     `json:"portable"`
	PayloadExtensions []string `json:"payload-extensions"`
}

const (
	DefaultConfigPath  = "~/.config/gantry/config.json"
	DefaultInstallDir  = "~/.local/share/gantry"
	DefaultFeedRepo    = "gantryhq/gantry"
	DefaultRegistryURL = "https://registry.gantry.dev/v1"
	DefaultCommunity   = "main"
)

func LoadConfig() (*Config, error) {
	if loc := os.Getenv("GANTRY_CONFIG"); loc != "" {
		return loadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return loadFile(path)
	}

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}

	install, err := homedir.Expand(DefaultInstallDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		path:      path,
		configDir: dir,

		InstallDir:  install,
		FeedRepo:    DefaultFeedRepo,
		RegistryURL: DefaultRegistryURL,
		Community:   DefaultCommunity,
	}

	return updateFromEnv(cfg)
}

func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var cfg Config

	err = json.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.path = path
	cfg.configDir = filepath.Dir(path)

	if cfg.InstallDir == "" {
		install, err := homedir.Expand(DefaultInstallDir)
		if err != nil {
			return nil, err
		}

		cfg.InstallDir = install
	} else {
		install, err := homedir.Expand(cfg.InstallDir)
		if err != nil {
			return nil, err
		}

		cfg.InstallDir = install
	}

	if cfg.FeedRepo == "" {
		cfg.FeedRepo = DefaultFeedRepo
	}

	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultRegistryURL
	}

	if cfg.Community == "" {
		cfg.Community = DefaultCommunity
	}

	return updateFromEnv(&cfg)
}

func updateFromEnv(cfg *Config) (*Config, error) {
	if path := os.Getenv("GANTRY_INSTALL_DIR"); path != "" {
		cfg.InstallDir = path
	}

	if repo := os.Getenv("GANTRY_FEED_REPO"); repo != "" {
		cfg.FeedRepo = repo
	}

	if url := os.Getenv("GANTRY_REGISTRY_URL"); url != "" {
		cfg.RegistryURL = url
	}

	if tok := os.Getenv("GANTRY_AUTH_TOKEN"); tok != "" {
		cfg.AuthToken = tok
	}

	if name := os.Getenv("GANTRY_COMMUNITY"); name != "" {
		cfg.Community = name
	}

	// Portable mode keeps everything beside the executable.
	if cfg.Portable {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}

		cfg.InstallDir = filepath.Dir(exe)
	}

	return ensureDirs(cfg)
}

func ensureDirs(cfg *Config) (*Config, error) {
	dirs := []string{
		cfg.InstallDir,
		cfg.ModsDir(),
		cfg.StagingDir(),
		cfg.StateDir(),
	}

	for _, dir := range dirs {
		fi, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				err = os.MkdirAll(dir, 0755)
				if err != nil {
					return nil, err
				}
			}
		} else if !fi.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", dir)
		}
	}

	return cfg, nil
}

func (c *Config) ModsDir() string {
	return filepath.Join(c.InstallDir, "mods")
}

func (c *Config) StagingDir() string {
	return filepath.Join(c.InstallDir, "staging")
}

func (c *Config) StateDir() string {
	return filepath.Join(c.configDir, "state")
}

func (c *Config) ManifestPath() string {
	return filepath.Join(c.StateDir(), "installed.json")
}

func (c *Config) UpdateStatePath() string {
	return filepath.Join(c.StateDir(), "update-state.json")
}
