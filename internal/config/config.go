package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gitlab.com/tozd/go/errors"
)

// GitHubConfig controls lookups of github:owner/repo template references.
type GitHubConfig struct {
	// Host is a GitHub Enterprise host; empty means github.com.
	Host     string `toml:"host"`
	TokenEnv string `toml:"token_env"` // environment variable holding the API token
}

// Config holds the gut configuration
type Config struct {
	Root                string       `toml:"root"` // directory holding <organisation>/<repo> checkouts
	DefaultOrganisation string       `toml:"default_organisation"`
	Jobs                int          `toml:"jobs"`      // repositories processed in parallel
	CacheDir            string       `toml:"cache_dir"` // optional: where remote templates are cloned
	GitHub              GitHubConfig `toml:"github"`
}

// DefaultJobs is the default fan-out limit.
const DefaultJobs = 4

// DefaultTokenEnv is read for a GitHub token when github.token_env is unset.
const DefaultTokenEnv = "GITHUB_TOKEN"

// Default returns the default configuration
func Default() Config {
	return Config{
		Jobs:     DefaultJobs,
		CacheDir: filepath.Join(xdg.CacheHome, "gut", "templates"),
		GitHub:   GitHubConfig{TokenEnv: DefaultTokenEnv},
	}
}

// Path returns the path of the config file.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "gut", "config.toml")
}

// Load reads config from $XDG_CONFIG_HOME/gut/config.toml.
// Returns Default() if file doesn't exist (no error).
// GUT_ROOT overrides the root setting.
func Load() (Config, error) {
	cfg, err := LoadFrom(Path())
	if err != nil {
		return cfg, err
	}
	if root := os.Getenv("GUT_ROOT"); root != "" {
		if err := ValidatePath(root, "GUT_ROOT"); err != nil {
			return Default(), err
		}
		expanded, err := expandPath(root)
		if err != nil {
			return Default(), err
		}
		cfg.Root = expanded
	}
	return cfg, nil
}

// LoadFrom reads config from path.
// Returns Default() if file doesn't exist (no error).
// Returns error only if file exists but is invalid.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), errors.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Default(), errors.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Default(), errors.Errorf("unknown setting %q in %s", undecoded[0].String(), path)
	}

	if err := cfg.validate(); err != nil {
		return Default(), err
	}

	// Expand ~ (shell doesn't expand in config files)
	if cfg.Root, err = expandPath(cfg.Root); err != nil {
		return Default(), errors.Errorf("expand root: %w", err)
	}
	if cfg.CacheDir, err = expandPath(cfg.CacheDir); err != nil {
		return Default(), errors.Errorf("expand cache_dir: %w", err)
	}
	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = DefaultTokenEnv
	}
	return cfg, nil
}

// OrganisationDir returns the directory holding the repositories of org,
// falling back to the default organisation.
func (c *Config) OrganisationDir(org string) (string, error) {
	if org == "" {
		org = c.DefaultOrganisation
	}
	if org == "" {
		return "", errors.New("no organisation given and default_organisation is not set")
	}
	if c.Root == "" {
		return "", errors.Errorf("root is not set in %s", Path())
	}
	return filepath.Join(c.Root, org), nil
}

const defaultConfig = `# gut configuration

# Directory holding repositories as <root>/<organisation>/<repo>.
# Must be an absolute path or start with ~ (no relative paths like "." or "..")
# Can be overridden with the GUT_ROOT environment variable.
# root = "~/gut"

# Organisation used by -o/--organisation when it is not given.
# default_organisation = "giellalt"

# Number of repositories processed in parallel by multi-repo commands.
jobs = 4

# Where remote templates are cloned. Defaults to $XDG_CACHE_HOME/gut/templates.
# cache_dir = "~/.cache/gut/templates"

# GitHub lookups for github:owner/repo template references.
# [github]
# host = "github.mycompany.com"  # GitHub Enterprise; empty means github.com
# token_env = "GITHUB_TOKEN"     # environment variable holding the API token
`

// DefaultConfig returns the commented default config file.
func DefaultConfig() string {
	return defaultConfig
}

// Init creates a default config file at Path().
// If force is true, overwrites existing file.
// Returns the path to the created file.
func Init(force bool) (string, error) {
	path := Path()
	return path, InitAt(path, force)
}

// InitAt writes the default config file to path.
func InitAt(path string, force bool) error {
	// Check if file already exists (skip if force)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New("config file already exists: " + path + " (use -f to overwrite)")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
