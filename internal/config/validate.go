package config

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

func (c *Config) validate() error {
	if err := ValidatePath(c.Root, "root"); err != nil {
		return err
	}
	if err := ValidatePath(c.CacheDir, "cache_dir"); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return errors.Errorf("invalid jobs %d: must be at least 1", c.Jobs)
	}
	if strings.ContainsAny(c.DefaultOrganisation, `/\`) {
		return errors.Errorf("invalid default_organisation %q: must be a single directory name", c.DefaultOrganisation)
	}
	if strings.Contains(c.GitHub.Host, "://") {
		return errors.Errorf("invalid github.host %q: give the host name without a scheme", c.GitHub.Host)
	}
	return nil
}

// ValidatePath rejects relative paths. Empty paths (unset) and paths
// starting with ~ are accepted.
func ValidatePath(path, field string) error {
	if path == "" || strings.HasPrefix(path, "~") || filepath.IsAbs(path) {
		return nil
	}
	return errors.Errorf("%s must be absolute or start with ~, got: %q", field, path)
}

// expandPath replaces a leading ~ with the home directory.
func expandPath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Errorf("expand ~: %w", err)
	}
	return filepath.Join(home, rest), nil
}
