// Package config handles loading and validation of gut configuration.
//
// Configuration is read from $XDG_CONFIG_HOME/gut/config.toml. A missing
// file yields the defaults; a file that fails to parse or validate is an
// error.
//
// # Key Settings
//
//   - root: directory holding <organisation>/<repo> checkouts (GUT_ROOT overrides it)
//   - default_organisation: used when -o/--organisation is omitted
//   - jobs: how many repositories multi-repo commands process in parallel
//   - cache_dir: where remote templates are cloned
//   - [github]: host and token variable for github:owner/repo template references
//
// # Path Validation
//
// Directory paths must be absolute or start with ~ (no relative paths like "."
// or "..") to avoid confusion about the working directory.
package config
