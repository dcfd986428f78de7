// Package storage provides atomic file operations for the TOML records kept
// in a repository's .gut/ directory.
package storage

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gitlab.com/tozd/go/errors"
)

// ErrExists is returned by CreateTOML when the destination already exists.
var ErrExists = errors.Base("file already exists")

func encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// writeTemp writes content to a new temp file next to path and returns its name.
func writeTemp(path string, content []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.WithStack(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.WithStack(err)
	}
	return f.Name(), nil
}

// SaveTOML atomically writes data as TOML to the specified path.
// It ensures the parent directory exists, writes to a temp file,
// then renames to the final path for atomic operation.
func SaveTOML(path string, data any) error {
	content, err := encode(data)
	if err != nil {
		return err
	}

	return WriteFile(path, content)
}

// WriteFile atomically replaces path with content.
func WriteFile(path string, content []byte) error {
	tempPath, err := writeTemp(path, content)
	if err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.WithStack(err)
	}
	return nil
}

// CreateTOML writes data to path only if path does not exist yet. The file
// appears complete or not at all: it is written under a temp name and
// hard-linked into place, which fails atomically when path exists.
func CreateTOML(path string, data any) error {
	content, err := encode(data)
	if err != nil {
		return err
	}

	tempPath, err := writeTemp(path, content)
	if err != nil {
		return err
	}
	defer os.Remove(tempPath)

	if err := os.Link(tempPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errors.Errorf("%w: %s", ErrExists, path)
		}
		return errors.WithStack(err)
	}
	return nil
}

// LoadTOML reads TOML from the specified path into dest. Unknown keys are
// rejected so a record written by a newer version is not silently truncated.
// Returns an error matching fs.ErrNotExist if the file doesn't exist.
func LoadTOML(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	md, err := toml.Decode(string(data), dest)
	if err != nil {
		return errors.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// Remove deletes path, treating a missing file as success.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}
