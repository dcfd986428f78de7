package apply

import (
	"encoding/base64"
	"io/fs"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/storage"
)

// SessionFile is the repository-relative path of an in-progress apply.
const SessionFile = delta.Dir + "/apply.toml"

// State is the position of an apply in its lifecycle.
type State string

const (
	NotStarted State = "not_started"
	Started    State = "started"
	Patched    State = "patched"
	Conflicted State = "conflicted"
	Completed  State = "completed"
	Aborted    State = "aborted"
)

// InProgress reports whether a session in this state is kept on disk.
func (s State) InProgress() bool {
	return s == Started || s == Patched || s == Conflicted
}

// Session is the persisted state of an apply that spans several invocations.
type Session struct {
	State            State  `toml:"state" json:"state" yaml:"state"`
	FromRevision     string `toml:"from_revision" json:"from_revision" yaml:"from_revision"`
	ToRevision       string `toml:"to_revision" json:"to_revision" yaml:"to_revision"`
	ToRevisionNumber int    `toml:"to_revision_number" json:"to_revision_number" yaml:"to_revision_number"`
	BaseCommit       string `toml:"base_commit" json:"base_commit" yaml:"base_commit"`
	// Patterns of the template at ToRevision, copied into the record on completion.
	Patterns []replace.Rule `toml:"patterns" json:"patterns" yaml:"patterns"`
	// WorkingPatch is base64 encoded when the diff is not valid UTF-8.
	WorkingPatch  string         `toml:"working_patch" json:"working_patch" yaml:"working_patch"`
	PatchEncoding string         `toml:"patch_encoding,omitempty" json:"patch_encoding,omitempty" yaml:"patch_encoding,omitempty"`
	Paths         []string       `toml:"paths" json:"paths" yaml:"paths"`
	Rejects       []string       `toml:"rejects" json:"rejects" yaml:"rejects"`
	Conflicts     []git.Conflict `toml:"conflicts" json:"conflicts" yaml:"conflicts"`
	StartedAt     time.Time      `toml:"started_at" json:"started_at" yaml:"started_at"`
	UpdatedAt     time.Time      `toml:"updated_at" json:"updated_at" yaml:"updated_at"`
}

// SetPatch stores the rewritten diff.
func (s *Session) SetPatch(p []byte) {
	if utf8.Valid(p) {
		s.WorkingPatch, s.PatchEncoding = string(p), ""
		return
	}
	s.WorkingPatch, s.PatchEncoding = base64.StdEncoding.EncodeToString(p), "base64"
}

// Patch returns the rewritten diff.
func (s *Session) Patch() ([]byte, error) {
	switch s.PatchEncoding {
	case "":
		return []byte(s.WorkingPatch), nil
	case "base64":
		p, err := base64.StdEncoding.DecodeString(s.WorkingPatch)
		return p, errors.WithStack(err)
	default:
		return nil, errors.Errorf("%w: patch encoding %q", delta.ErrInvalidValue, s.PatchEncoding)
	}
}

func sessionPath(repoDir string) string {
	return filepath.Join(repoDir, filepath.FromSlash(SessionFile))
}

// LoadSession reads the in-progress session of repoDir. It fails with
// delta.ErrNotFound when no apply is in progress.
func LoadSession(repoDir string) (*Session, error) {
	var s Session
	if err := storage.LoadTOML(sessionPath(repoDir), &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("%w: no apply in progress in %s", delta.ErrNotFound, repoDir)
		}
		return nil, err
	}
	if !s.State.InProgress() {
		return nil, errors.Errorf("%w: session in %s has state %q", delta.ErrInvalidState, repoDir, s.State)
	}
	return &s, nil
}

// createSession persists s unless a session already exists. The session
// file's presence is the lock.
func createSession(repoDir string, s *Session) error {
	if err := storage.CreateTOML(sessionPath(repoDir), s); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return errors.WithStack(ErrSessionInProgress)
		}
		return err
	}
	return nil
}

func saveSession(repoDir string, s *Session) error {
	return storage.SaveTOML(sessionPath(repoDir), s)
}

func removeSession(repoDir string) error {
	return storage.Remove(sessionPath(repoDir))
}
