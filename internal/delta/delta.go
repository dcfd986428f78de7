// Package delta stores the provenance record kept in every template and
// generated repository.
//
// A template repository publishes a revision anchor, a file classification
// and the patterns that turn template text into repository text. A generated
// repository records the template revision it was last synced to together
// with the values its patterns were expanded with. Both live in
// .gut/delta.toml and are written atomically.
package delta

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/storage"
)

const (
	// Dir is the repository-relative directory holding gut state.
	Dir = ".gut"
	// FileName is the record file inside Dir.
	FileName = "delta.toml"
	// IgnoreFile keeps per-checkout state out of version control.
	IgnoreFile = ".gitignore"
)

var (
	ErrNotFound     = errors.Base("not found")
	ErrInvalidState = errors.Base("invalid state")
	ErrInvalidValue = errors.Base("invalid value")
)

// Kind distinguishes template records from generated ones.
type Kind string

const (
	KindTemplate  Kind = "template"
	KindGenerated Kind = "generated"
)

// Sync is one completed template application.
type Sync struct {
	From           string    `toml:"from" json:"from" yaml:"from"`
	To             string    `toml:"to" json:"to" yaml:"to"`
	RevisionNumber int       `toml:"revision_number" json:"revision_number" yaml:"revision_number"`
	AppliedAt      time.Time `toml:"applied_at" json:"applied_at" yaml:"applied_at"`
}

// Record is the persisted provenance of a repository.
type Record struct {
	Kind           Kind              `toml:"kind" json:"kind" yaml:"kind"`
	Name           string            `toml:"name" json:"name" yaml:"name"`
	RevisionAnchor string            `toml:"revision_anchor" json:"revision_anchor" yaml:"revision_anchor"`
	RevisionNumber int               `toml:"revision_number" json:"revision_number" yaml:"revision_number"`
	TemplateOrigin string            `toml:"template_origin,omitempty" json:"template_origin,omitempty" yaml:"template_origin,omitempty"`
	Files          map[string]Class  `toml:"files" json:"files" yaml:"files"`
	Patterns       []replace.Rule    `toml:"patterns" json:"patterns" yaml:"patterns"`
	Replacements   map[string]string `toml:"replacements" json:"replacements" yaml:"replacements"`
	History        []Sync            `toml:"history" json:"history" yaml:"history"`
}

// NewTemplate returns a record for a template publishing anchor.
func NewTemplate(name, anchor string) *Record {
	return &Record{
		Kind:           KindTemplate,
		Name:           name,
		RevisionAnchor: anchor,
		Files:          map[string]Class{},
		Replacements:   map[string]string{},
	}
}

// NewGenerated returns a record for a repository instantiated from the
// template origin at anchor.
func NewGenerated(origin, name, anchor string, revisionNumber int) *Record {
	return &Record{
		Kind:           KindGenerated,
		Name:           name,
		RevisionAnchor: anchor,
		RevisionNumber: revisionNumber,
		TemplateOrigin: origin,
		Files:          map[string]Class{},
		Replacements:   map[string]string{},
	}
}

// Path returns the record file of repoDir.
func Path(repoDir string) string {
	return filepath.Join(repoDir, Dir, FileName)
}

// Load reads the record of repoDir. A missing record matches ErrNotFound;
// any other problem is returned as is and names the file.
func Load(repoDir string) (*Record, error) {
	path := Path(repoDir)
	var r Record
	if err := storage.LoadTOML(path, &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("%w: no record at %s", ErrNotFound, path)
		}
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	if r.Files == nil {
		r.Files = map[string]Class{}
	}
	if r.Replacements == nil {
		r.Replacements = map[string]string{}
	}
	return &r, nil
}

// Save atomically writes the record of repoDir and makes sure the state
// directory ignores per-checkout files.
func Save(repoDir string, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := storage.SaveTOML(Path(repoDir), r); err != nil {
		return errors.Errorf("save record: %w", err)
	}
	return WriteIgnore(repoDir)
}

// IgnoredStateFiles are per-checkout files under Dir that must never be committed.
var IgnoredStateFiles = []string{"apply.toml", "*.tmp"}

// WriteIgnore writes .gut/.gitignore unless it already exists.
func WriteIgnore(repoDir string) error {
	path := filepath.Join(repoDir, Dir, IgnoreFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content := strings.Join(IgnoredStateFiles, "\n") + "\n"
	if err := storage.WriteFile(path, []byte(content)); err != nil {
		return errors.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (r *Record) validate() error {
	switch r.Kind {
	case KindTemplate, KindGenerated:
	default:
		return errors.Errorf("%w: unknown kind %q", ErrInvalidValue, r.Kind)
	}
	for p, c := range r.Files {
		if !c.valid() {
			return errors.Errorf("%w: class %q for %s", ErrInvalidValue, c, p)
		}
	}
	for _, rule := range r.Patterns {
		if err := replace.Validate(rule); err != nil {
			return err
		}
	}
	return nil
}

// BumpVersion publishes rev as the template's current revision.
func (r *Record) BumpVersion(rev string) error {
	if r.Kind != KindTemplate {
		return errors.Errorf("%w: bump-version needs a template record, this is %s", ErrInvalidState, r.Kind)
	}
	r.RevisionAnchor = rev
	r.RevisionNumber++
	return nil
}

// RecordSync advances the anchor of a generated record after an apply.
func (r *Record) RecordSync(from, to string, revisionNumber int, at time.Time) {
	r.History = append(r.History, Sync{From: from, To: to, RevisionNumber: revisionNumber, AppliedAt: at.UTC()})
	r.RevisionAnchor = to
	r.RevisionNumber = revisionNumber
}

// AddPattern appends rule, replacing an existing rule with the same match in place.
func (r *Record) AddPattern(rule replace.Rule) error {
	if err := replace.Validate(rule); err != nil {
		return err
	}
	for i, existing := range r.Patterns {
		if existing.Match == rule.Match {
			r.Patterns[i] = rule
			return nil
		}
	}
	r.Patterns = append(r.Patterns, rule)
	return nil
}

// RemovePattern deletes the rule with the given match.
func (r *Record) RemovePattern(match string) error {
	i := slices.IndexFunc(r.Patterns, func(p replace.Rule) bool { return p.Match == match })
	if i < 0 {
		matches := make([]string, len(r.Patterns))
		for j, p := range r.Patterns {
			matches[j] = p.Match
		}
		return notFound("pattern", match, matches)
	}
	r.Patterns = slices.Delete(r.Patterns, i, i+1)
	return nil
}

// SetReplacement stores a single-line value for key.
func (r *Record) SetReplacement(key, value string) error {
	if key == "" {
		return errors.Errorf("%w: empty replacement key", ErrInvalidValue)
	}
	if strings.ContainsAny(value, "\r\n") {
		return errors.Errorf("%w: replacement %s must be a single line", ErrInvalidValue, key)
	}
	if r.Replacements == nil {
		r.Replacements = map[string]string{}
	}
	r.Replacements[key] = value
	return nil
}

// RemoveReplacement deletes the value stored for key.
func (r *Record) RemoveReplacement(key string) error {
	if _, ok := r.Replacements[key]; !ok {
		return notFound("replacement", key, sortedKeys(r.Replacements))
	}
	delete(r.Replacements, key)
	return nil
}

// MissingKeys lists pattern keys that have no replacement value.
func (r *Record) MissingKeys() []string {
	var missing []string
	for _, k := range replace.Keys(r.Patterns) {
		if _, ok := r.Replacements[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
