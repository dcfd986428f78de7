package delta

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sahilm/fuzzy"
	"gitlab.com/tozd/go/errors"
)

// Class tags a template path.
type Class string

const (
	Required Class = "required"
	Optional Class = "optional"
	Ignored  Class = "ignored"
)

func (c Class) valid() bool {
	return c == Required || c == Optional || c == Ignored
}

// ParseClass parses a class name.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if !c.valid() {
		return "", errors.Errorf("%w: class %q (want required, optional or ignored)", ErrInvalidValue, s)
	}
	return c, nil
}

// NormalizeKey cleans a classification key. Keys are slash separated and
// relative to the repository root; a trailing slash marks a directory.
func NormalizeKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	dir := strings.HasSuffix(key, "/")
	key = path.Clean(strings.TrimPrefix(key, "./"))
	if key == "." || key == "" || strings.HasPrefix(key, "../") || key == ".." || path.IsAbs(key) {
		return "", errors.Errorf("%w: path %q is outside the repository", ErrInvalidValue, key)
	}
	if !doublestar.ValidatePattern(key) {
		return "", errors.Errorf("%w: bad pattern %q", ErrInvalidValue, key)
	}
	if dir {
		key += "/"
	}
	return key, nil
}

// Classify tags key. Classifying a key again replaces its class.
func (r *Record) Classify(key string, c Class) error {
	if !c.valid() {
		return errors.Errorf("%w: class %q", ErrInvalidValue, c)
	}
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if r.Files == nil {
		r.Files = map[string]Class{}
	}
	r.Files[key] = c
	return nil
}

// Unclassify removes key from the classification.
func (r *Record) Unclassify(key string) error {
	norm, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if _, ok := r.Files[norm]; !ok {
		return notFound("file", key, sortedKeys(r.Files))
	}
	delete(r.Files, norm)
	return nil
}

func isGlob(key string) bool {
	return strings.ContainsAny(key, "*?[{")
}

// ClassOf returns the class governing p. An exact key wins over the longest
// matching directory key, which wins over the first matching glob in sorted
// order. It reports false when no key covers p.
func (r *Record) ClassOf(p string) (Class, bool) {
	if c, ok := r.Files[p]; ok {
		return c, true
	}

	best := ""
	for key := range r.Files {
		if strings.HasSuffix(key, "/") && !isGlob(key) && strings.HasPrefix(p, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return r.Files[best], true
	}

	for _, key := range sortedKeys(r.Files) {
		if !isGlob(key) {
			continue
		}
		pattern := key
		if strings.HasSuffix(pattern, "/") {
			pattern += "**"
		}
		if matched, _ := doublestar.Match(pattern, p); matched {
			return r.Files[key], true
		}
	}
	return "", false
}

// IsStatePath reports whether p lives in the gut state directory, which is
// never part of a template.
func IsStatePath(p string) bool {
	return p == Dir || strings.HasPrefix(p, Dir+"/")
}

// Includes reports whether a template path is part of the template.
// Unclassified paths are Required.
func (r *Record) Includes(p string) bool {
	if IsStatePath(p) {
		return false
	}
	c, ok := r.ClassOf(p)
	return !ok || c != Ignored
}

// Generates reports whether the generator copies p. Optional paths are
// copied unless skipOptional is set.
func (r *Record) Generates(p string, skipOptional bool) bool {
	if !r.Includes(p) {
		return false
	}
	c, _ := r.ClassOf(p)
	return !(skipOptional && c == Optional)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// notFound builds an ErrNotFound error suggesting the closest candidate.
func notFound(what, name string, candidates []string) error {
	if matches := fuzzy.Find(name, candidates); len(matches) > 0 {
		return errors.Errorf("%w: no %s %q (did you mean %q?)", ErrNotFound, what, name, matches[0].Str)
	}
	return errors.Errorf("%w: no %s %q", ErrNotFound, what, name)
}
