// Package replace implements the placeholder substitution rules that turn
// template content into repository content.
//
// A rule matches literal text or a regular expression and replaces it with a
// template string. Template strings reference replacement values as {{KEY}}.
// Rules run in declaration order over file contents, file paths and the lines
// of a template delta.
package replace

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrMissingReplacement is matched by every MissingReplacementError.
	ErrMissingReplacement = errors.Base("missing replacement")
	// ErrInvalidRule is returned for rules that cannot be compiled.
	ErrInvalidRule = errors.Base("invalid rule")
)

// MissingReplacementError names a key referenced by a rule but absent from the values.
type MissingReplacementError struct {
	Key  string
	Rule string
}

func (e *MissingReplacementError) Error() string {
	return "missing replacement for " + e.Key + " (used by pattern " + e.Rule + ")"
}

func (e *MissingReplacementError) Is(target error) bool {
	return target == ErrMissingReplacement
}

// Rule is one substitution. An empty Replace means "{{KEY}}" where KEY is
// Match without surrounding braces, so a rule "__UND__" substitutes the
// value stored under "__UND__" and a rule "{{NAME}}" the value under "NAME".
type Rule struct {
	Match      string `toml:"match" json:"match" yaml:"match"`
	Regex      bool   `toml:"regex,omitempty" json:"regex,omitempty" yaml:"regex,omitempty"`
	IgnoreCase bool   `toml:"ignore_case,omitempty" json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
	Replace    string `toml:"replace,omitempty" json:"replace,omitempty" yaml:"replace,omitempty"`
}

// Template returns the effective replacement template of the rule.
func (r Rule) Template() string {
	if r.Replace != "" {
		return r.Replace
	}
	return "{{" + KeyOf(r.Match) + "}}"
}

// KeyOf strips {{ }} from a placeholder, leaving other strings untouched.
func KeyOf(match string) string {
	s := strings.TrimSpace(match)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && len(s) > 4 {
		return strings.TrimSpace(s[2 : len(s)-2])
	}
	return match
}

var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Keys returns the replacement keys referenced by rules, in first-use order.
func Keys(rules []Rule) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range rules {
		for _, m := range placeholder.FindAllStringSubmatch(r.Template(), -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				keys = append(keys, m[1])
			}
		}
	}
	return keys
}

// Validate checks that a rule can be compiled, without needing values.
func Validate(r Rule) error {
	if r.Match == "" {
		return errors.Errorf("%w: empty match", ErrInvalidRule)
	}
	if !r.Regex {
		return nil
	}
	if _, err := compileRegex(r); err != nil {
		return err
	}
	return nil
}

type compiled struct {
	re      *regexp.Regexp
	literal string
	value   string
}

// Engine applies a compiled rule list. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	rules []compiled
}

// Compile expands every rule template against values. A key referenced by
// any rule but missing from values fails with a MissingReplacementError.
func Compile(rules []Rule, values map[string]string) (*Engine, error) {
	e := &Engine{rules: make([]compiled, 0, len(rules))}
	for _, r := range rules {
		if err := Validate(r); err != nil {
			return nil, err
		}

		var missing string
		expanded := placeholder.ReplaceAllStringFunc(r.Template(), func(m string) string {
			key := placeholder.FindStringSubmatch(m)[1]
			v, ok := values[key]
			if !ok && missing == "" {
				missing = key
			}
			if r.Regex {
				return strings.ReplaceAll(v, "$", "$$")
			}
			return v
		})
		if missing != "" {
			return nil, errors.WithStack(&MissingReplacementError{Key: missing, Rule: r.Match})
		}

		c := compiled{value: expanded}
		switch {
		case r.Regex:
			re, err := compileRegex(r)
			if err != nil {
				return nil, err
			}
			c.re = re
		case r.IgnoreCase:
			c.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.Match))
			c.value = strings.ReplaceAll(expanded, "$", "$$")
		default:
			c.literal = r.Match
		}
		e.rules = append(e.rules, c)
	}
	return e, nil
}

func compileRegex(r Rule) (*regexp.Regexp, error) {
	expr := r.Match
	if r.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Errorf("%w: %s: %s", ErrInvalidRule, r.Match, err.Error())
	}
	return re, nil
}

// String rewrites s by applying every rule in order.
func (e *Engine) String(s string) string {
	for _, c := range e.rules {
		if c.re != nil {
			s = c.re.ReplaceAllString(s, c.value)
			continue
		}
		s = strings.ReplaceAll(s, c.literal, c.value)
	}
	return s
}

// Bytes is String for file contents.
func (e *Engine) Bytes(b []byte) []byte {
	return []byte(e.String(string(b)))
}

// Path rewrites a slash-separated repository path. Rules see the whole path,
// so a placeholder may appear in any directory component.
func (e *Engine) Path(p string) string {
	return e.String(p)
}
