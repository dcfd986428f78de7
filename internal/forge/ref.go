package forge

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidRef is returned for template references that cannot be parsed.
var ErrInvalidRef = errors.Base("invalid template reference")

// RefKind tells how a template reference is resolved.
type RefKind int

const (
	LocalRef RefKind = iota
	GitHubRef
	URLRef
)

// Ref is a parsed template reference.
type Ref struct {
	Kind RefKind
	// Path is set for LocalRef.
	Path string
	// Owner and Repo are set for GitHubRef.
	Owner string
	Repo  string
	// URL is set for URLRef.
	URL string
}

// GitHubPrefix introduces a github:owner/repo reference.
const GitHubPrefix = "github:"

// ParseRef classifies a template reference.
func ParseRef(ref string) (Ref, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Ref{}, errors.Errorf("%w: empty", ErrInvalidRef)

	case strings.HasPrefix(ref, GitHubPrefix):
		owner, repo, ok := strings.Cut(strings.TrimPrefix(ref, GitHubPrefix), "/")
		repo = strings.TrimSuffix(repo, ".git")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return Ref{}, errors.Errorf("%w: %q (want github:owner/repo)", ErrInvalidRef, ref)
		}
		return Ref{Kind: GitHubRef, Owner: owner, Repo: repo}, nil

	case isURL(ref):
		return Ref{Kind: URLRef, URL: ref}, nil
	}
	return Ref{Kind: LocalRef, Path: ref}, nil
}

func isURL(ref string) bool {
	if strings.Contains(ref, "://") {
		return true
	}
	// scp-like syntax: user@host:path
	at := strings.Index(ref, "@")
	colon := strings.Index(ref, ":")
	return at > 0 && colon > at
}

// extractHost parses the hostname from a git remote URL.
// Handles SSH format (git@host:path) and URL formats (https://host/path).
func extractHost(remoteURL string) string {
	if !strings.Contains(remoteURL, "://") {
		if _, rest, ok := strings.Cut(remoteURL, "@"); ok {
			if host, _, ok := strings.Cut(rest, ":"); ok {
				return host
			}
		}
		return ""
	}
	if parsed, err := url.Parse(remoteURL); err == nil {
		return parsed.Hostname()
	}
	return ""
}

// repoPath returns the path part of a git remote URL without .git.
func repoPath(remoteURL string) string {
	var p string
	if strings.Contains(remoteURL, "://") {
		parsed, err := url.Parse(remoteURL)
		if err != nil {
			return ""
		}
		p = parsed.Path
	} else if _, rest, ok := strings.Cut(remoteURL, ":"); ok {
		p = rest
	}
	return strings.TrimSuffix(strings.Trim(p, "/"), ".git")
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// cacheName maps a remote URL to a directory name below the cache dir.
// https://github.com/giellalt/template-lang-und.git becomes
// github.com_giellalt_template-lang-und.
func cacheName(remoteURL string) string {
	parts := []string{extractHost(remoteURL)}
	parts = append(parts, strings.Split(repoPath(remoteURL), "/")...)

	var clean []string
	for _, p := range parts {
		p = strings.Trim(unsafeChars.ReplaceAllString(p, "_"), "._")
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return "template"
	}
	return filepath.Clean(strings.Join(clean, "_"))
}
