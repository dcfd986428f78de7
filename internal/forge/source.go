package forge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/go-github/v60/github"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
)

// Git clones and updates cache checkouts.
type Git interface {
	Clone(ctx context.Context, url, dest string) error
	Fetch(ctx context.Context, dir string) error
}

// Repositories is the part of the GitHub API the source uses.
// *github.RepositoriesService implements it.
type Repositories interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
}

// Source resolves template references to local checkouts.
type Source struct {
	CacheDir string
	Git      Git
	GitHub   Repositories

	mu      sync.Mutex
	fetched map[string]string
}

// New returns a source caching remote templates in cfg.CacheDir.
func New(cfg *config.Config) (*Source, error) {
	client, err := NewGitHubClient(cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return &Source{CacheDir: cfg.CacheDir, Git: git.CLI{}, GitHub: client.Repositories}, nil
}

// NewGitHubClient builds an API client for cfg.Host, authenticated with the
// token in the environment variable cfg.TokenEnv when it is set.
func NewGitHubClient(cfg config.GitHubConfig) (*github.Client, error) {
	client := github.NewClient(nil)
	if cfg.TokenEnv != "" {
		if token := os.Getenv(cfg.TokenEnv); token != "" {
			client = client.WithAuthToken(token)
		}
	}
	if cfg.Host == "" || cfg.Host == "github.com" {
		return client, nil
	}
	base := "https://" + strings.TrimSuffix(cfg.Host, "/") + "/"
	client, err := client.WithEnterpriseURLs(base, base)
	if err != nil {
		return nil, errors.Errorf("github host %s: %w", cfg.Host, err)
	}
	return client, nil
}

// Checkout returns a local directory holding the template ref points to.
// Remote templates are cloned or fetched at most once per Source.
func (s *Source) Checkout(ctx context.Context, ref string) (string, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	switch r.Kind {
	case LocalRef:
		return checkoutLocal(r.Path)
	case GitHubRef:
		u, err := s.cloneURL(ctx, r.Owner, r.Repo)
		if err != nil {
			return "", err
		}
		return s.checkoutURL(ctx, u)
	default:
		return s.checkoutURL(ctx, r.URL)
	}
}

func checkoutLocal(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", errors.Errorf("%w: %s is not a directory", ErrInvalidRef, path)
	}
	if !git.IsRepo(abs) {
		return "", errors.Errorf("%w: %s", git.ErrNotARepository, path)
	}
	return abs, nil
}

func (s *Source) cloneURL(ctx context.Context, owner, repo string) (string, error) {
	if s.GitHub == nil {
		return "", errors.Errorf("%w: no GitHub client for %s/%s", ErrInvalidRef, owner, repo)
	}
	log.FromContext(ctx).Debug("looking up github repository", "owner", owner, "repo", repo)

	info, _, err := s.GitHub.Get(ctx, owner, repo)
	if err != nil {
		return "", errors.Errorf("github %s/%s: %w", owner, repo, err)
	}
	u := info.GetCloneURL()
	if u == "" {
		return "", errors.Errorf("github %s/%s has no clone URL", owner, repo)
	}
	return u, nil
}

func (s *Source) checkoutURL(ctx context.Context, u string) (string, error) {
	if dir, ok := s.cached(u); ok {
		return dir, nil
	}
	if s.CacheDir == "" {
		return "", errors.Errorf("no cache directory configured for %s", u)
	}
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	name := cacheName(u)
	dir := filepath.Join(s.CacheDir, name)
	lock := newFileLock(filepath.Join(s.CacheDir, "."+name+".lock"))
	if err := lock.Lock(); err != nil {
		return "", err
	}
	defer lock.Unlock()

	// Another caller of this source may have fetched while we waited.
	if dir, ok := s.cached(u); ok {
		return dir, nil
	}

	l := log.FromContext(ctx)
	if git.IsRepo(dir) {
		l.Debug("fetching template", "url", u, "dir", dir)
		if err := s.Git.Fetch(ctx, dir); err != nil {
			return "", err
		}
	} else {
		l.Debug("cloning template", "url", u, "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", errors.WithStack(err)
		}
		if err := s.Git.Clone(ctx, u, dir); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	if s.fetched == nil {
		s.fetched = make(map[string]string)
	}
	s.fetched[u] = dir
	s.mu.Unlock()
	return dir, nil
}

func (s *Source) cached(u string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.fetched[u]
	return dir, ok
}
