package git

import "context"

// CLI exposes the package functions as methods so callers can depend on a
// narrow interface and substitute it in tests.
type CLI struct{}

func (CLI) ResolveRevision(ctx context.Context, dir, ref string) (string, error) {
	return ResolveRevision(ctx, dir, ref)
}

func (CLI) CurrentRevision(ctx context.Context, dir string) (string, error) {
	return CurrentRevision(ctx, dir)
}

func (CLI) IsAncestor(ctx context.Context, dir, ancestor, rev string) (bool, error) {
	return IsAncestor(ctx, dir, ancestor, rev)
}

func (CLI) IsClean(ctx context.Context, dir string, exclude ...string) (bool, error) {
	return IsClean(ctx, dir, exclude...)
}

func (CLI) Diff(ctx context.Context, dir, from, to string) ([]byte, error) {
	return Diff(ctx, dir, from, to)
}

func (CLI) ApplyPatch(ctx context.Context, dir string, patch []byte, paths []string) (*ApplyResult, error) {
	return ApplyPatch(ctx, dir, patch, paths)
}

func (CLI) StagePaths(ctx context.Context, dir string, paths []string) error {
	return StagePaths(ctx, dir, paths)
}

func (CLI) RevertPaths(ctx context.Context, dir, base string, paths []string) error {
	return RevertPaths(ctx, dir, base, paths)
}

func (CLI) ListFiles(ctx context.Context, dir string) ([]string, error) {
	return ListFiles(ctx, dir)
}

func (CLI) ListTreeFiles(ctx context.Context, dir, rev string) ([]TreeEntry, error) {
	return ListTreeFiles(ctx, dir, rev)
}

func (CLI) ShowFile(ctx context.Context, dir, rev, path string) ([]byte, error) {
	return ShowFile(ctx, dir, rev, path)
}

func (CLI) Init(ctx context.Context, dir string) error {
	return Init(ctx, dir)
}

func (CLI) CommitAll(ctx context.Context, dir, message string) error {
	return CommitAll(ctx, dir, message)
}

func (CLI) Clone(ctx context.Context, url, dest string) error {
	return Clone(ctx, url, dest)
}

func (CLI) Fetch(ctx context.Context, dir string) error {
	return Fetch(ctx, dir)
}
