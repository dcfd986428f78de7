// Package forge turns template references into local checkouts.
//
// A template reference is one of:
//
//   - a local directory, used in place
//   - github:owner/repo, looked up through the GitHub API
//   - a git URL (https://, ssh://, git@host:path, file://)
//
// Remote templates are cloned once into the cache directory and fetched on
// later use. A cache entry is guarded by a lock file, so concurrent gut
// processes do not clone into the same directory.
//
// # Usage
//
//	src, err := forge.New(cfg)
//	dir, err := src.Checkout(ctx, "github:giellalt/template-lang-und")
package forge
