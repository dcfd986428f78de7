// Package git provides git operations via shell commands.
//
// All operations use [os/exec.Command] to call the git CLI directly rather than
// using Go git libraries, so user configuration (SSH keys, credential helpers,
// attributes) applies as it would on the command line.
//
// # Revisions
//
//   - [ResolveRevision], [CurrentRevision]: turn refs into commit SHAs
//   - [IsAncestor]: ancestry checks between template revisions
//   - [Diff]: binary-safe diff between two revisions
//
// # Work tree
//
//   - [IsClean], [DirtyPaths]: uncommitted change detection
//   - [ApplyPatch]: apply a diff, writing .rej files for failed hunks
//   - [RevertPaths], [StagePaths]: undo or stage the paths a patch touched
//
// # Trees and remotes
//
//   - [ListFiles], [ListTreeFiles], [ShowFile]: read tracked content
//   - [Init], [CommitAll], [Clone], [Fetch]: create and update repositories
//
// [CLI] wraps the functions as methods for consumers that take an interface.
package git
