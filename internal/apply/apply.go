// Package apply drives a template application through its resumable
// lifecycle.
//
// Start resolves the template delta, rewrites it through the target's
// replacements and applies it to the work tree. A clean application leaves
// staged changes (Patched); failed hunks leave .rej files (Conflicted). After
// the user commits, Continue advances the target's revision anchor. Abort
// restores the touched paths and leaves the anchor alone. The session file
// .gut/apply.toml exists exactly while an apply is in progress.
package apply

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/resolver"
)

var (
	ErrSessionInProgress = errors.Base("an apply is already in progress (use --continue or --abort)")
	ErrDirtyWorkingTree  = errors.Base("working tree has uncommitted changes")
	ErrCommitRequired    = errors.Base("commit the applied changes before continuing")
)

// VCS is the subset of git the orchestrator needs.
type VCS interface {
	resolver.VCS
	CurrentRevision(ctx context.Context, dir string) (string, error)
	IsClean(ctx context.Context, dir string, exclude ...string) (bool, error)
	ApplyPatch(ctx context.Context, dir string, patch []byte, paths []string) (*git.ApplyResult, error)
	StagePaths(ctx context.Context, dir string, paths []string) error
	RevertPaths(ctx context.Context, dir, base string, paths []string) error
}

// Source turns a template reference into a local checkout.
type Source interface {
	Checkout(ctx context.Context, ref string) (string, error)
}

// Result is the outcome of one orchestrator call.
type Result struct {
	Repo     string
	State    State
	From     string
	To       string
	UpToDate bool
	Paths    []string
	// Conflicts lists paths whose hunks did not apply, with the rejected
	// hunks verbatim. Non-empty only in state Conflicted.
	Conflicts []git.Conflict
}

// Orchestrator runs apply sessions.
type Orchestrator struct {
	VCS    VCS
	Source Source
	Now    func() time.Time
}

// New returns an orchestrator using vcs and src.
func New(vcs VCS, src Source) *Orchestrator {
	return &Orchestrator{VCS: vcs, Source: src, Now: time.Now}
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// Start begins applying the template's unincorporated changes to repoDir.
func (o *Orchestrator) Start(ctx context.Context, repoDir string) (*Result, error) {
	l := log.FromContext(ctx)

	if _, err := os.Stat(sessionPath(repoDir)); err == nil {
		return nil, errors.WithStack(ErrSessionInProgress)
	}

	target, err := delta.Load(repoDir)
	if err != nil {
		return nil, err
	}
	if target.Kind != delta.KindGenerated {
		return nil, errors.Errorf("%w: %s holds a %s record, apply needs a generated repository", delta.ErrInvalidState, repoDir, target.Kind)
	}

	clean, err := o.VCS.IsClean(ctx, repoDir, SessionFile)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, errors.Errorf("%w: %s", ErrDirtyWorkingTree, repoDir)
	}

	templateDir, err := o.Source.Checkout(ctx, target.TemplateOrigin)
	if err != nil {
		return nil, err
	}
	tmpl, err := delta.Load(templateDir)
	if err != nil {
		return nil, err
	}

	d, err := resolver.New(o.VCS).Resolve(ctx, resolver.Input{TemplateDir: templateDir, Template: tmpl, Target: target})
	if errors.Is(err, resolver.ErrUpToDate) {
		l.Debug("template already applied", "repo", repoDir, "revision", target.RevisionAnchor)
		return &Result{Repo: repoDir, State: Completed, From: target.RevisionAnchor, To: target.RevisionAnchor, UpToDate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	// Template patterns, target values.
	engine, err := replace.Compile(tmpl.Patterns, target.Replacements)
	if err != nil {
		return nil, err
	}

	if d.Patch.Empty() {
		// Nothing the target tracks changed; only the anchor moves.
		if err := o.finish(ctx, repoDir, target, d.From, d.To, d.RevisionNumber, tmpl.Patterns); err != nil {
			return nil, err
		}
		return &Result{Repo: repoDir, State: Completed, From: d.From, To: d.To}, nil
	}

	base, err := o.VCS.CurrentRevision(ctx, repoDir)
	if err != nil {
		return nil, err
	}

	rewritten := d.Patch.Rewrite(engine)
	for _, f := range rewritten.Files {
		if f.IsBinary() {
			l.Warn().Str("repo", repoDir).Str("path", f.Path()).Msg("binary file is applied without replacements")
		}
	}
	now := o.now()
	s := &Session{
		State:            Started,
		FromRevision:     d.From,
		ToRevision:       d.To,
		ToRevisionNumber: d.RevisionNumber,
		BaseCommit:       base,
		Patterns:         slices.Clone(tmpl.Patterns),
		Paths:            rewritten.Paths(),
		StartedAt:        now,
		UpdatedAt:        now,
	}
	s.SetPatch(rewritten.Bytes())
	if err := createSession(repoDir, s); err != nil {
		return nil, err
	}
	l.Debug("apply started", "repo", repoDir, "from", d.From, "to", d.To, "paths", len(s.Paths))

	return o.patch(ctx, repoDir, s)
}

// patch moves a Started session to Patched or Conflicted.
func (o *Orchestrator) patch(ctx context.Context, repoDir string, s *Session) (*Result, error) {
	p, err := s.Patch()
	if err != nil {
		return nil, err
	}
	res, err := o.VCS.ApplyPatch(ctx, repoDir, p, s.Paths)
	if err != nil {
		return nil, err
	}

	if res.Clean() {
		if err := o.VCS.StagePaths(ctx, repoDir, s.Paths); err != nil {
			return nil, err
		}
		s.State = Patched
	} else {
		s.State = Conflicted
		s.Rejects = res.Rejects
		s.Conflicts = res.Conflicts
	}
	if err := o.transition(ctx, repoDir, s); err != nil {
		return nil, err
	}
	return resultOf(repoDir, s), nil
}

func (o *Orchestrator) transition(ctx context.Context, repoDir string, s *Session) error {
	s.UpdatedAt = o.now()
	if err := saveSession(repoDir, s); err != nil {
		return err
	}
	log.FromContext(ctx).Debug("apply state", "repo", repoDir, "state", string(s.State))
	return nil
}

func resultOf(repoDir string, s *Session) *Result {
	return &Result{
		Repo:      repoDir,
		State:     s.State,
		From:      s.FromRevision,
		To:        s.ToRevision,
		Paths:     s.Paths,
		Conflicts: s.Conflicts,
	}
}

// Continue resumes the session of repoDir. A Started session is applied
// again; a Patched or Conflicted one is completed once the user committed
// the result.
func (o *Orchestrator) Continue(ctx context.Context, repoDir string) (*Result, error) {
	s, err := LoadSession(repoDir)
	if err != nil {
		return nil, err
	}
	if s.State == Started {
		return o.patch(ctx, repoDir, s)
	}

	target, err := delta.Load(repoDir)
	if err != nil {
		return nil, err
	}
	if target.RevisionAnchor == "" || !strings.HasPrefix(s.FromRevision, target.RevisionAnchor) {
		return nil, errors.Errorf("%w: record anchor %s no longer matches the session start %s", delta.ErrInvalidState, target.RevisionAnchor, s.FromRevision)
	}

	if err := removeRejects(repoDir, s.Rejects); err != nil {
		return nil, err
	}
	clean, err := o.VCS.IsClean(ctx, repoDir, SessionFile)
	if err != nil {
		return nil, err
	}
	head, err := o.VCS.CurrentRevision(ctx, repoDir)
	if err != nil {
		return nil, err
	}
	if !clean || head == s.BaseCommit {
		return nil, errors.Errorf("%w: %s", ErrCommitRequired, repoDir)
	}

	if err := o.finish(ctx, repoDir, target, s.FromRevision, s.ToRevision, s.ToRevisionNumber, s.Patterns); err != nil {
		return nil, err
	}
	if err := removeSession(repoDir); err != nil {
		return nil, err
	}

	res := resultOf(repoDir, s)
	res.State = Completed
	res.Conflicts = nil
	return res, nil
}

// finish advances the target anchor, adopts the template's patterns and
// stages the record so it is committed with the next commit.
func (o *Orchestrator) finish(ctx context.Context, repoDir string, target *delta.Record, from, to string, revisionNumber int, patterns []replace.Rule) error {
	target.RecordSync(from, to, revisionNumber, o.now())
	target.Patterns = slices.Clone(patterns)
	if err := delta.Save(repoDir, target); err != nil {
		return err
	}
	return o.VCS.StagePaths(ctx, repoDir, []string{delta.Dir + "/" + delta.FileName})
}

// Abort restores every path the session touched to its content at the
// session's base commit and discards the session. The anchor is unchanged.
func (o *Orchestrator) Abort(ctx context.Context, repoDir string) (*Result, error) {
	s, err := LoadSession(repoDir)
	if err != nil {
		return nil, err
	}
	if err := o.VCS.RevertPaths(ctx, repoDir, s.BaseCommit, s.Paths); err != nil {
		return nil, err
	}
	if err := removeRejects(repoDir, s.Rejects); err != nil {
		return nil, err
	}
	if err := removeSession(repoDir); err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("apply aborted", "repo", repoDir)

	res := resultOf(repoDir, s)
	res.State = Aborted
	res.Conflicts = nil
	return res, nil
}

// Status returns the in-progress session of repoDir.
func (o *Orchestrator) Status(_ context.Context, repoDir string) (*Session, error) {
	return LoadSession(repoDir)
}

func removeRejects(repoDir string, rejects []string) error {
	for _, rej := range rejects {
		if err := os.Remove(filepath.Join(repoDir, filepath.FromSlash(rej))); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.WithStack(err)
		}
	}
	return nil
}
