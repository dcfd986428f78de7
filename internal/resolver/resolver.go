// Package resolver computes the part of a template's history that a
// generated repository has not incorporated yet.
package resolver

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/patch"
)

var (
	// ErrUpToDate means the target already sits on the published revision.
	ErrUpToDate = errors.Base("already up to date")
	// ErrDivergedHistory is matched by every DivergedHistoryError.
	ErrDivergedHistory = errors.Base("diverged history")
)

// DivergedHistoryError reports an anchor that is not an ancestor of the
// template's published revision, or that the template no longer contains.
type DivergedHistoryError struct {
	From string
	To   string
}

func (e *DivergedHistoryError) Error() string {
	return "template history diverged: " + short(e.From) + " is not an ancestor of " + short(e.To) +
		" (was the template history rewritten?)"
}

func (e *DivergedHistoryError) Is(target error) bool {
	return target == ErrDivergedHistory
}

// VCS is the subset of git the resolver needs. All calls run in the
// template checkout.
type VCS interface {
	ResolveRevision(ctx context.Context, dir, ref string) (string, error)
	IsAncestor(ctx context.Context, dir, ancestor, rev string) (bool, error)
	Diff(ctx context.Context, dir, from, to string) ([]byte, error)
}

// Input bundles what Resolve reads.
type Input struct {
	TemplateDir string
	Template    *delta.Record
	Target      *delta.Record
}

// Delta is the filtered change set between two template revisions.
type Delta struct {
	From           string
	To             string
	RevisionNumber int
	Patch          *patch.Set
}

// Resolver computes deltas through a VCS.
type Resolver struct {
	VCS VCS
}

// New returns a resolver backed by vcs.
func New(vcs VCS) *Resolver {
	return &Resolver{VCS: vcs}
}

// Resolve diffs the target's anchor against the template's published
// revision. Paths the template ignores are dropped, as classified by the
// template record that published the revision; .gut/ is always dropped.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Delta, error) {
	if in.Template.Kind != delta.KindTemplate {
		return nil, errors.Errorf("%w: %s does not hold a template record", delta.ErrInvalidState, in.TemplateDir)
	}
	if in.Target.RevisionAnchor == "" {
		return nil, errors.Errorf("%w: target record has no revision anchor", delta.ErrInvalidState)
	}
	if in.Template.RevisionAnchor == "" {
		return nil, errors.Errorf("%w: template has no published revision, run bump-version in %s", delta.ErrInvalidState, in.TemplateDir)
	}

	to, err := r.VCS.ResolveRevision(ctx, in.TemplateDir, in.Template.RevisionAnchor)
	if err != nil {
		return nil, errors.Errorf("template revision: %w", err)
	}
	from, err := r.VCS.ResolveRevision(ctx, in.TemplateDir, in.Target.RevisionAnchor)
	if err != nil {
		// An anchor the template no longer has means its history was rewritten.
		if errors.Is(err, git.ErrUnknownRevision) && ctx.Err() == nil {
			return nil, errors.WithStack(&DivergedHistoryError{From: in.Target.RevisionAnchor, To: to})
		}
		return nil, errors.Errorf("target anchor: %w", err)
	}

	l := log.FromContext(ctx)
	l.Debug("resolved revisions", "from", from, "to", to)

	if from == to {
		return nil, errors.WithStack(ErrUpToDate)
	}

	ok, err := r.VCS.IsAncestor(ctx, in.TemplateDir, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(&DivergedHistoryError{From: from, To: to})
	}

	raw, err := r.VCS.Diff(ctx, in.TemplateDir, from, to)
	if err != nil {
		return nil, err
	}
	set, err := patch.Parse(raw)
	if err != nil {
		return nil, err
	}
	filtered := set.Filter(in.Template.Includes)
	l.Debug("filtered template delta", "files", len(set.Files), "kept", len(filtered.Files))

	return &Delta{
		From:           from,
		To:             to,
		RevisionNumber: in.Template.RevisionNumber,
		Patch:          filtered,
	}, nil
}

func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
