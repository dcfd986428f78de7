package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestCheckGit_Available(t *testing.T) {
	t.Parallel()
	require.NoError(t, CheckGit())
}

func TestIsRepo(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	assert.True(t, IsRepo(repo))
	assert.False(t, IsRepo(resolveTempDir(t)))
}

func TestTopLevel(t *testing.T) {
	t.Parallel()

	repo := setupTestRepo(t)
	writeFile(t, repo, "sub/dir/file.txt", "x\n")

	got, err := TopLevel(context.Background(), repo+"/sub")
	require.NoError(t, err)
	assert.Equal(t, repo, got)

	_, err = TopLevel(context.Background(), resolveTempDir(t))
	assert.True(t, errors.Is(err, ErrNotARepository))
}
