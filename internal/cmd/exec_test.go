package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/log"
)

func logCtx() context.Context {
	l := log.New(&bytes.Buffer{}, false, false)
	return log.WithLogger(context.Background(), l)
}

func TestRunContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dir     string
		args    []string
		wantErr string
	}{
		{name: "success", args: []string{"echo", "hello"}},
		{name: "runs in dir", dir: "/tmp", args: []string{"pwd"}},
		{name: "failure without stderr", args: []string{"sh", "-c", "exit 1"}, wantErr: "exit status 1"},
		{name: "stderr becomes message", args: []string{"sh", "-c", "echo 'bad thing' >&2; exit 1"}, wantErr: "bad thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := RunContext(logCtx(), tt.dir, tt.args[0], tt.args[1:]...)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestRunContext_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(logCtx())
	cancel()
	err := RunContext(ctx, "", "sleep", "10")
	assert.Equal(t, context.Canceled, err)
}

func TestOutputContext(t *testing.T) {
	t.Parallel()

	out, err := OutputContext(logCtx(), "", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestOutputContext_ExitErrorKeepsStdout(t *testing.T) {
	t.Parallel()

	out, err := OutputContext(logCtx(), "", "sh", "-c", "echo partial; echo 'error msg' >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "partial\n", string(out))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "error msg", exitErr.Stderr)
}

func TestInputContext(t *testing.T) {
	t.Parallel()

	out, err := InputContext(logCtx(), "", []byte("piped\n"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "piped\n", string(out))
}

func TestRunContext_VerboseEchoesCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(&buf, true, false))
	require.NoError(t, RunContext(ctx, "", "echo", "hi"))
	assert.Contains(t, buf.String(), "$ echo hi (")
}
