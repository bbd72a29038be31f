package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const shPath = "/bin/sh"

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(shPath); err != nil {
		t.Skipf("%s not available: %v", shPath, err)
	}
}

func newTestInvoker(t *testing.T) (*ProcessInvoker, *Foreground) {
	fg := &Foreground{}
	return NewProcessInvoker(fg, zaptest.NewLogger(t)), fg
}

func shInvocation(script string) Invocation {
	return Invocation{Path: shPath, Argv: []string{"sh", "-c", script}}
}

func TestProcessInvoker_ExitCode(t *testing.T) {
	requireSh(t)
	p, fg := newTestInvoker(t)

	for _, code := range []int{0, 1, 3, 42} {
		res, err := p.Invoke(context.Background(), shInvocation("exit "+strconv.Itoa(code)))
		require.NoError(t, err)
		assert.Equal(t, StateExited, res.State)
		assert.Equal(t, code, res.Code)
		assert.Positive(t, res.Pid)
		assert.False(t, fg.Waiting())
	}
}

func TestProcessInvoker_CapturesOutput(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	var stdout, stderr bytes.Buffer
	inv := shInvocation("echo out; echo err >&2")
	inv.IO = IOBindings{Stdout: &stdout, Stderr: &stderr}

	res, err := p.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestProcessInvoker_SharedWriter(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	var out bytes.Buffer
	inv := shInvocation("echo a; echo b >&2; echo c")
	inv.IO = IOBindings{Stdout: &out, Stderr: &out}

	_, err := p.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", out.String())
}

func TestProcessInvoker_StdinFromReader(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	var out bytes.Buffer
	inv := shInvocation("cat")
	inv.IO = IOBindings{Stdin: strings.NewReader("hello\nworld\n"), Stdout: &out}

	_, err := p.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out.String())
}

func TestProcessInvoker_DirAndEnv(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)
	dir := t.TempDir()

	var out bytes.Buffer
	inv := shInvocation(`echo "$USH_TEST"; pwd -P`)
	inv.Dir = dir
	inv.Env = []string{"USH_TEST=value"}
	inv.IO = IOBindings{Stdout: &out}

	_, err := p.Invoke(context.Background(), inv)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, "value\n"+want+"\n", out.String())
}

func TestProcessInvoker_TerminatedBySignal(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	res, err := p.Invoke(context.Background(), shInvocation("kill -TERM $$"))
	require.NoError(t, err)
	assert.Equal(t, StateSignaled, res.State)
	assert.Equal(t, syscall.SIGTERM, res.Signal)
	assert.Equal(t, 128+int(syscall.SIGTERM), res.Code)
}

func TestProcessInvoker_StoppedThenResumed(t *testing.T) {
	requireSh(t)
	p, fg := newTestInvoker(t)

	res, err := p.Invoke(context.Background(), shInvocation("kill -STOP $$; exit 4"))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.State)
	assert.Equal(t, syscall.SIGSTOP, res.Signal)
	assert.Equal(t, 128+int(syscall.SIGSTOP), res.Code)
	assert.False(t, fg.Waiting())

	res, err = p.Resume(context.Background(), res.Pid)
	require.NoError(t, err)
	assert.Equal(t, StateExited, res.State)
	assert.Equal(t, 4, res.Code)
}

func TestProcessInvoker_NotExecutable(t *testing.T) {
	p, fg := newTestInvoker(t)
	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0644))

	res, err := p.Invoke(context.Background(), Invocation{Path: path, Argv: []string{"script"}})
	assert.ErrorIs(t, err, ErrExec)
	assert.Contains(t, err.Error(), path)
	assert.Equal(t, ExitNotExecutable, res.Code)
	assert.False(t, fg.Waiting())
	assert.Zero(t, fg.Pid())
}

func TestProcessInvoker_Missing(t *testing.T) {
	p, fg := newTestInvoker(t)

	res, err := p.Invoke(context.Background(), Invocation{Path: "/nonexistent/program"})
	assert.ErrorIs(t, err, ErrExec)
	assert.Equal(t, ExitNotFound, res.Code)
	assert.False(t, fg.Waiting())
}

func TestProcessInvoker_WaitingWhileChildRuns(t *testing.T) {
	requireSh(t)
	p, fg := newTestInvoker(t)

	done := make(chan Result, 1)
	go func() {
		res, _ := p.Invoke(context.Background(), shInvocation("sleep 1"))
		done <- res
	}()

	assert.Eventually(t, func() bool { return fg.Waiting() && fg.Pid() > 0 }, 2*time.Second, 10*time.Millisecond)

	select {
	case res := <-done:
		assert.Equal(t, 0, res.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("child did not finish")
	}
	assert.False(t, fg.Waiting())
}

func TestProcessInvoker_ContextCancelKillsChild(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := p.Invoke(ctx, shInvocation("sleep 5"))
	require.NoError(t, err)
	assert.Equal(t, StateSignaled, res.State)
	assert.Equal(t, syscall.SIGKILL, res.Signal)
}

func TestProcessInvoker_CancelledBeforeStart(t *testing.T) {
	p, fg := newTestInvoker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Invoke(ctx, shInvocation("exit 0"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExitForkFailed, res.Code)
	assert.False(t, fg.Waiting())
}

func TestResumeUnknownChild(t *testing.T) {
	p, fg := newTestInvoker(t)

	_, err := p.Resume(context.Background(), 1<<22+12345)
	assert.Error(t, err)
	assert.False(t, fg.Waiting())
}

// discardChunks is a writer whose dynamic type cannot be compared.
type discardChunks []string

func (discardChunks) Write(p []byte) (int, error) { return len(p), nil }

func TestSameWriter(t *testing.T) {
	var a, b bytes.Buffer

	assert.True(t, sameWriter(&a, &a))
	assert.False(t, sameWriter(&a, &b))
	assert.False(t, sameWriter(&a, nil))
	assert.False(t, sameWriter(nil, nil))
	assert.False(t, sameWriter(&a, os.Stdout))
	assert.False(t, sameWriter(discardChunks{}, discardChunks{}))
}

func TestProcessInvoker_NonComparableWriters(t *testing.T) {
	requireSh(t)
	p, _ := newTestInvoker(t)

	inv := shInvocation("echo out; echo err >&2")
	inv.IO = IOBindings{Stdout: discardChunks{}, Stderr: discardChunks{}}

	res, err := p.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "signaled", StateSignaled.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown(9)", State(9).String())
}
