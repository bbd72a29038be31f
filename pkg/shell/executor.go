package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var (
	ErrFork = errors.New("could not create a child to run the command")
	ErrExec = errors.New("failed to execute")
)

// Result codes reported when the child never ran or did not exit on its own.
const (
	ExitForkFailed    = -1
	ExitNotExecutable = 126
	ExitNotFound      = 127
	exitSignalBase    = 128
)

// State is how a waited-for child left the running state.
type State int

const (
	StateExited State = iota
	StateSignaled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateExited:
		return "exited"
	case StateSignaled:
		return "signaled"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Result describes one wake-up of the parent for a child. Code is the exit
// code for StateExited and 128+Signal otherwise.
type Result struct {
	Pid    int
	State  State
	Code   int
	Signal syscall.Signal
}

// IOBindings are the child's standard streams. *os.File values are handed to
// the child directly; any other reader or writer is connected through a pipe.
// A nil binding is connected to the null device.
type IOBindings struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type Invocation struct {
	Path string
	Argv []string
	Dir  string
	// Env defaults to the shell's own environment when nil.
	Env []string
	IO  IOBindings
}

// ProcessInvoker forks and execs programs and blocks until they exit, die
// or stop. Only one child is waited on at a time.
type ProcessInvoker struct {
	foreground *Foreground
	logger     *zap.Logger

	mu sync.Mutex
	// stdio copies of stopped children, finished when the child is resumed
	// and exits.
	pending map[int]*errgroup.Group
}

func NewProcessInvoker(fg *Foreground, logger *zap.Logger) *ProcessInvoker {
	if fg == nil {
		fg = &Foreground{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessInvoker{
		foreground: fg,
		logger:     logger,
		pending:    make(map[int]*errgroup.Group),
	}
}

func (p *ProcessInvoker) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Code: ExitForkFailed}, err
	}

	argv := inv.Argv
	if len(argv) == 0 {
		argv = []string{inv.Path}
	}
	env := inv.Env
	if env == nil {
		env = os.Environ()
	}

	streams, err := openStdio(inv.IO)
	if err != nil {
		return Result{Code: ExitForkFailed}, fmt.Errorf("%w: %v", ErrFork, err)
	}

	p.foreground.begin(0)
	pid, err := syscall.ForkExec(inv.Path, argv, &syscall.ProcAttr{
		Dir:   inv.Dir,
		Env:   env,
		Files: streams.fds,
	})
	streams.closeChildEnds()
	if err != nil {
		p.foreground.end()
		streams.closeParentEnds()
		return p.spawnFailure(inv.Path, err)
	}
	p.foreground.begin(pid)

	p.logger.Debug("spawned child, waiting for it to terminate", zap.Int("pid", pid))
	return p.await(ctx, pid, streams.start())
}

// Resume continues a stopped child and waits for it in the foreground.
func (p *ProcessInvoker) Resume(ctx context.Context, pid int) (Result, error) {
	copies := p.unpark(pid)

	p.foreground.begin(pid)
	if err := unix.Kill(pid, unix.SIGCONT); err != nil {
		p.foreground.end()
		p.park(pid, copies)
		return Result{Pid: pid, Code: ExitForkFailed}, fmt.Errorf("continue child %d: %w", pid, err)
	}

	p.logger.Debug("continued child", zap.Int("pid", pid))
	return p.await(ctx, pid, copies)
}

func (p *ProcessInvoker) await(ctx context.Context, pid int, copies *errgroup.Group) (Result, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = unix.Kill(pid, unix.SIGKILL)
	})
	res, err := waitChild(pid)
	stop()
	p.foreground.end()

	if err != nil {
		_ = copies.Wait()
		return res, err
	}

	if res.State == StateStopped {
		p.park(pid, copies)
		return res, nil
	}

	if err := copies.Wait(); err != nil {
		return res, fmt.Errorf("copy child stdio: %w", err)
	}
	return res, nil
}

func (p *ProcessInvoker) park(pid int, copies *errgroup.Group) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[pid] = copies
}

func (p *ProcessInvoker) unpark(pid int) *errgroup.Group {
	p.mu.Lock()
	defer p.mu.Unlock()

	copies, ok := p.pending[pid]
	if !ok {
		return &errgroup.Group{}
	}
	delete(p.pending, pid)
	return copies
}

func (p *ProcessInvoker) spawnFailure(path string, err error) (Result, error) {
	p.logger.Debug("spawn failed", zap.String("path", path), zap.Error(err))

	switch {
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.ENOMEM):
		return Result{Code: ExitForkFailed}, fmt.Errorf("%w: %v", ErrFork, err)
	case errors.Is(err, syscall.ENOENT):
		return Result{Code: ExitNotFound}, fmt.Errorf("%w %s: %v", ErrExec, path, err)
	default:
		return Result{Code: ExitNotExecutable}, fmt.Errorf("%w %s: %v", ErrExec, path, err)
	}
}

func waitChild(pid int) (Result, error) {
	var status unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &status, unix.WUNTRACED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Result{Pid: pid, Code: ExitForkFailed}, fmt.Errorf("wait for child %d: %w", pid, err)
		}
		return classify(pid, status), nil
	}
}

func classify(pid int, status unix.WaitStatus) Result {
	switch {
	case status.Exited():
		return Result{Pid: pid, State: StateExited, Code: status.ExitStatus()}
	case status.Signaled():
		sig := status.Signal()
		return Result{Pid: pid, State: StateSignaled, Code: exitSignalBase + int(sig), Signal: sig}
	case status.Stopped():
		sig := status.StopSignal()
		return Result{Pid: pid, State: StateStopped, Code: exitSignalBase + int(sig), Signal: sig}
	default:
		return Result{Pid: pid, State: StateExited, Code: ExitForkFailed}
	}
}

type stdio struct {
	fds        []uintptr
	childEnds  []*os.File
	parentEnds []*os.File
	copies     []func() error
}

func openStdio(b IOBindings) (*stdio, error) {
	s := &stdio{}

	if err := s.input(b.Stdin); err != nil {
		s.closeChildEnds()
		s.closeParentEnds()
		return nil, err
	}
	if err := s.output(b.Stdout); err != nil {
		s.closeChildEnds()
		s.closeParentEnds()
		return nil, err
	}

	// One pipe for both streams keeps writes to a shared writer serialized.
	if b.Stderr != nil && sameWriter(b.Stdout, b.Stderr) {
		s.fds = append(s.fds, s.fds[1])
		return s, nil
	}
	if err := s.output(b.Stderr); err != nil {
		s.closeChildEnds()
		s.closeParentEnds()
		return nil, err
	}
	return s, nil
}

func (s *stdio) input(r io.Reader) error {
	switch r := r.(type) {
	case nil:
		f, err := os.Open(os.DevNull)
		if err != nil {
			return err
		}
		s.childEnds = append(s.childEnds, f)
		s.fds = append(s.fds, f.Fd())
	case *os.File:
		s.fds = append(s.fds, r.Fd())
	default:
		pr, pw, err := os.Pipe()
		if err != nil {
			return err
		}
		s.childEnds = append(s.childEnds, pr)
		s.parentEnds = append(s.parentEnds, pw)
		s.fds = append(s.fds, pr.Fd())
		s.copies = append(s.copies, func() error {
			_, err := io.Copy(pw, r)
			pw.Close()
			if errors.Is(err, syscall.EPIPE) {
				return nil
			}
			return err
		})
	}
	return nil
}

func (s *stdio) output(w io.Writer) error {
	switch w := w.(type) {
	case nil:
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		s.childEnds = append(s.childEnds, f)
		s.fds = append(s.fds, f.Fd())
	case *os.File:
		s.fds = append(s.fds, w.Fd())
	default:
		pr, pw, err := os.Pipe()
		if err != nil {
			return err
		}
		s.childEnds = append(s.childEnds, pw)
		s.parentEnds = append(s.parentEnds, pr)
		s.fds = append(s.fds, pw.Fd())
		s.copies = append(s.copies, func() error {
			_, err := io.Copy(w, pr)
			pr.Close()
			return err
		})
	}
	return nil
}

func (s *stdio) start() *errgroup.Group {
	g := &errgroup.Group{}
	for _, copyFn := range s.copies {
		g.Go(copyFn)
	}
	return g
}

func (s *stdio) closeChildEnds() {
	for _, f := range s.childEnds {
		f.Close()
	}
	s.childEnds = nil
}

func (s *stdio) closeParentEnds() {
	for _, f := range s.parentEnds {
		f.Close()
	}
	s.parentEnds = nil
}

// sameWriter reports whether a and b are the same writer. Writers of
// non-comparable dynamic types are never the same.
func sameWriter(a, b io.Writer) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
