package shell

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

var ErrNoSuchJob = errors.New("no such job")

// StoppedChild is a foreground child that was suspended rather than
// terminated. It stays referenced until it is continued.
type StoppedChild struct {
	Pid    int
	Argv   []string
	Signal syscall.Signal
}

func (c StoppedChild) CommandLine() string {
	return strings.Join(c.Argv, " ")
}

func (s *Shell) trackStopped(res Result, argv []string) {
	child := StoppedChild{Pid: res.Pid, Argv: slices.Clone(argv), Signal: res.Signal}
	s.stopped = append(s.stopped, child)

	s.logger.Debug("child stopped", zap.Int("pid", res.Pid), zap.Stringer("signal", res.Signal))
	fmt.Fprintf(s.Out, "\n[%d] stopped  %s\n", len(s.stopped), child.CommandLine())
}

// Stopped lists the suspended children, oldest first.
func (s *Shell) Stopped() []StoppedChild {
	return slices.Clone(s.stopped)
}

// Continue resumes the n-th stopped child (1-based, 0 for the most recent)
// and waits for it in the foreground.
func (s *Shell) Continue(ctx context.Context, n int) (int, error) {
	if len(s.stopped) == 0 {
		return 1, fmt.Errorf("%w: no stopped children", ErrNoSuchJob)
	}

	idx := n - 1
	if n == 0 {
		idx = len(s.stopped) - 1
	}
	if idx < 0 || idx >= len(s.stopped) {
		return 1, fmt.Errorf("%w: %d", ErrNoSuchJob, n)
	}

	child := s.stopped[idx]
	s.stopped = slices.Delete(s.stopped, idx, idx+1)

	res, err := s.executor.Resume(ctx, child.Pid)
	if err != nil {
		return res.Code, err
	}
	if res.State == StateStopped {
		s.trackStopped(res, child.Argv)
	}
	return res.Code, nil
}
