// Package jobcontrol lets the user list and resume foreground children that
// were stopped (for example with Ctrl-Z) instead of terminating.
package jobcontrol

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Neev4n/microshell/pkg/shell"
)

type Module struct {
	logger *zap.Logger
}

func New() *Module {
	return &Module{logger: zap.NewNop()}
}

func (m *Module) Name() string { return "jobcontrol" }

func (m *Module) Initialize(s *shell.Shell) error {
	m.logger = s.Logger().Named("jobcontrol")
	return nil
}

func (m *Module) Builtins() []shell.Factory {
	return []shell.Factory{
		{Name: "jobs", New: func(argv []string) shell.Builtin {
			return &jobsBuiltin{SimpleCommand: shell.SimpleCommand{Argv: argv}}
		}},
		{Name: "fg", New: func(argv []string) shell.Builtin {
			return &fgBuiltin{SimpleCommand: shell.SimpleCommand{Argv: argv}, logger: m.logger}
		}},
	}
}

type jobsBuiltin struct {
	shell.SimpleCommand
}

func (*jobsBuiltin) Name() string { return "jobs" }

func (*jobsBuiltin) Invoke(_ context.Context, s *shell.Shell) (int, error) {
	for i, child := range s.Stopped() {
		fmt.Fprintf(s.Out, "[%d] stopped  %d  %s\n", i+1, child.Pid, child.CommandLine())
	}
	return 0, nil
}

// fgBuiltin resumes a stopped child: "fg" picks the most recent one, "fg N"
// the N-th as listed by jobs.
type fgBuiltin struct {
	shell.SimpleCommand
	logger *zap.Logger
}

func (*fgBuiltin) Name() string { return "fg" }

func (c *fgBuiltin) Invoke(ctx context.Context, s *shell.Shell) (int, error) {
	args := c.Args()
	if len(args) > 1 {
		return 2, errors.New("fg: usage: fg [N]")
	}

	n := 0
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return 2, fmt.Errorf("fg: %s: no such job", args[0])
		}
		n = v
	}

	stopped := s.Stopped()
	if len(stopped) > 0 {
		idx := len(stopped) - 1
		if n > 0 && n <= len(stopped) {
			idx = n - 1
		}
		fmt.Fprintln(s.Out, stopped[idx].CommandLine())
	}

	c.logger.Debug("resuming stopped child", zap.Int("job", n))
	code, err := s.Continue(ctx, n)
	if err != nil {
		return code, fmt.Errorf("fg: %w", err)
	}
	return code, nil
}
