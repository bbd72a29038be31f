package shell

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// Command is one unit of execution built for a single input line. Invoke
// returns the command's result code once all of its work is done.
type Command interface {
	Invoke(ctx context.Context, s *Shell) (int, error)
}

// Builtin is a command implemented inside the shell process.
type Builtin interface {
	Command
	Name() string
}

// SimpleCommand holds the argument vector shared by every simple command.
// Argv[0] is the command name as typed.
type SimpleCommand struct {
	Argv []string
}

func (c SimpleCommand) Args() []string {
	if len(c.Argv) < 2 {
		return nil
	}
	return c.Argv[1:]
}

// ExternalCommand runs a program from disk through the shell's executor.
type ExternalCommand struct {
	SimpleCommand
	Path string
}

func NewExternalCommand(path string, argv []string) *ExternalCommand {
	return &ExternalCommand{
		SimpleCommand: SimpleCommand{Argv: slices.Clone(argv)},
		Path:          path,
	}
}

func (c *ExternalCommand) Invoke(ctx context.Context, s *Shell) (int, error) {
	s.logger.Debug("invoking program",
		zap.String("path", c.Path),
		zap.Strings("args", c.Args()))

	res, err := s.executor.Invoke(ctx, Invocation{
		Path: c.Path,
		Argv: c.Argv,
		Dir:  s.WorkingDir(),
		IO:   s.bindings(),
	})
	if err != nil {
		return res.Code, err
	}

	s.logger.Debug("child finished",
		zap.Int("pid", res.Pid),
		zap.Stringer("state", res.State),
		zap.Int("code", res.Code))

	if res.State == StateStopped {
		s.trackStopped(res, c.Argv)
	}
	return res.Code, nil
}
