package shell

import (
	"context"
)

// Executor starts external programs and waits for them in the foreground.
type Executor interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
	Resume(ctx context.Context, pid int) (Result, error)
}

type Parser interface {
	Parse(line string) ([]string, error)
}

// LineReader renders prompt and returns the next line of input. It returns
// io.EOF at end of input and ErrInterrupted when the user pressed Ctrl-C
// while editing the line.
type LineReader interface {
	Readline(prompt string) (string, error)
}

// Module contributes builtins (and possibly hooks) to a shell. Initialize is
// called once before any of the module's builtins are registered.
type Module interface {
	Name() string
	Initialize(s *Shell) error
	Builtins() []Factory
}
