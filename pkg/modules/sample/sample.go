// Package sample is a minimal shell module, useful as a template for new
// ones.
package sample

import (
	"context"

	"github.com/Neev4n/microshell/pkg/shell"
)

type Module struct{}

func New() *Module {
	return &Module{}
}

func (*Module) Name() string { return "sample" }

func (*Module) Initialize(s *shell.Shell) error {
	s.Logger().Debug("initialized sample module")
	return nil
}

func (*Module) Builtins() []shell.Factory {
	return []shell.Factory{
		{Name: "moo", New: func(argv []string) shell.Builtin {
			return &mooBuiltin{SimpleCommand: shell.SimpleCommand{Argv: argv}}
		}},
	}
}

type mooBuiltin struct {
	shell.SimpleCommand
}

func (*mooBuiltin) Name() string { return "moo" }

func (*mooBuiltin) Invoke(_ context.Context, s *shell.Shell) (int, error) {
	s.Notify("MOO!")
	return 0, nil
}
