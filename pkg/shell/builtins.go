package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// coreModule provides the builtins every shell has.
type coreModule struct{}

func (coreModule) Name() string { return "core" }

func (coreModule) Initialize(*Shell) error { return nil }

func (coreModule) Builtins() []Factory {
	return []Factory{
		{Name: "exit", New: func(argv []string) Builtin { return &exitBuiltin{SimpleCommand{argv}} }},
		{Name: "pwd", New: func(argv []string) Builtin { return &pwdBuiltin{SimpleCommand{argv}} }},
		{Name: "cd", New: func(argv []string) Builtin { return &cdBuiltin{SimpleCommand{argv}} }},
		{Name: "echo", New: func(argv []string) Builtin { return &echoBuiltin{SimpleCommand{argv}} }},
		{Name: "type", New: func(argv []string) Builtin { return &typeBuiltin{SimpleCommand{argv}} }},
	}
}

type exitBuiltin struct{ SimpleCommand }

func (*exitBuiltin) Name() string { return "exit" }

func (*exitBuiltin) Invoke(_ context.Context, s *Shell) (int, error) {
	if err := s.RequestExit(); err != nil {
		return 1, err
	}
	s.Notify("Bye!")
	return 0, nil
}

type pwdBuiltin struct{ SimpleCommand }

func (*pwdBuiltin) Name() string { return "pwd" }

func (*pwdBuiltin) Invoke(_ context.Context, s *Shell) (int, error) {
	fmt.Fprintln(s.Out, s.WorkingDir())
	return 0, nil
}

type cdBuiltin struct{ SimpleCommand }

func (*cdBuiltin) Name() string { return "cd" }

func (c *cdBuiltin) Invoke(_ context.Context, s *Shell) (int, error) {
	args := c.Args()

	var target string
	switch len(args) {
	case 0:
		target = s.Home()
		if target == "" {
			return 1, errors.New("cd: HOME not set")
		}
	case 1:
		target = args[0]
	default:
		return 2, errors.New("cd: too many arguments")
	}

	dir := target
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.WorkingDir(), dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsPermission(err) {
			return 1, fmt.Errorf("cd: %s: Permission denied", target)
		}
		return 1, fmt.Errorf("cd: no such directory: %s", target)
	}
	if !info.IsDir() {
		return 1, fmt.Errorf("cd: not a directory: %s", target)
	}

	s.SetWorkingDir(filepath.Clean(dir))
	return 0, nil
}

type echoBuiltin struct{ SimpleCommand }

func (*echoBuiltin) Name() string { return "echo" }

func (c *echoBuiltin) Invoke(_ context.Context, s *Shell) (int, error) {
	fmt.Fprintln(s.Out, strings.Join(c.Args(), " "))
	return 0, nil
}

type typeBuiltin struct{ SimpleCommand }

func (*typeBuiltin) Name() string { return "type" }

func (c *typeBuiltin) Invoke(_ context.Context, s *Shell) (int, error) {
	args := c.Args()
	if len(args) == 0 {
		return 2, errors.New("type: usage: type NAME")
	}

	code := 0
	for _, name := range args {
		if s.registry.IsRegistered(name) {
			fmt.Fprintln(s.Out, name, "is a shell builtin")
			continue
		}

		if path, ok := s.resolver.Resolve(name, s.WorkingDir()); ok {
			fmt.Fprintln(s.Out, name, "is", path)
			continue
		}

		fmt.Fprintln(s.Out, name+": not found")
		code = 1
	}
	return code, nil
}
