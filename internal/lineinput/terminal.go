// Package lineinput reads command lines from an interactive terminal with
// line editing and a persistent history.
package lineinput

import (
	"errors"
	"fmt"
	"os"

	"github.com/chzyer/readline"

	"github.com/Neev4n/microshell/pkg/shell"
)

type Options struct {
	// HistoryFile is where entered lines are kept between sessions. Empty
	// keeps history in memory only.
	HistoryFile  string
	HistoryLimit int
}

// instance is the subset of *readline.Instance the terminal uses.
type instance interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	Close() error
}

// Terminal is a shell.LineReader backed by readline.
type Terminal struct {
	rl instance
}

var _ shell.LineReader = (*Terminal)(nil)

func NewTerminal(opts Options) (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     opts.HistoryFile,
		HistoryLimit:    opts.HistoryLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing readline: %w", err)
	}
	return &Terminal{rl: rl}, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return readline.IsTerminal(int(f.Fd()))
}

func (t *Terminal) Readline(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)

	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", shell.ErrInterrupted
	}
	return line, err
}

func (t *Terminal) Close() error {
	return t.rl.Close()
}
