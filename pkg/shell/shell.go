package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPrompt = "ush >> "

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrIsDirectory     = errors.New("is a directory")
	ErrExitRequested   = errors.New("exit already requested")
	ErrInterrupted     = errors.New("interrupted")
)

// Phase is the position of the shell in its read, parse, resolve, invoke
// cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseReadingInput
	PhaseParsing
	PhaseResolving
	PhaseInvoking
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReadingInput:
		return "reading"
	case PhaseParsing:
		return "parsing"
	case PhaseResolving:
		return "resolving"
	case PhaseInvoking:
		return "invoking"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(p))
	}
}

type Shell struct {
	in    LineReader
	stdin io.Reader
	Out   io.Writer
	Err   io.Writer

	name       string
	prompt     string
	id         string
	home       string
	workingDir string
	lastResult int

	searchPath        []string
	searchPathSet     bool
	homeSet           bool
	workingDirSet     bool
	requireExecutable bool

	registry *Registry
	resolver *Resolver
	executor Executor
	parser   Parser
	modules  []Module
	stopped  []StoppedChild

	fg            *Foreground
	exitRequested atomic.Bool
	exitCh        chan struct{}
	phase         atomic.Int32

	logger *zap.Logger
}

type Option func(*Shell)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Shell) { s.logger = logger }
}

// WithLineReader replaces the plain buffered reader built from New's reader.
func WithLineReader(r LineReader) Option {
	return func(s *Shell) { s.in = r }
}

func WithExecutor(e Executor) Option {
	return func(s *Shell) { s.executor = e }
}

func WithPrompt(prompt string) Option {
	return func(s *Shell) { s.prompt = prompt }
}

func WithHome(dir string) Option {
	return func(s *Shell) {
		s.home = dir
		s.homeSet = true
	}
}

func WithWorkingDir(dir string) Option {
	return func(s *Shell) {
		s.workingDir = dir
		s.workingDirSet = true
	}
}

func WithSearchPath(dirs []string) Option {
	return func(s *Shell) {
		s.searchPath = dirs
		s.searchPathSet = true
	}
}

func WithRequireExecutable(require bool) Option {
	return func(s *Shell) { s.requireExecutable = require }
}

func WithModules(modules ...Module) Option {
	return func(s *Shell) { s.modules = append(s.modules, modules...) }
}

// New builds a shell reading commands from reader. If reader is an *os.File
// children inherit it as their standard input.
func New(reader io.Reader, out, errw io.Writer, opts ...Option) (*Shell, error) {
	s := &Shell{
		Out:      out,
		Err:      errw,
		name:     "ush",
		prompt:   DefaultPrompt,
		id:       uuid.NewString(),
		registry: NewRegistry(),
		parser:   NewDefaultParser(),
		fg:       &Foreground{},
		exitCh:   make(chan struct{}),
		logger:   zap.NewNop(),
	}

	switch r := reader.(type) {
	case nil:
	case *os.File:
		s.in = &fileReader{f: r, out: out}
		s.stdin = r
	default:
		s.in = &plainReader{in: bufio.NewReader(r), out: out}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.in == nil {
		return nil, errors.New("no input source")
	}

	s.logger = s.logger.With(zap.String("session", s.id))

	if !s.homeSet {
		s.home = currentHome()
	}
	if !s.workingDirSet {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(s.Err, "%s: Failed to get the current working directory.\n", s.name)
			fmt.Fprintf(s.Err, "%s: Defaulting to `~'.\n", s.name)
			wd = ExpandTilde("~", s.home)
		}
		s.workingDir = wd
	}
	if !s.searchPathSet {
		s.searchPath = SplitSearchPath(os.Getenv("PATH"))
	}

	s.resolver = NewResolver(s.searchPath)
	s.resolver.RequireExecutable = s.requireExecutable

	if s.executor == nil {
		s.executor = NewProcessInvoker(s.fg, s.logger.Named("executor"))
	}

	modules := append([]Module{coreModule{}}, s.modules...)
	s.modules = nil
	for _, m := range modules {
		if err := s.LoadModule(m); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// LoadModule initializes m and registers its builtins.
func (s *Shell) LoadModule(m Module) error {
	if err := m.Initialize(s); err != nil {
		return fmt.Errorf("initialize module %s: %w", m.Name(), err)
	}
	for _, f := range m.Builtins() {
		if err := s.registry.Register(f); err != nil {
			s.logger.Error("module registered a taken builtin name",
				zap.String("module", m.Name()),
				zap.String("builtin", f.Name),
				zap.Error(err))
			return fmt.Errorf("load module %s: %w", m.Name(), err)
		}
	}
	s.modules = append(s.modules, m)
	s.logger.Debug("loaded module", zap.String("module", m.Name()))
	return nil
}

type lineResult struct {
	line string
	err  error
}

// Run drives the read, parse, resolve, invoke cycle until exit is requested,
// the input ends or ctx is cancelled. A read blocked at the prompt does not
// delay either of the first two.
func (s *Shell) Run(ctx context.Context) error {
	defer s.setPhase(PhaseTerminated)

	for {
		if s.exitRequested.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setPhase(PhaseReadingInput)
		prompt := s.Prompt()
		lines := make(chan lineResult, 1)
		go func() {
			line, err := s.in.Readline(prompt)
			lines <- lineResult{line: line, err: err}
		}()

		var res lineResult
		select {
		case res = <-lines:
		case <-s.exitCh:
			s.logger.Debug("exit requested while reading input")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		line, err := res.line, res.err

		if errors.Is(err, ErrInterrupted) {
			s.Interrupt()
			continue
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.Out)
			return nil
		}

		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}

		s.Dispatch(ctx, line)
	}
}

// Dispatch runs one line of input and returns its result code. Failures are
// reported on the error stream.
func (s *Shell) Dispatch(ctx context.Context, line string) int {
	defer s.setPhase(PhaseIdle)

	if strings.TrimSpace(line) == "" {
		return 0
	}

	s.setPhase(PhaseParsing)
	argv, err := s.parse(line)
	if err != nil {
		return s.fail(err, 2)
	}
	if len(argv) == 0 {
		return 0
	}

	s.setPhase(PhaseResolving)
	cmd, err := s.resolve(argv)
	if err != nil {
		return s.fail(err, resolveCode(err))
	}

	s.setPhase(PhaseInvoking)
	code, err := cmd.Invoke(ctx, s)
	if err != nil {
		s.report(err)
	}
	s.lastResult = code
	return code
}

func (s *Shell) parse(line string) ([]string, error) {
	tokens, err := s.parser.Parse(line)
	if err != nil {
		return nil, err
	}
	return expandAll(tokens, s.home), nil
}

func (s *Shell) resolve(argv []string) (Command, error) {
	name := argv[0]

	if s.registry.IsRegistered(name) {
		b, err := s.registry.Build(argv)
		if err != nil {
			s.logger.Error("registered builtin could not be built", zap.String("builtin", name), zap.Error(err))
			return nil, err
		}
		return b, nil
	}

	path, ok := s.resolver.Resolve(name, s.workingDir)
	if !ok {
		return nil, fmt.Errorf("%w: [%s]", ErrCommandNotFound, name)
	}
	if isDirectory(path) {
		return nil, fmt.Errorf("cannot execute: %s: %w", name, ErrIsDirectory)
	}

	return NewExternalCommand(path, argv), nil
}

func resolveCode(err error) int {
	switch {
	case errors.Is(err, ErrCommandNotFound):
		return ExitNotFound
	case errors.Is(err, ErrIsDirectory):
		return ExitNotExecutable
	default:
		return 1
	}
}

func (s *Shell) fail(err error, code int) int {
	s.report(err)
	s.lastResult = code
	return code
}

func (s *Shell) report(err error) {
	fmt.Fprintf(s.Err, "%s: %v\n", s.name, err)
}

// Notify writes a message from the shell itself to standard output.
func (s *Shell) Notify(format string, args ...any) {
	fmt.Fprintf(s.Out, "%s: %s\n", s.name, fmt.Sprintf(format, args...))
}

// RequestExit asks the loop to stop at its next check. Asking twice is a bug
// in the caller and is reported as ErrExitRequested.
func (s *Shell) RequestExit() error {
	if !s.exitRequested.CompareAndSwap(false, true) {
		s.logger.Error("exit requested twice")
		return ErrExitRequested
	}
	close(s.exitCh)
	return nil
}

func (s *Shell) ExitRequested() bool {
	return s.exitRequested.Load()
}

// Prompt is the text shown before each line. A nonzero result of the
// previous command is shown in brackets.
func (s *Shell) Prompt() string {
	if s.lastResult != 0 {
		return fmt.Sprintf("(%s) [%d] %s", s.workingDir, s.lastResult, s.prompt)
	}
	return fmt.Sprintf("(%s) %s", s.workingDir, s.prompt)
}

func (s *Shell) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Shell) setPhase(p Phase) {
	if s.Phase() == PhaseTerminated {
		return
	}
	s.phase.Store(int32(p))
}

func (s *Shell) WorkingDir() string {
	return s.workingDir
}

func (s *Shell) SetWorkingDir(dir string) {
	s.logger.Debug("working directory changed", zap.String("from", s.workingDir), zap.String("to", dir))
	s.workingDir = dir
}

func (s *Shell) Home() string {
	return s.home
}

func (s *Shell) Name() string {
	return s.name
}

func (s *Shell) LastResult() int {
	return s.lastResult
}

// Waiting reports whether a foreground child is currently being waited on.
func (s *Shell) Waiting() bool {
	return s.fg.Waiting()
}

func (s *Shell) Logger() *zap.Logger {
	return s.logger
}

func (s *Shell) Registry() *Registry {
	return s.registry
}

func (s *Shell) Resolver() *Resolver {
	return s.resolver
}

func (s *Shell) bindings() IOBindings {
	return IOBindings{
		Stdin:  s.stdin,
		Stdout: s.Out,
		Stderr: s.Err,
	}
}

func currentHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}

type plainReader struct {
	in  *bufio.Reader
	out io.Writer
}

func (r *plainReader) Readline(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)

	line, err := r.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// fileReader reads a line one byte at a time. Bytes after the newline stay in
// the file for the children that inherit it as standard input.
type fileReader struct {
	f   *os.File
	out io.Writer
}

func (r *fileReader) Readline(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)

	var line []byte
	b := make([]byte, 1)
	for {
		n, err := r.f.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			line = append(line, b[0])
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return strings.TrimRight(string(line), "\r"), nil
}
