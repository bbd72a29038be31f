package main

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Neev4n/microshell/internal/config"
	"github.com/Neev4n/microshell/internal/lineinput"
	"github.com/Neev4n/microshell/pkg/modules/jobcontrol"
	"github.com/Neev4n/microshell/pkg/modules/sample"
	"github.com/Neev4n/microshell/pkg/shell"
)

var (
	configPath string
	verbose    bool
	command    string
	noHistory  bool

	loaded   *config.Config
	logger   *zap.Logger
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "ush",
	Short: "ush - a small interactive command interpreter",
	Long: `ush reads a line, runs it as a builtin or as a program found in the
current directory or on PATH, and reports the result.

Run without arguments to start an interactive session.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		loaded = cfg

		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its result")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not read or write the history file")
}

func buildLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
		zcfg.ErrorOutputPaths = []string{cfg.File}
	}
	return zcfg.Build()
}

func modulesFor(names []string) ([]shell.Module, error) {
	modules := make([]shell.Module, 0, len(names))
	for _, name := range names {
		switch name {
		case "jobcontrol":
			modules = append(modules, jobcontrol.New())
		case "sample":
			modules = append(modules, sample.New())
		default:
			return nil, fmt.Errorf("unknown module %q", name)
		}
	}
	return modules, nil
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	modules, err := modulesFor(loaded.Modules)
	if err != nil {
		return err
	}

	opts := []shell.Option{
		shell.WithLogger(logger),
		shell.WithPrompt(loaded.Prompt),
		shell.WithRequireExecutable(loaded.Resolver.RequireExecutable),
		shell.WithModules(modules...),
	}

	interactive := command == "" && lineinput.IsTerminal(os.Stdin)
	if interactive {
		historyFile := loaded.HistoryFile
		if noHistory {
			historyFile = ""
		}
		term, err := lineinput.NewTerminal(lineinput.Options{
			HistoryFile:  historyFile,
			HistoryLimit: loaded.HistoryLimit,
		})
		if err != nil {
			return err
		}
		defer term.Close()
		opts = append(opts, shell.WithLineReader(term))
	}

	s, err := shell.New(os.Stdin, os.Stdout, os.Stderr, opts...)
	if err != nil {
		return err
	}

	stop := s.HandleSignals(ctx)
	defer stop()

	if command != "" {
		exitCode = s.Dispatch(ctx, command)
		return nil
	}

	if interactive {
		fmt.Fprintf(os.Stdout, "Welcome to microshell, %s!\n", currentUser())
	}

	if err := s.Run(ctx); err != nil {
		return err
	}
	exitCode = 0
	return nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
