package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/completion"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/synchronized"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/interpreter"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tempfs"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/launcher"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
)

const (
	exitOK             = 0
	exitFailed         = 1
	exitInfrastructure = 2
	exitCancelled      = 130
)

type runOptions struct {
	shell       string
	workDir     string
	interpreter string
	helper      string
	signalDir   string
	timeout     time.Duration
	poll        time.Duration
	notify      bool
	debug       bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command in a fresh PTY and wait for it",
	Long: `Run a command in a fresh PTY session, mirror the terminal to stdout and
wait until the command reports completion or failure.

Arguments are shell-quoted individually, so they reach the command unchanged.`,
	Example: `  termsync run -- make build
  termsync run --timeout 5m -- go test ./...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := logging.New(logging.CLIConfig(runOpts.debug))
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		status, err := execute(ctx, runOpts, args[0], args[1:], cmd.OutOrStdout(), logger)
		exitStatus = exitCode(status, err)
		if exitStatus == exitInfrastructure {
			return err
		}
		if err != nil {
			logger.Warn("Command failed", zap.Error(err))
		}
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runOpts.shell, "shell", "/bin/sh", "shell started behind the PTY")
	flags.StringVar(&runOpts.workDir, "dir", "", "working directory (default current directory)")
	flags.StringVar(&runOpts.interpreter, "interpreter", "", "interpreter for the launcher script (default resolved from PATH)")
	flags.StringVar(&runOpts.helper, "helper", "", "launcher script path (default installed to the user cache)")
	flags.StringVar(&runOpts.signalDir, "signal-dir", "", "directory for signal files (default system temp dir)")
	flags.DurationVar(&runOpts.timeout, "timeout", 0, "give up waiting after this long (0 waits forever)")
	flags.DurationVar(&runOpts.poll, "poll", completion.DefaultInterval, "signal file poll interval")
	flags.BoolVar(&runOpts.notify, "notify", false, "also watch the signal file for changes")
	flags.BoolVar(&runOpts.debug, "debug", false, "debug logging on stderr")
}

// execute runs one command in a new session whose output is mirrored to out.
// The session is killed before returning.
func execute(ctx context.Context, opts runOptions, command string, args []string, out io.Writer, logger *logging.Logger) (terminal.CommandStatus, error) {
	cfg := synchronized.DefaultConfig()
	cfg.HelperScript = opts.helper
	cfg.Interpreter = opts.interpreter
	cfg.Notify = opts.notify
	if opts.poll > 0 {
		cfg.PollInterval = opts.poll
	}
	if cfg.HelperScript == "" {
		path, err := launcher.Install(launcher.DefaultDir())
		if err != nil {
			return "", err
		}
		cfg.HelperScript = path
	}

	signals, err := tempfs.New(opts.signalDir)
	if err != nil {
		return "", err
	}

	workDir := opts.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return "", err
		}
	}

	manager := terminal.NewManager(terminal.Options{Shell: opts.shell, WorkingDir: workDir}, logger.Component("terminal"))
	resolver := interpreter.New("", nil, logger.Component("interpreter"))
	provider := terminal.NewProvider(manager, signals, resolver, cfg).WithLogger(logger.Component("terminal"))
	defer provider.Close()

	session, err := provider.CreateSession(terminal.Options{Mirror: out})
	if err != nil {
		return "", err
	}
	logger.Debug("Session started", zap.String("session_id", session.ID.String()), zap.String("shell", session.Shell))

	return provider.RunCommand(ctx, session.ID.String(), command, args, true, opts.timeout)
}

func exitCode(status terminal.CommandStatus, err error) int {
	switch {
	case status == terminal.StatusCompleted:
		return exitOK
	case status == terminal.StatusCancelled:
		return exitCancelled
	case status == terminal.StatusFailed, errors.Is(err, completion.ErrCommandFailed):
		return exitFailed
	default:
		return exitInfrastructure
	}
}
