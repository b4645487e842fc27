package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amirbrooks/tasker-board/internal/rank"
	"github.com/amirbrooks/tasker-board/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

type GlobalFlags struct {
	Root    string
	TZ      string
	Verbose bool
}

// app is the state shared by every command of one invocation.
type app struct {
	gf     GlobalFlags
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
	ws     *store.Workspace
	now    func() time.Time
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, func() time.Time { return time.Now() })
}

func run(args []string, out, errOut io.Writer, now func() time.Time) int {
	a := &app{out: out, errOut: errOut, now: now}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err == nil {
		return ExitOK
	}
	code := exitCode(err)
	var conflict *store.MatchConflictError
	if errors.As(err, &conflict) {
		fmt.Fprintf(errOut, "tasker-board: ambiguous selector (%s):\n", conflict.Reason)
		for _, it := range conflict.Matches {
			fmt.Fprintf(errOut, "  %s  %s\n", it.ID, it.Name)
		}
		return code
	}
	fmt.Fprintln(errOut, "tasker-board:", err)
	return code
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsage
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrConflict):
		return ExitConflict
	case errors.Is(err, store.ErrInvalid), errors.Is(err, rank.ErrInvalidRank), errors.Is(err, rank.ErrInvalidRange):
		return ExitUsage
	default:
		return ExitInternal
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tasker-board",
		Short:         "Multi-view task board backed by a plain-file docstore",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	registerGlobalFlags(root.PersistentFlags(), &a.gf)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: ExitUsage, err: err}
	})

	root.AddCommand(
		a.initCommand(),
		a.labelCommand(),
		a.addCommand(),
		a.editCommand(),
		a.moveCommand(),
		a.relabelCommand(),
		a.doneCommand(),
		a.reopenCommand(),
		a.trashCommand(),
		a.pinCommand(),
		a.viewCommand(),
	)
	return root
}

func registerGlobalFlags(fs *pflag.FlagSet, gf *GlobalFlags) {
	fs.StringVar(&gf.Root, "root", "", "Store root (default: ~/.tasker-board or TASKER_BOARD_ROOT)")
	fs.StringVar(&gf.TZ, "tz", "", "IANA time zone for day boundaries (default: config time_zone, else UTC)")
	fs.BoolVarP(&gf.Verbose, "verbose", "v", false, "Debug logging to stderr")
}

func (a *app) setup() error {
	logger := newLogger(a.gf.Verbose, a.errOut)
	a.logger = logger

	ws, err := store.Open(resolveRoot(a.gf.Root), logger)
	if err != nil {
		return err
	}
	a.ws = ws
	return nil
}

func resolveRoot(flagRoot string) string {
	if strings.TrimSpace(flagRoot) != "" {
		return flagRoot
	}
	if env := strings.TrimSpace(os.Getenv("TASKER_BOARD_ROOT")); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tasker-board"
	}
	return filepath.Join(home, ".tasker-board")
}

// newLogger logs warnings and errors in production form; --verbose switches
// to the development encoder at debug level.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(cfg)
	if verbose {
		level = zapcore.DebugLevel
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Named("tasker-board")
}

// location resolves --tz, then the configured time zone.
func (a *app) location() (*time.Location, error) {
	if tz := strings.TrimSpace(a.gf.TZ); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, usageError("--tz %q: %v", tz, err)
		}
		return loc, nil
	}
	return a.ws.Config().Location()
}
