package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/models"
	dbpkg "github.com/wsmith-bit/itstitanium/pkg/db"
	"github.com/wsmith-bit/itstitanium/pkg/reconcile"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
)

// Exit codes of the batch commands.
const (
	ExitOK       = 0
	ExitWarnings = 1
	ExitFatal    = 2
)

// NewLogger builds the JSON stderr logger; --quiet limits it to errors.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// LoadConfig reads --config, resolved against --root when relative, and
// applies command-level overrides.
func LoadConfig(c *cli.Context) (*models.SiteConfig, error) {
	path := c.String("config")
	if path == "" {
		path = models.DefaultConfigName
	}
	if root := c.String("root"); root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	cfg, err := models.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if w := c.Int("workers"); w > 0 {
		cfg.Workers = w
	}
	return cfg, nil
}

// Fatal logs a setup failure and exits with ExitFatal.
func Fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(ExitFatal)
}

// Batch describes one pipeline command.
type Batch struct {
	Tool     string
	Pipeline reconcile.Pipeline
	DryRun   bool

	// Finish, if set, adjusts the summary before it is printed and recorded.
	Finish func(s *reconcile.Summary)
}

// RunBatch loads the run log, runs b over every HTML document under the
// public root, prints the summary and records the run. Setup failures are returned; everything else
// is folded into the exit code.
func RunBatch(ctx context.Context, env *reconcile.Env, b Batch, stdout, stderr io.Writer) (*reconcile.Summary, int, error) {
	if err := b.Pipeline.Validate(); err != nil {
		return nil, ExitFatal, err
	}
	paths, err := env.Store.ListHTML()
	if err != nil {
		return nil, ExitFatal, err
	}

	var log *runlog.Log
	if !b.DryRun {
		log, err = runlog.Load(env.Config.Resolve(env.Config.LogPath))
		if err != nil {
			env.Logger.Error("Run log unreadable, this run will not be logged", "error", err)
			env.Errors = append(env.Errors, err)
			log = nil
		}
	}

	r := &reconcile.Reconciler{
		Env:      env,
		Pipeline: b.Pipeline,
		Tool:     b.Tool,
		Workers:  env.Config.Workers,
		DryRun:   b.DryRun,
	}
	s := r.Run(ctx, paths)
	if b.Finish != nil {
		b.Finish(s)
	}

	PrintSummary(stdout, stderr, s)
	if !b.DryRun {
		Record(env, log, s)
	}
	return s, s.ExitCode(env), nil
}

// PrintSummary writes the change list and counters to stdout and the
// warnings to stderr.
func PrintSummary(stdout, stderr io.Writer, s *reconcile.Summary) {
	if len(s.Changes) == 0 {
		fmt.Fprintf(stdout, "%s: no changes needed.\n", s.Tool)
	} else {
		fmt.Fprintf(stdout, "%s:\n", s.Tool)
		for _, c := range s.Changes {
			fmt.Fprintf(stdout, "  • %s\n", c)
		}
	}
	fmt.Fprintf(stdout, "%s summary: processed %d file(s) in %s, %d file(s) updated, %d fix(es), %d warning(s).\n",
		s.Tool, s.Progress.TotalFiles, runlog.FormatDuration(s.Duration),
		s.Progress.FilesChanged, s.Progress.TotalFixes, s.Progress.Warnings)

	if len(s.Warnings) > 0 {
		fmt.Fprintln(stderr, "Warnings:")
		for _, w := range s.Warnings {
			fmt.Fprintf(stderr, "  • %s\n", w)
		}
	}
}

// Record writes the run into the shared run log, when one was loaded, and the
// history database. Failures are logged and added to env.Errors.
func Record(env *reconcile.Env, log *runlog.Log, s *reconcile.Summary) {
	cfg := env.Config
	if log != nil {
		err := log.Put(s.Tool, s.Record())
		if err == nil {
			err = log.Save()
		}
		if err != nil {
			env.Logger.Error("Failed to write run log", "path", cfg.LogPath, "error", err)
			env.Errors = append(env.Errors, err)
		}
	}

	if cfg.HistoryDB == "" {
		return
	}
	database, err := dbpkg.Open(cfg.Resolve(cfg.HistoryDB))
	if err != nil {
		env.Logger.Error("Failed to open history database", "error", err)
		env.Errors = append(env.Errors, err)
		return
	}
	defer database.Close()

	run, entries, docs := s.History()
	if err := database.InsertRun(run, entries, docs); err != nil {
		env.Logger.Error("Failed to record run history", "run_id", run.RunID, "error", err)
		env.Errors = append(env.Errors, err)
		return
	}
	env.Logger.Info("Recorded run", "tool", s.Tool, "run_id", run.RunID, "entries", len(entries))
}

// ExitWith converts a non-zero code into the error urfave/cli turns into the
// process status.
func ExitWith(code int) error {
	if code == ExitOK {
		return nil
	}
	return cli.Exit("", code)
}
