package enforce

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/reconcile"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
)

func EnforceAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	logger.Info("Starting enforce", "public_dir", cfg.PublicRoot(), "workers", cfg.Workers, "dry_run", c.Bool("dry-run"))
	s, code, err := Run(c.Context, cfg, logger, c.Bool("dry-run"), os.Stdout, os.Stderr)
	if err != nil {
		common.Fatal(logger, "enforce failed", err)
	}
	logger.Info("Enforce complete", "run_id", s.RunID, "files_changed", s.Progress.FilesChanged, "exit_code", code)
	return common.ExitWith(code)
}

// Run performs one enforce batch. The watch command calls it for every re-run.
func Run(ctx context.Context, cfg *models.SiteConfig, logger *slog.Logger, dryRun bool, stdout, stderr io.Writer) (*reconcile.Summary, int, error) {
	pl := reconcile.EnforcePipeline()
	env := reconcile.NewEnv(cfg, logger, pl)
	return common.RunBatch(ctx, env, common.Batch{
		Tool:     runlog.Enforce,
		Pipeline: pl,
		DryRun:   dryRun,
	}, stdout, stderr)
}
