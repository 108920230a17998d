package headassets

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/pkg/reconcile"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
)

func HeadAssetsAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	logger.Info("Starting head-assets", "public_dir", cfg.PublicRoot(), "icons", len(cfg.Icons), "check_assets", cfg.CheckAssets)
	pl := reconcile.HeadAssetsPipeline()
	env := reconcile.NewEnv(cfg, logger, pl)
	_, code, err := common.RunBatch(c.Context, env, common.Batch{
		Tool:     runlog.HeadAssets,
		Pipeline: pl,
		DryRun:   c.Bool("dry-run"),
	}, os.Stdout, os.Stderr)
	if err != nil {
		common.Fatal(logger, "head-assets failed", err)
	}
	return common.ExitWith(code)
}
