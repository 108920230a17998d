package inject

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/pkg/inject"
	"github.com/wsmith-bit/itstitanium/pkg/reconcile"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
)

func InjectAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	pl := reconcile.InjectPipeline()
	env := reconcile.NewEnv(cfg, logger, pl)
	env.LoadDisclosure()
	logger.Info("Starting inject", "public_dir", cfg.PublicRoot(), "faq_entries", len(env.FAQ), "disclosure", env.Disclosure != "")

	_, code, err := common.RunBatch(c.Context, env, common.Batch{
		Tool:     runlog.Inject,
		Pipeline: pl,
		DryRun:   c.Bool("dry-run"),
		Finish:   countWidgets,
	}, os.Stdout, os.Stderr)
	if err != nil {
		common.Fatal(logger, "inject failed", err)
	}
	return common.ExitWith(code)
}

// countWidgets adds the disclosure and FAQ counters to the run progress.
func countWidgets(s *reconcile.Summary) {
	var fixes [][]string
	for _, r := range s.Results {
		if r.Changed {
			fixes = append(fixes, r.Fixes)
		}
	}
	disclosure, faq := inject.Counts(fixes)
	s.Progress.DisclosureUpdates = &disclosure
	s.Progress.FAQUpdates = &faq
}
