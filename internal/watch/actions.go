package watch

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/internal/enforce"
	"github.com/wsmith-bit/itstitanium/pkg/watch"
)

func WatchAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	root := cfg.PublicRoot()
	inputs := []string{cfg.Resolve(cfg.Template), cfg.Resolve(cfg.FAQBank)}

	run := func(ctx context.Context) map[string]string {
		s, code, err := enforce.Run(ctx, cfg, logger, false, os.Stdout, os.Stderr)
		if err != nil {
			logger.Error("Enforce run failed", "error", err)
			return nil
		}
		logger.Info("Enforce run finished", "run_id", s.RunID, "exit_code", code)
		hashes := make(map[string]string, len(s.Results))
		for _, r := range s.Results {
			if r.Hash != "" {
				hashes[filepath.Join(root, filepath.FromSlash(r.Rel))] = r.Hash
			}
		}
		return hashes
	}

	w, err := watch.New(root, inputs, c.Duration("debounce"), logger, run)
	if err != nil {
		common.Fatal(logger, "failed to start watcher", err)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching for changes", "root", root, "debounce", c.Duration("debounce").String())
	return w.Run(ctx)
}
