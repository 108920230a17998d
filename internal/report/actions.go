package report

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/pkg/jsonld"
	"github.com/wsmith-bit/itstitanium/pkg/report"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

func ReportAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	faq, err := jsonld.LoadFAQ(cfg.Resolve(cfg.FAQBank))
	if err != nil {
		logger.Warn("FAQ bank unreadable, expecting zero entries", "error", err)
	}

	store := storage.New(cfg.PublicRoot())
	paths, err := store.ListHTML()
	if err != nil {
		common.Fatal(logger, "failed to list documents", err)
	}
	logger.Info("Building alignment report", "files", len(paths))

	log, err := runlog.Load(cfg.Resolve(cfg.LogPath))
	if err != nil {
		logger.Warn("Run log unreadable, reporting no runs", "error", err)
	}

	b := &report.Builder{
		Config:   cfg,
		Store:    store,
		FAQCount: len(faq),
		Log:      log,
		Now:      time.Now(),
	}
	r, err := b.Build(paths)
	if err != nil {
		common.Fatal(logger, "failed to build report", err)
	}
	if err := r.Write(os.Stdout, c.String("format")); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if c.Bool("strict") && r.Failed() > 0 {
		return common.ExitWith(common.ExitWarnings)
	}
	return nil
}
