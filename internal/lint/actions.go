package lint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/pkg/lint"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

func LintAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		common.Fatal(logger, "failed to load config", err)
	}

	checks, err := lint.Select(c.StringSlice("check"))
	if err != nil {
		return err
	}

	store := storage.New(cfg.PublicRoot())
	paths, err := store.ListHTML()
	if err != nil {
		common.Fatal(logger, "failed to list documents", err)
	}

	l := &lint.Linter{Config: cfg, Store: store, Files: paths, Logger: logger}
	issues, err := l.Run(c.Context, checks)
	if err != nil {
		common.Fatal(logger, "lint failed", err)
	}
	logger.Info("Lint complete", "checks", len(checks), "files", len(paths), "issues", len(issues))

	switch c.String("format") {
	case "json":
		data, err := json.MarshalIndent(issues, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(issues)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		if len(issues) == 0 {
			fmt.Printf("lint: %d check(s) passed.\n", len(checks))
		}
		for _, issue := range issues {
			fmt.Fprintln(os.Stderr, "- "+issue.String())
		}
	}

	if len(issues) > 0 {
		return common.ExitWith(common.ExitWarnings)
	}
	return nil
}
