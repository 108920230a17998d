package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	"github.com/wsmith-bit/itstitanium/internal/db"
	"github.com/wsmith-bit/itstitanium/internal/enforce"
	"github.com/wsmith-bit/itstitanium/internal/headassets"
	"github.com/wsmith-bit/itstitanium/internal/inject"
	"github.com/wsmith-bit/itstitanium/internal/lint"
	"github.com/wsmith-bit/itstitanium/internal/report"
	"github.com/wsmith-bit/itstitanium/internal/watch"
	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/help"
	watchpkg "github.com/wsmith-bit/itstitanium/pkg/watch"
)

func main() {
	dryRunFlag := &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Report what would change without writing files or recording the run",
	}
	workersFlag := &cli.IntFlag{
		Name:  "workers",
		Usage: "Number of concurrent document workers (overrides the config)",
	}
	formatFlag := &cli.StringFlag{
		Name:  "format",
		Value: "text",
		Usage: "Output format: text, json or yaml",
	}
	toolFlag := &cli.StringFlag{
		Name:  "tool",
		Usage: "Only show runs of this tool (enforce, head-assets, inject)",
	}

	app := &cli.App{
		Name:  "sitealign",
		Usage: "Keep the head metadata and shared widgets of a static site aligned",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   models.DefaultConfigName,
				Usage:   "Path to the site config (YAML)",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root that relative config paths resolve against",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "enforce",
				Usage:  "Align canonical, social, robots and JSON-LD metadata on every page",
				Flags:  []cli.Flag{dryRunFlag, workersFlag},
				Action: enforce.EnforceAction,
			},
			{
				Name:   "head-assets",
				Usage:  "Refresh icons and social tags without rebuilding the JSON-LD graph",
				Flags:  []cli.Flag{dryRunFlag, workersFlag},
				Action: headassets.HeadAssetsAction,
			},
			{
				Name:   "inject",
				Usage:  "Sync the disclosure section and FAQ list into page bodies",
				Flags:  []cli.Flag{dryRunFlag, workersFlag},
				Action: inject.InjectAction,
			},
			{
				Name:  "report",
				Usage: "Print the state of alignment for every page and the latest runs",
				Flags: []cli.Flag{
					formatFlag,
					&cli.BoolFlag{Name: "strict", Usage: "Exit non-zero when any check fails"},
				},
				Action: report.ReportAction,
			},
			{
				Name:  "lint",
				Usage: "Run content checks (json, affiliate-rel, image-alts, speakable, html-lang)",
				Flags: []cli.Flag{
					formatFlag,
					&cli.StringSliceFlag{Name: "check", Usage: "Run only the named check (repeatable)"},
				},
				Action: lint.LintAction,
			},
			{
				Name:  "runs",
				Usage: "Inspect the run history",
				Flags: []cli.Flag{
					toolFlag,
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of runs to list"},
				},
				Action: db.RunsAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Show the changes and warnings of a run (latest when no ID is given)",
						ArgsUsage: "[run-id]",
						Flags:     []cli.Flag{toolFlag},
						Action:    db.RunAction,
					},
					{
						Name:   "drift",
						Usage:  "List documents edited since the last recorded run",
						Action: db.DriftAction,
					},
				},
			},
			{
				Name:  "watch",
				Usage: "Re-run enforce whenever pages, the template or the FAQ bank change",
				Flags: []cli.Flag{
					workersFlag,
					&cli.DurationFlag{Name: "debounce", Value: watchpkg.DefaultDebounce, Usage: "Quiet period before a re-run"},
				},
				Action: watch.WatchAction,
			},
			{
				Name:  "quickstart",
				Usage: "Print a YAML cheat sheet of commands, files and exit codes",
				Action: func(c *cli.Context) error {
					fmt.Print(help.ColdstartYAML)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(common.ExitFatal)
	}
}
