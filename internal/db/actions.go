package db

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	dbpkg "github.com/wsmith-bit/itstitanium/pkg/db"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func RunsAction(c *cli.Context) error {
	database, err := OpenHistory(c)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(c.String("tool"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %-16s %-9s %-7s %-8s %-6s %-8s\n",
		"ID", "Tool", "Started", "Duration", "Files", "Changed", "Fixes", "Warnings")
	fmt.Println(strings.Repeat("-", 84))

	for _, r := range runs {
		fmt.Printf("%-10s %-12s %-16s %-9s %-7s %-8d %-6d %-8d\n",
			shortID(r.RunID),
			r.Tool,
			humanize.Time(r.StartedAt),
			runlog.FormatDuration(time.Duration(r.DurationMs)*time.Millisecond),
			humanize.Comma(int64(r.TotalFiles)),
			r.FilesChanged,
			r.TotalFixes,
			r.Warnings,
		)
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	fmt.Printf("\nTip: Use 'sitealign runs show <id>' to see changes and warnings\n")

	return nil
}

// RunAction shows the changes and warnings of one run.
func RunAction(c *cli.Context) error {
	database, err := OpenHistory(c)
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := GetRunOrLatest(c, database)
	if err != nil {
		return err
	}
	entries, err := database.GetRunEntries(run.RunID)
	if err != nil {
		return fmt.Errorf("failed to get run entries: %w", err)
	}

	fmt.Printf("Run %s\n", run.RunID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Tool:      %s\n", run.Tool)
	fmt.Printf("Started:   %s (%s)\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.StartedAt))
	fmt.Printf("Duration:  %s\n", runlog.FormatDuration(time.Duration(run.DurationMs)*time.Millisecond))
	fmt.Printf("Files:     %d total (%d updated)\n", run.TotalFiles, run.FilesChanged)
	fmt.Printf("Fixes:     %d\n", run.TotalFixes)
	fmt.Printf("Warnings:  %d\n", run.Warnings)

	var changes, warnings []dbpkg.Entry
	for _, e := range entries {
		if e.Kind == dbpkg.EntryWarning {
			warnings = append(warnings, e)
		} else {
			changes = append(changes, e)
		}
	}
	if len(changes) > 0 {
		fmt.Printf("\nChanges (%d):\n", len(changes))
		fmt.Println(strings.Repeat("-", 60))
		for _, e := range changes {
			fmt.Printf("  %s: %s\n", e.File, e.Message)
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(warnings))
		fmt.Println(strings.Repeat("-", 60))
		for _, e := range warnings {
			fmt.Printf("  %s: %s\n", e.File, e.Message)
		}
	}
	return nil
}

// DriftAction lists documents whose content changed since the last run
// recorded them, plus documents no run has seen.
func DriftAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	database, err := dbpkg.Open(cfg.Resolve(cfg.HistoryDB))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	store := storage.New(cfg.PublicRoot())
	drift, err := FindDrift(database, store)
	if err != nil {
		return err
	}
	logger.Info("Drift check complete", "root", filepath.Clean(cfg.PublicRoot()), "drifted", len(drift))

	if len(drift) == 0 {
		fmt.Println("No drift: every document matches its last recorded run")
		return nil
	}
	for _, d := range drift {
		fmt.Printf("  %-9s %s\n", d.State, d.Path)
	}
	fmt.Printf("\nTotal: %d document(s) drifted. Run 'sitealign enforce' to realign.\n", len(drift))
	return common.ExitWith(common.ExitWarnings)
}

// Drift is one document whose state differs from the history.
type Drift struct {
	Path  string
	State string // "modified", "new" or "missing"
}

// FindDrift compares the documents on disk with the recorded hashes.
func FindDrift(database *dbpkg.DB, store *storage.Storage) ([]Drift, error) {
	recorded, err := database.ListDocuments()
	if err != nil {
		return nil, err
	}
	paths, err := store.ListHTML()
	if err != nil {
		return nil, err
	}

	known := make(map[string]string, len(recorded))
	for _, d := range recorded {
		known[d.Path] = d.ContentHash
	}
	onDisk := make(map[string]bool, len(paths))

	var out []Drift
	for _, rel := range paths {
		onDisk[rel] = true
		hash, ok := known[rel]
		if !ok {
			out = append(out, Drift{Path: rel, State: "new"})
			continue
		}
		data, err := store.ReadFile(rel)
		if err != nil {
			return nil, err
		}
		if dbpkg.ContentHash(data) != hash {
			out = append(out, Drift{Path: rel, State: "modified"})
		}
	}
	for _, d := range recorded {
		if !onDisk[d.Path] {
			out = append(out, Drift{Path: d.Path, State: "missing"})
		}
	}
	return out, nil
}
