package db

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/wsmith-bit/itstitanium/internal/common"
	dbpkg "github.com/wsmith-bit/itstitanium/pkg/db"
)

// OpenHistory opens the run history database named by the config.
func OpenHistory(c *cli.Context) (*dbpkg.DB, error) {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	database, err := dbpkg.Open(cfg.Resolve(cfg.HistoryDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// GetRunOrLatest returns the run named by the first argument (an ID or a
// unique ID prefix), or the latest run when no argument is given.
func GetRunOrLatest(c *cli.Context, database *dbpkg.DB) (*dbpkg.Run, error) {
	if c.NArg() == 0 {
		runs, err := database.ListRuns(c.String("tool"), 1)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest run: %w", err)
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no runs found. Run 'sitealign enforce' first")
		}
		return &runs[0], nil
	}
	return database.FindRun(c.Args().First())
}
