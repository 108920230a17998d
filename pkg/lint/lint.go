// Package lint runs read-only content checks over the site: JSON sanity,
// affiliate link attributes, the image alt map, blog speakable markers and
// the declared page language.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

// Issue is one finding.
type Issue struct {
	Check   string `json:"check" yaml:"check"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	if i.File == "" {
		return fmt.Sprintf("[%s] %s", i.Check, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Check, i.File, i.Message)
}

// Linter holds the site being checked. Files are HTML paths relative to the
// public root.
type Linter struct {
	Config *models.SiteConfig
	Store  *storage.Storage
	Files  []string
	Logger *slog.Logger
}

// Check is a named, independent check.
type Check struct {
	Name string
	Run  func(ctx context.Context, l *Linter) ([]Issue, error)
}

// Checks lists every check in report order.
func Checks() []Check {
	return []Check{
		{Name: "json", Run: checkJSON},
		{Name: "affiliate-rel", Run: checkAffiliateRel},
		{Name: "image-alts", Run: checkImageAlts},
		{Name: "speakable", Run: checkSpeakable},
		{Name: "html-lang", Run: checkHTMLLang},
	}
}

// Select returns the checks named in names, or all checks when names is empty.
func Select(names []string) ([]Check, error) {
	all := Checks()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Check, len(all))
	for _, c := range all {
		byName[c.Name] = c
	}
	var out []Check
	for _, n := range names {
		c, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown check %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

// Run executes checks concurrently. Issues come back grouped by check in the
// order given, then sorted by file. A check that cannot run at all returns an
// error, which cancels the others.
func (l *Linter) Run(ctx context.Context, checks []Check) ([]Issue, error) {
	found := make([][]Issue, len(checks))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			l.Logger.Info("Running check", "check", c.Name)
			issues, err := c.Run(ctx, l)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			for j := range issues {
				issues[j].Check = c.Name
			}
			sort.SliceStable(issues, func(a, b int) bool { return issues[a].File < issues[b].File })
			found[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Issue
	for _, issues := range found {
		out = append(out, issues...)
	}
	return out, nil
}

// eachFile reads every HTML file, stopping early when ctx is done.
func (l *Linter) eachFile(ctx context.Context, fn func(rel, text string) []Issue) ([]Issue, error) {
	var out []Issue
	for _, rel := range l.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := l.Store.ReadFile(rel)
		if err != nil {
			out = append(out, Issue{File: rel, Message: err.Error()})
			continue
		}
		out = append(out, fn(rel, string(data))...)
	}
	return out, nil
}
