package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/db"
	"github.com/wsmith-bit/itstitanium/pkg/document"
)

// Result is the outcome for one document.
type Result struct {
	Rel       string
	Changed   bool
	Fixes     []string
	Warnings  []string
	Hash      string // content hash of the file as left by the run
	Canonical string
	Err       error
}

// Summary aggregates a run in input order.
type Summary struct {
	Tool     string
	RunID    string
	Start    time.Time
	Duration time.Duration
	Progress models.Progress
	Changes  []string
	Warnings []string
	Results  []Result
}

// Record converts the summary into a run-log section.
func (s *Summary) Record() models.RunRecord {
	rec := models.NewRunRecord(s.Start, s.Progress, s.Changes, s.Warnings)
	rec.DurationMs = s.Duration.Milliseconds()
	return rec
}

// History converts the summary into run-history rows.
func (s *Summary) History() (db.Run, []db.Entry, []db.DocumentState) {
	run := db.Run{
		RunID:        s.RunID,
		Tool:         s.Tool,
		StartedAt:    s.Start.UTC(),
		DurationMs:   s.Duration.Milliseconds(),
		TotalFiles:   s.Progress.TotalFiles,
		FilesChanged: s.Progress.FilesChanged,
		TotalFixes:   s.Progress.TotalFixes,
		Warnings:     s.Progress.Warnings,
	}
	var entries []db.Entry
	var docs []db.DocumentState
	for _, r := range s.Results {
		if r.Changed {
			for _, f := range r.Fixes {
				entries = append(entries, db.Entry{Kind: db.EntryChange, File: r.Rel, Message: f})
			}
		}
		for _, w := range r.Warnings {
			entries = append(entries, db.Entry{Kind: db.EntryWarning, File: r.Rel, Message: w})
		}
		if r.Hash != "" {
			docs = append(docs, db.DocumentState{Path: r.Rel, ContentHash: r.Hash, CanonicalURL: r.Canonical})
		}
	}
	return run, entries, docs
}

// Reconciler runs a pipeline over a document set.
type Reconciler struct {
	Env      *Env
	Pipeline Pipeline
	Tool     string
	Workers  int
	DryRun   bool
}

type job struct {
	index int
	rel   string
}

// Run processes every path and returns the merged summary. Per-document
// problems become warnings; the batch never stops early unless ctx is done.
func (r *Reconciler) Run(ctx context.Context, paths []string) *Summary {
	start := time.Now()
	logger := r.Env.Logger

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	logger.Info("Starting reconcile", "tool", r.Tool, "files", len(paths), "workers", workers,
		"stages", r.Pipeline.Names(), "dry_run", r.DryRun)
	var wg sync.WaitGroup
	jobs := make(chan job, len(paths))
	results := make(chan indexed, len(paths))

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go r.worker(ctx, w, &wg, jobs, results)
	}

	for i, rel := range paths {
		jobs <- job{index: i, rel: rel}
	}
	close(jobs)

	wg.Wait()
	close(results)
	logger.Info("All reconcile workers finished", "tool", r.Tool)

	ordered := make([]Result, len(paths))
	done := make([]bool, len(paths))
	for res := range results {
		ordered[res.index] = res.Result
		done[res.index] = true
	}

	s := &Summary{Tool: r.Tool, RunID: db.NewRunID(), Start: start}
	s.Progress.TotalFiles = len(paths)
	for i, res := range ordered {
		if !done[i] {
			res = Result{Rel: paths[i], Err: ctx.Err()}
			ordered[i] = res
		}
		if res.Err != nil && !errors.Is(res.Err, ErrSkip) {
			res.Warnings = append(res.Warnings, res.Err.Error())
			ordered[i].Warnings = res.Warnings
		}
		if res.Changed {
			s.Progress.FilesChanged++
			s.Progress.TotalFixes += len(res.Fixes)
			for _, f := range res.Fixes {
				s.Changes = append(s.Changes, res.Rel+": "+f)
			}
		}
		for _, w := range res.Warnings {
			s.Warnings = append(s.Warnings, res.Rel+": "+w)
		}
	}
	s.Progress.Warnings = len(s.Warnings)
	s.Results = ordered
	s.Duration = time.Since(start)
	return s
}

type indexed struct {
	index int
	Result
}

func (r *Reconciler) worker(ctx context.Context, id int, wg *sync.WaitGroup, jobs <-chan job, results chan<- indexed) {
	defer wg.Done()
	for j := range jobs {
		if ctx.Err() != nil {
			continue
		}
		res := r.process(j.rel)
		if res.Err != nil && !errors.Is(res.Err, ErrSkip) {
			r.Env.Logger.Warn("Document failed", "worker_id", id, "file", j.rel, "error", res.Err)
		}
		results <- indexed{index: j.index, Result: res}
	}
}

// process runs the pipeline over one document and writes it back when the
// text changed.
func (r *Reconciler) process(rel string) Result {
	res := Result{Rel: rel}
	data, err := r.Env.Store.ReadFile(rel)
	if err != nil {
		res.Err = err
		return res
	}

	p := &Page{Doc: document.New(rel, string(data))}
	err = r.Pipeline.Apply(r.Env, p)
	res.Fixes = p.Fixes
	res.Warnings = p.Warnings
	if err != nil {
		// Nothing is written for a document whose stages did not finish.
		res.Err = err
		res.Fixes = nil
		return res
	}

	res.Canonical = canonical.Compute(r.Env.Config.Origin, rel)
	res.Changed = p.Doc.Changed()
	if res.Changed && !r.DryRun {
		if err := r.Env.Store.SaveFile(rel, []byte(p.Doc.Text)); err != nil {
			res.Err = err
			res.Changed = false
			res.Fixes = nil
			return res
		}
	}
	res.Hash = db.ContentHash([]byte(p.Doc.Text))
	return res
}

// ExitCode maps a finished run to the process exit contract: 1 when warnings
// remain or auxiliary inputs were broken, 0 otherwise.
func (s *Summary) ExitCode(env *Env) int {
	if len(s.Warnings) > 0 || len(env.Errors) > 0 {
		return 1
	}
	return 0
}
