// Package report builds the read-only "state of alignment" view: per-file
// checks of the head and body widgets plus the latest recorded run of each tool.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/headtag"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
	"github.com/wsmith-bit/itstitanium/pkg/signals"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

// Tools whose last run is listed, in display order.
var Tools = []string{runlog.Inject, runlog.Enforce, runlog.HeadAssets}

var siteScriptRe = regexp.MustCompile(`site\.js`)

// Check is one pass/fail line of a file report.
type Check struct {
	Label  string `json:"label" yaml:"label"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// FileReport holds the checks of one document.
type FileReport struct {
	File   string  `json:"file" yaml:"file"`
	Checks []Check `json:"checks" yaml:"checks"`
}

// Failed counts failing checks.
func (f FileReport) Failed() int {
	n := 0
	for _, c := range f.Checks {
		if !c.Passed {
			n++
		}
	}
	return n
}

// ToolRun is the last recorded run of one tool.
type ToolRun struct {
	Tool      string   `json:"tool" yaml:"tool"`
	Recorded  bool     `json:"recorded" yaml:"recorded"`
	Timestamp string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Ago       string   `json:"ago,omitempty" yaml:"ago,omitempty"`
	Summary   string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Duration  string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Changes   []string `json:"changes,omitempty" yaml:"changes,omitempty"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Report is the complete alignment view.
type Report struct {
	Files []FileReport `json:"files" yaml:"files"`
	Runs  []ToolRun    `json:"runs" yaml:"runs"`
}

// Builder reads documents and run records into a Report.
type Builder struct {
	Config   *models.SiteConfig
	Store    *storage.Storage
	FAQCount int
	Log      *runlog.Log
	Now      time.Time
}

// Build checks every file in paths and collects the run log.
func (b *Builder) Build(paths []string) (*Report, error) {
	r := &Report{}
	for _, rel := range paths {
		data, err := b.Store.ReadFile(rel)
		if err != nil {
			return nil, err
		}
		fr, err := b.File(rel, string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", rel, err)
		}
		r.Files = append(r.Files, fr)
	}
	for _, tool := range Tools {
		r.Runs = append(r.Runs, b.run(tool))
	}
	return r, nil
}

func pass(label string, ok bool, detail string) Check {
	c := Check{Label: label, Passed: ok}
	if !ok {
		c.Detail = detail
	}
	return c
}

func missing(ok bool) string {
	if ok {
		return ""
	}
	return "missing"
}

// File runs the per-document checks.
func (b *Builder) File(rel, text string) (FileReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return FileReport{}, err
	}
	cfg := b.Config
	fr := FileReport{File: rel}
	add := func(c Check) { fr.Checks = append(fr.Checks, c) }

	title := signals.Title(text)
	n := len([]rune(title))
	detail := "missing"
	if title != "" {
		detail = fmt.Sprintf("length %d", n)
	}
	add(pass(fmt.Sprintf("Title between %d and %d characters", cfg.TitleMin, cfg.TitleMax),
		title != "" && n >= cfg.TitleMin && n <= cfg.TitleMax, detail))

	desc := signals.MetaDescription(text)
	detail = "missing"
	if desc != "" {
		detail = fmt.Sprintf("length %d", len([]rune(desc)))
	}
	add(pass("Meta description present", desc != "" && len([]rune(desc)) <= cfg.DescriptionMax, detail))

	want := canonical.Compute(cfg.Origin, rel)
	href := ""
	if tag, _, ok := headtag.Link("canonical", "").Find(text); ok {
		href, _ = headtag.Attr(tag, "href")
	}
	add(pass("Canonical matches expected URL", href == want, firstNonEmpty(href, "missing")))

	robots := ""
	if tag, _, ok := headtag.Meta("robots").Find(text); ok {
		robots, _ = headtag.Attr(tag, "content")
	}
	add(pass("Robots meta includes index,follow",
		strings.Contains(robots, "index") && strings.Contains(robots, "follow"), firstNonEmpty(robots, "missing")))

	hasJSONLD := len(headtag.JSONLDBlocks(text)) > 0
	add(pass("JSON-LD block present", hasJSONLD, missing(hasJSONLD)))

	hasDisclosure := doc.Find("section#disclosure").Length() > 0
	add(pass("Disclosure block synced", hasDisclosure, missing(hasDisclosure)))

	hasProgress := doc.Find(".reading-progress").Length() > 0
	add(pass("Progress bar markup present", hasProgress, missing(hasProgress)))

	hasScript := siteScriptRe.MatchString(text)
	add(pass("site.js referenced", hasScript, missing(hasScript)))

	if canonical.IsRoot(rel) {
		hasTLDR := doc.Find(".tldr, [data-speak='tldr']").Length() > 0
		add(pass("TL;DR section detected", hasTLDR, missing(hasTLDR)))
	}
	if canonical.IsIndex(rel) {
		faqs := doc.Find("section#faqs").First()
		found := faqs.Find("details").Length()
		detail := "missing section"
		if faqs.Length() > 0 {
			detail = fmt.Sprintf("found %d", found)
		}
		add(pass(fmt.Sprintf("FAQ count matches data (%d)", b.FAQCount),
			faqs.Length() > 0 && found == b.FAQCount, detail))
	}
	return fr, nil
}

func firstNonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (b *Builder) run(tool string) ToolRun {
	tr := ToolRun{Tool: tool}
	if b.Log == nil {
		return tr
	}
	rec, ok := b.Log.Get(tool)
	if !ok {
		return tr
	}
	tr.Recorded = true
	tr.Timestamp = rec.Timestamp
	if ts, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil {
		tr.Ago = humanize.RelTime(ts, b.Now, "ago", "from now")
	}
	tr.Summary = Summarize(rec.Progress)
	tr.Duration = runlog.FormatDuration(time.Duration(rec.DurationMs) * time.Millisecond)
	tr.Changes = rec.Changes
	tr.Warnings = rec.Warnings
	return tr
}

// Summarize renders run counters as a comma-separated phrase.
func Summarize(p models.Progress) string {
	parts := []string{
		fmt.Sprintf("processed %s file(s)", humanize.Comma(int64(p.TotalFiles))),
		fmt.Sprintf("updated %s file(s)", humanize.Comma(int64(p.FilesChanged))),
	}
	if p.DisclosureUpdates != nil {
		parts = append(parts, fmt.Sprintf("%d disclosure update(s)", *p.DisclosureUpdates))
	}
	if p.FAQUpdates != nil {
		parts = append(parts, fmt.Sprintf("%d FAQ sync(s)", *p.FAQUpdates))
	}
	parts = append(parts,
		fmt.Sprintf("%d fix(es)", p.TotalFixes),
		fmt.Sprintf("%d warning(s)", p.Warnings))
	return strings.Join(parts, ", ")
}

// Failed counts failing checks across all files.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		n += f.Failed()
	}
	return n
}

// Write renders the report in format: "text", "json" or "yaml".
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.writeText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("State of Alignment\n")
	b.WriteString("==================\n")
	for _, f := range r.Files {
		fmt.Fprintf(&b, "\n%s\n", f.File)
		for _, c := range f.Checks {
			mark := "ok  "
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&b, "  %s %s", mark, c.Label)
			if c.Detail != "" {
				fmt.Fprintf(&b, " (%s)", c.Detail)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRecent alignment actions\n")
	for _, run := range r.Runs {
		if !run.Recorded {
			fmt.Fprintf(&b, "%s has not recorded a run.\n", run.Tool)
			continue
		}
		fmt.Fprintf(&b, "%s @ %s", run.Tool, run.Timestamp)
		if run.Ago != "" {
			fmt.Fprintf(&b, " (%s)", run.Ago)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  summary: %s\n", run.Summary)
		fmt.Fprintf(&b, "  duration: %s\n", run.Duration)
		if len(run.Changes) == 0 {
			b.WriteString("  - No recorded changes\n")
		}
		for _, c := range run.Changes {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
		if len(run.Warnings) > 0 {
			b.WriteString("  warnings:\n")
			for _, warn := range run.Warnings {
				fmt.Fprintf(&b, "    - %s\n", warn)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
