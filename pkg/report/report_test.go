package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/runlog"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

const alignedRoot = `<html><head>
<title>Titanium Cookware Guide for Everyday Home Cooking</title>
<meta name="description" content="Everything about titanium pans.">
<meta name="robots" content="index,follow">
<link rel="canonical" href="https://itstitanium.com/">
<script type="application/ld+json">{}</script>
</head><body>
<header><div class="reading-progress"></div></header>
<main><section class="disclosure" id="disclosure"><p>x</p></section>
<p class="tldr">Short.</p>
<section id="faqs"><details></details><details></details></section></main>
<script src="/site.js" defer></script>
</body></html>`

func newBuilder(t *testing.T, faqCount int) *Builder {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.Root = t.TempDir()
	return &Builder{
		Config:   cfg,
		Store:    storage.New(cfg.PublicRoot()),
		FAQCount: faqCount,
		Now:      time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

func failing(fr FileReport) []string {
	var out []string
	for _, c := range fr.Checks {
		if !c.Passed {
			out = append(out, c.Label+": "+c.Detail)
		}
	}
	return out
}

func TestFile_AlignedRoot(t *testing.T) {
	b := newBuilder(t, 2)
	fr, err := b.File("index.html", alignedRoot)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if got := failing(fr); len(got) != 0 {
		t.Errorf("failing checks = %v, want none", got)
	}
	if len(fr.Checks) != 10 {
		t.Errorf("len(Checks) = %d, want 10 for the root index", len(fr.Checks))
	}
}

func TestFile_Bare(t *testing.T) {
	b := newBuilder(t, 3)
	fr, err := b.File("blog/index.html", `<html><head><title>Short</title><link rel="canonical" href="https://itstitanium.com/blog"></head><body></body></html>`)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	want := []string{
		"Title between 35 and 65 characters: length 5",
		"Meta description present: missing",
		"Canonical matches expected URL: https://itstitanium.com/blog",
		"Robots meta includes index,follow: missing",
		"JSON-LD block present: missing",
		"Disclosure block synced: missing",
		"Progress bar markup present: missing",
		"site.js referenced: missing",
		"FAQ count matches data (3): missing section",
	}
	if diff := cmp.Diff(want, failing(fr)); diff != "" {
		t.Errorf("failing checks mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	two, one := 2, 1
	p := models.Progress{TotalFiles: 1200, FilesChanged: 3, TotalFixes: 7, Warnings: 1}
	if got, want := Summarize(p), "processed 1,200 file(s), updated 3 file(s), 7 fix(es), 1 warning(s)"; got != want {
		t.Errorf("Summarize() = %q, want %q", got, want)
	}
	p.DisclosureUpdates, p.FAQUpdates = &two, &one
	if got := Summarize(p); !strings.Contains(got, "2 disclosure update(s), 1 FAQ sync(s)") {
		t.Errorf("Summarize() = %q, want inject counters", got)
	}
}

func TestBuild_Runs(t *testing.T) {
	b := newBuilder(t, 0)
	log, err := runlog.Load(filepath.Join(b.Config.Root, "log.json"))
	if err != nil {
		t.Fatal(err)
	}
	rec := models.RunRecord{
		Timestamp:  "2026-10-18T09:00:00.000Z",
		DurationMs: 1500,
		Progress:   models.Progress{TotalFiles: 2, FilesChanged: 1, TotalFixes: 1},
		Changes:    []string{"index.html: Ensured canonical link"},
		Warnings:   []string{},
	}
	if err := log.Put(runlog.Enforce, rec); err != nil {
		t.Fatal(err)
	}
	b.Log = log

	r, err := b.Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(r.Runs) != len(Tools) {
		t.Fatalf("len(Runs) = %d, want %d", len(r.Runs), len(Tools))
	}
	enforce := r.Runs[1]
	if !enforce.Recorded || enforce.Ago != "3 hours ago" || enforce.Duration != "1.50s" {
		t.Errorf("enforce run = %+v, want recorded 3 hours ago in 1.50s", enforce)
	}
	if r.Runs[0].Recorded {
		t.Errorf("inject run recorded = true, want false")
	}

	var text bytes.Buffer
	if err := r.Write(&text, "text"); err != nil {
		t.Fatalf("Write(text) error = %v", err)
	}
	for _, want := range []string{
		"inject has not recorded a run.",
		"enforce @ 2026-10-18T09:00:00.000Z (3 hours ago)",
		"  - index.html: Ensured canonical link",
	} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text report missing %q:\n%s", want, text.String())
		}
	}

	var out bytes.Buffer
	if err := r.Write(&out, "yaml"); err != nil {
		t.Fatalf("Write(yaml) error = %v", err)
	}
	var decoded Report
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if decoded.Runs[1].Summary != enforce.Summary {
		t.Errorf("yaml summary = %q, want %q", decoded.Runs[1].Summary, enforce.Summary)
	}

	if err := r.Write(&out, "xml"); err == nil {
		t.Errorf("Write(xml) error = nil, want error")
	}
}
