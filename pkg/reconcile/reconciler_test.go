package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/headtag"
)

const testTemplate = `{"@graph":[
  {"@type":"Organization","name":"It’s Titanium"},
  {"@type":"WebSite","potentialAction":{"@type":"SearchAction","target":"https://itstitanium.com/?q={q}"}},
  {"@type":"WebPage"},
  {"@type":"BreadcrumbList"}
]}`

const testFAQ = `[
  {"q":"Is titanium cookware safe?","a":"Yes."},
  {"q":"Does it need seasoning?","a":"No."},
  {"q":"Can it go in the oven?","a":"Check the handle."}
]`

const carePage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Titanium cookware care guide for everyday kitchens</title>
</head>
<body>
  <header class="site-header">
    <a href="/">Home</a>
  </header>
  <main>
    <h1>Care</h1>
    <p class="tldr">Rinse, dry, done.</p>
    <time datetime="2024-01-15">January 15, 2024</time>
    <img class="hero" src="/assets/img/hero.webp" width="1200" height="630" alt="Pan">
    <img src="pan.webp" width="10" height="10">
    <ol class="care-steps"><li>Rinse <b>warm</b></li><li>Dry</li></ol>
  </main>
</body>
</html>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// newTestEnv lays out a site under a temp dir and returns its environment.
func newTestEnv(t *testing.T, template, faq string, docs map[string]string) *Env {
	t.Helper()
	root := t.TempDir()
	cfg := models.DefaultConfig()
	cfg.Root = root
	cfg.CheckAssets = false
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, cfg.Template), template)
	writeFile(t, filepath.Join(root, cfg.FAQBank), faq)
	for rel, text := range docs {
		writeFile(t, filepath.Join(root, cfg.PublicDir, rel), text)
	}

	env := NewEnv(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)), EnforcePipeline())
	env.Today = "2026-10-18"
	return env
}

func runPipeline(t *testing.T, env *Env, pl Pipeline) *Summary {
	t.Helper()
	paths, err := env.Store.ListHTML()
	if err != nil {
		t.Fatalf("ListHTML() error = %v", err)
	}
	r := &Reconciler{Env: env, Pipeline: pl, Tool: "enforce", Workers: 3}
	return r.Run(context.Background(), paths)
}

func read(t *testing.T, env *Env, rel string) string {
	t.Helper()
	data, err := env.Store.ReadFile(rel)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func graphNodes(t *testing.T, text string) []map[string]any {
	t.Helper()
	blocks := headtag.JSONLDBlocks(text)
	if len(blocks) != 1 {
		t.Fatalf("found %d JSON-LD blocks, want 1", len(blocks))
	}
	raw := strings.ReplaceAll(blocks[0], `<\/`, "</")
	var doc struct {
		Graph []map[string]any `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("JSON-LD block is not valid JSON: %v", err)
	}
	return doc.Graph
}

func nodeByType(nodes []map[string]any, typ string) map[string]any {
	for _, n := range nodes {
		if n["@type"] == typ {
			return n
		}
	}
	return nil
}

func TestPipelines_Validate(t *testing.T) {
	for name, pl := range map[string]Pipeline{"enforce": EnforcePipeline(), "head-assets": HeadAssetsPipeline()} {
		if err := pl.Validate(); err != nil {
			t.Errorf("%s pipeline: Validate() error = %v", name, err)
		}
	}
	broken := Pipeline{openGraphStage, headStage}
	if err := broken.Validate(); err == nil {
		t.Error("Validate() accepted a stage before its inputs")
	}
}

func TestEnforce_Idempotent(t *testing.T) {
	env := newTestEnv(t, testTemplate, testFAQ, map[string]string{
		"index.html":                   carePage,
		"care-and-cleaning/index.html": carePage,
		"blog/post.html":               strings.Replace(carePage, `<header class="site-header">`, `<header>`, 1),
	})

	first := runPipeline(t, env, EnforcePipeline())
	if first.Progress.FilesChanged != 3 {
		t.Fatalf("first run FilesChanged = %d, want 3 (changes %v, warnings %v)", first.Progress.FilesChanged, first.Changes, first.Warnings)
	}
	snapshot := read(t, env, "index.html")

	second := runPipeline(t, env, EnforcePipeline())
	if second.Progress.FilesChanged != 0 || len(second.Changes) != 0 {
		t.Errorf("second run changed files: %v", second.Changes)
	}
	if got := read(t, env, "index.html"); got != snapshot {
		t.Errorf("second run rewrote index.html:\n%s", got)
	}
}

func TestEnforce_Output(t *testing.T) {
	env := newTestEnv(t, testTemplate, testFAQ, map[string]string{"index.html": carePage})
	s := runPipeline(t, env, EnforcePipeline())
	text := read(t, env, "index.html")

	for _, want := range []string{
		`<link rel="canonical" href="https://itstitanium.com/">`,
		`<meta name="description" content="Rinse, dry, done.">`,
		`<meta name="robots" content="index,follow">`,
		`<meta property="og:type" content="website">`,
		`<meta property="og:image" content="https://itstitanium.com/assets/img/hero.webp">`,
		`<meta name="twitter:card" content="summary_large_image">`,
		`<i class="reading-progress"></i>`,
		`<script src="/site.js" defer></script>`,
		`<img decoding="async" loading="lazy" src="pan.webp" width="10" height="10">`,
		`<img class="hero" src="/assets/img/hero.webp" width="1200" height="630" alt="Pan">`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %s", want)
		}
	}

	nodes := graphNodes(t, text)
	faq := nodeByType(nodes, "FAQPage")
	if faq == nil {
		t.Fatal("graph has no FAQPage node")
	}
	if entities := faq["mainEntity"].([]any); len(entities) != 3 {
		t.Errorf("FAQPage mainEntity has %d entries, want 3", len(entities))
	}
	howto := nodeByType(nodes, "HowTo")
	if howto == nil {
		t.Fatal("graph has no HowTo node")
	}
	step := howto["step"].([]any)[0].(map[string]any)
	if step["text"] != "Rinse warm" {
		t.Errorf("first HowTo step = %q, want %q", step["text"], "Rinse warm")
	}
	if nodeByType(nodes, "SpeakableSpecification") == nil {
		t.Error("graph has no SpeakableSpecification node")
	}
	page := nodeByType(nodes, "WebPage")
	if page["datePublished"] != "2024-01-15" {
		t.Errorf("datePublished = %v, want 2024-01-15", page["datePublished"])
	}
	if s.Progress.TotalFixes == 0 {
		t.Error("TotalFixes = 0, want fixes recorded")
	}
}

func TestEnforce_DateStability(t *testing.T) {
	env := newTestEnv(t, testTemplate, "", map[string]string{"blog/post.html": carePage})
	runPipeline(t, env, EnforcePipeline())

	text := read(t, env, "blog/post.html")
	text = strings.Replace(text, `datetime="2024-01-15"`, `datetime="2025-06-30"`, 1)
	if err := env.Store.SaveFile("blog/post.html", []byte(text)); err != nil {
		t.Fatal(err)
	}
	env.Today = "2027-01-01"
	runPipeline(t, env, EnforcePipeline())

	page := nodeByType(graphNodes(t, read(t, env, "blog/post.html")), "WebPage")
	if page["datePublished"] != "2024-01-15" {
		t.Errorf("datePublished = %v, want 2024-01-15", page["datePublished"])
	}
	if page["dateModified"] != "2025-06-30" {
		t.Errorf("dateModified = %v, want 2025-06-30", page["dateModified"])
	}
}

func TestEnforce_CommentedTagsAreNotLive(t *testing.T) {
	oldCanonical := `<!-- <link rel="canonical" href="https://old.example/"> -->`
	oldRobots := `<!-- <meta name="robots" content="noindex"> -->`
	doc := strings.Replace(carePage, "<meta charset=\"utf-8\">",
		"<meta charset=\"utf-8\">\n  "+oldCanonical+"\n  "+oldRobots, 1)
	env := newTestEnv(t, testTemplate, "", map[string]string{"blog/post.html": doc})
	s := runPipeline(t, env, EnforcePipeline())

	text := read(t, env, "blog/post.html")
	for _, c := range []string{oldCanonical, oldRobots} {
		if !strings.Contains(text, c) {
			t.Errorf("comment %s was edited", c)
		}
	}
	tag, _, ok := headtag.Link("canonical", "").Find(text)
	if href, _ := headtag.Attr(tag, "href"); !ok || href != s.Results[0].Canonical {
		t.Errorf("live canonical = %q, want href %s", tag, s.Results[0].Canonical)
	}
	tag, _, ok = headtag.Meta("robots").Find(text)
	if content, _ := headtag.Attr(tag, "content"); !ok || content != "index,follow" {
		t.Errorf("live robots = %q, want index,follow", tag)
	}

	again := runPipeline(t, env, EnforcePipeline())
	if again.Progress.FilesChanged != 0 {
		t.Errorf("second enforce changed files: %v", again.Changes)
	}
}

func TestEnforce_NonDestructiveFill(t *testing.T) {
	doc := strings.Replace(carePage, "<meta charset=\"utf-8\">",
		"<meta charset=\"utf-8\">\n  <meta name=\"description\" content=\"Hand &amp; heart written.\">\n  <meta name=\"robots\" content=\"noindex\">", 1)
	env := newTestEnv(t, testTemplate, "", map[string]string{"a.html": doc})
	runPipeline(t, env, EnforcePipeline())

	text := read(t, env, "a.html")
	if !strings.Contains(text, `<meta name="description" content="Hand &amp; heart written.">`) {
		t.Error("existing description was altered")
	}
	if !strings.Contains(text, `<meta name="robots" content="noindex">`) {
		t.Error("existing robots directive was altered")
	}
	if !strings.Contains(text, `<meta property="og:description" content="Hand &amp; heart written.">`) {
		t.Error("og:description does not mirror the existing description")
	}
}

func TestEnforce_MissingHeadSkipsDocument(t *testing.T) {
	doc := "<html><body><img src=\"https://itstitaniun.com/x.webp\"></body></html>"
	env := newTestEnv(t, testTemplate, "", map[string]string{"nohead.html": doc})
	s := runPipeline(t, env, EnforcePipeline())

	if got := read(t, env, "nohead.html"); got != doc {
		t.Errorf("document without head was written: %q", got)
	}
	if len(s.Warnings) != 1 || s.Warnings[0] != "nohead.html: Missing <head> section" {
		t.Errorf("Warnings = %v", s.Warnings)
	}
	if code := s.ExitCode(env); code != 1 {
		t.Errorf("ExitCode() = %d, want 1", code)
	}
}

func TestEnforce_DuplicatesAndBlocks(t *testing.T) {
	doc := strings.Replace(carePage, "<meta charset=\"utf-8\">",
		"<meta charset=\"utf-8\">\n"+
			"  <meta name=\"robots\" content=\"index,follow\">\n"+
			"  <meta name=\"robots\" content=\"noindex\">\n"+
			"  <script type=\"application/ld+json\">{\"datePublished\":\"2020-02-02\"}</script>\n"+
			"  <script type=\"application/ld+json\">{}</script>", 1)
	env := newTestEnv(t, testTemplate, "", map[string]string{"a.html": doc})
	s := runPipeline(t, env, EnforcePipeline())

	joined := strings.Join(s.Warnings, "\n")
	if !strings.Contains(joined, `duplicate <meta name="robots"> tags (2); first is authoritative`) {
		t.Errorf("no duplicate robots warning in %v", s.Warnings)
	}
	if !strings.Contains(joined, "Replaced 2 JSON-LD blocks with one") {
		t.Errorf("no multiple-block warning in %v", s.Warnings)
	}
	page := nodeByType(graphNodes(t, read(t, env, "a.html")), "WebPage")
	if page["datePublished"] != "2020-02-02" {
		t.Errorf("datePublished = %v, want carried 2020-02-02", page["datePublished"])
	}
}

func TestEnforce_BrokenTemplateDisablesGraph(t *testing.T) {
	env := newTestEnv(t, `{"@graph": [`, `not json`, map[string]string{"a.html": carePage})
	if len(env.Errors) != 2 || env.Builder != nil || env.FAQ != nil {
		t.Fatalf("NewEnv() errors = %v, builder %v", env.Errors, env.Builder)
	}
	s := runPipeline(t, env, EnforcePipeline())
	if blocks := headtag.JSONLDBlocks(read(t, env, "a.html")); len(blocks) != 0 {
		t.Errorf("graph written with a broken template: %v", blocks)
	}
	if s.Progress.FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want other stages to still apply", s.Progress.FilesChanged)
	}
	if code := s.ExitCode(env); code != 1 {
		t.Errorf("ExitCode() = %d, want 1", code)
	}
}

func TestNewEnv_LoadsOnlyInputsThePipelineUses(t *testing.T) {
	base := newTestEnv(t, `{"@graph": [`, `not json`, nil)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	tests := []struct {
		name       string
		pl         Pipeline
		wantErrors int
	}{
		{"enforce", EnforcePipeline(), 2},
		{"head-assets", HeadAssetsPipeline(), 0},
		{"inject", InjectPipeline(), 1},
		{"disclosure only", Pipeline{disclosureStage}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewEnv(base.Config, logger, tt.pl)
			if len(env.Errors) != tt.wantErrors {
				t.Errorf("len(Errors) = %d, want %d: %v", len(env.Errors), tt.wantErrors, env.Errors)
			}
			if env.Builder != nil {
				t.Errorf("Builder = %v, want nil with a broken template", env.Builder)
			}
			if env.faqReady {
				t.Error("faqReady = true with a broken FAQ bank")
			}
		})
	}
}

func TestInject_IgnoresBrokenTemplate(t *testing.T) {
	base := newTestEnv(t, `{"@graph": [`, testFAQ, map[string]string{
		"blog/index.html": "<html><head></head><body><main><section id=\"faqs\"></section></main></body></html>\n",
	})
	env := NewEnv(base.Config, base.Logger, InjectPipeline())
	if len(env.Errors) != 0 {
		t.Fatalf("NewEnv(inject) errors = %v, want none", env.Errors)
	}
	s := runPipeline(t, env, InjectPipeline())
	if s.Progress.FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want the FAQ synced", s.Progress.FilesChanged)
	}
	if code := s.ExitCode(env); code != 0 {
		t.Errorf("ExitCode() = %d, want 0", code)
	}
}

func TestHeadAssets_IconsOnlyWhenPresent(t *testing.T) {
	env := newTestEnv(t, testTemplate, "", map[string]string{"index.html": carePage})
	writeFile(t, env.Store.Abs("assets/img/brand/itstitaniun-logo-32.png"), "png")

	s := runPipeline(t, env, HeadAssetsPipeline())
	text := read(t, env, "index.html")
	if !strings.Contains(text, `<link rel="icon" href="/assets/img/brand/itstitaniun-logo-32.png" sizes="32x32" type="image/png">`) {
		t.Error("present icon was not linked")
	}
	if strings.Contains(text, "logo-192") || strings.Contains(text, "apple-touch") {
		t.Error("missing icon assets were linked")
	}
	if len(headtag.JSONLDBlocks(text)) != 0 {
		t.Error("head-assets wrote a JSON-LD graph")
	}
	if strings.Contains(text, "reading-progress") {
		t.Error("head-assets inserted progress markup")
	}
	if s.Progress.FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want 1", s.Progress.FilesChanged)
	}

	again := runPipeline(t, env, HeadAssetsPipeline())
	if again.Progress.FilesChanged != 0 {
		t.Errorf("second head-assets run changed files: %v", again.Changes)
	}
}

func TestSummary_History(t *testing.T) {
	env := newTestEnv(t, testTemplate, "", map[string]string{"a.html": carePage})
	s := runPipeline(t, env, EnforcePipeline())
	run, entries, docs := s.History()
	if run.RunID == "" || run.Tool != "enforce" || run.TotalFiles != 1 {
		t.Errorf("History() run = %+v", run)
	}
	if len(entries) != s.Progress.TotalFixes+s.Progress.Warnings {
		t.Errorf("History() entries = %d, want %d", len(entries), s.Progress.TotalFixes+s.Progress.Warnings)
	}
	if len(docs) != 1 || docs[0].CanonicalURL != "https://itstitanium.com/a.html" {
		t.Errorf("History() docs = %+v", docs)
	}
	rec := s.Record()
	if rec.Progress.TotalFiles != 1 || len(rec.Changes) != len(s.Changes) {
		t.Errorf("Record() = %+v", rec)
	}
}

func TestInject_DisclosureAndFAQ(t *testing.T) {
	docs := map[string]string{
		"index.html":      "<html><head><title>Home</title></head><body><main><section id=\"faqs\"></section></main></body></html>\n",
		"blog/post.html":  "<html><head><title>Post</title></head><body><p>x</p></body></html>\n",
		"guide/page.html": "<html><head></head><body><main><section id=\"faqs\"></section></main></body></html>\n",
	}
	env := newTestEnv(t, testTemplate, testFAQ, docs)
	writeFile(t, env.Config.Resolve(env.Config.Disclosure), "Affiliate links support us.\n")
	env.LoadDisclosure()
	if len(env.Errors) != 0 {
		t.Fatalf("env.Errors = %v, want none", env.Errors)
	}

	s := runPipeline(t, env, InjectPipeline())
	if s.Progress.FilesChanged != 3 {
		t.Errorf("FilesChanged = %d, want 3", s.Progress.FilesChanged)
	}

	home := read(t, env, "index.html")
	if !strings.Contains(home, `<section class="disclosure" id="disclosure">`) {
		t.Errorf("index.html missing disclosure:\n%s", home)
	}
	if strings.Count(home, "<details id=") != 3 {
		t.Errorf("index.html FAQ entries = %d, want 3", strings.Count(home, "<details id="))
	}
	if guide := read(t, env, "guide/page.html"); strings.Contains(guide, "<details") {
		t.Errorf("FAQ synced into a non-index page:\n%s", guide)
	}

	again := runPipeline(t, env, InjectPipeline())
	if again.Progress.FilesChanged != 0 {
		t.Errorf("second inject FilesChanged = %d, want 0; changes: %v", again.Progress.FilesChanged, again.Changes)
	}
}

func TestInject_BrokenFAQLeavesSectionAlone(t *testing.T) {
	docs := map[string]string{
		"index.html": "<html><head></head><body><section id=\"faqs\"><p>keep</p></section></body></html>\n",
	}
	env := newTestEnv(t, testTemplate, "{not json", docs)
	if len(env.Errors) != 1 {
		t.Fatalf("env.Errors = %v, want one FAQ error", env.Errors)
	}
	s := runPipeline(t, env, InjectPipeline())
	if s.Progress.FilesChanged != 0 {
		t.Errorf("FilesChanged = %d, want 0", s.Progress.FilesChanged)
	}
	if s.ExitCode(env) != 1 {
		t.Errorf("ExitCode() = %d, want 1", s.ExitCode(env))
	}
}
