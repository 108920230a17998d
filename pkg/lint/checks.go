package lint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pemistahl/lingua-go"

	"github.com/wsmith-bit/itstitanium/pkg/headtag"
	"github.com/wsmith-bit/itstitanium/pkg/signals"
)

const (
	minAltLength     = 5
	minLangSample    = 200
	reasoningCue     = "this matters because"
	mirrorMin        = 3
	mirrorMax        = 5
	summaryMinRows   = 3
	summaryColumnCue = "why it matters"
)

var requiredAffiliateRel = []string{"sponsored", "nofollow", "noopener"}

// Sections of a blog post that do not need a reasoning cue.
var cueExempt = map[string]bool{
	"tldr": true, "summary": true, "mirror-qs": true, "faqs": true,
	"related": true, "anchor": true, "changelog": true, "disclosure": true,
}

func parse(text string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(text))
}

func (l *Linter) rootRel(p string) string {
	if rel, err := filepath.Rel(l.Config.Root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// checkJSON validates every data/*.json file and every JSON-LD block.
func checkJSON(ctx context.Context, l *Linter) ([]Issue, error) {
	var out []Issue
	dataDir := filepath.Dir(l.Config.Resolve(l.Config.FAQBank))
	matches, err := filepath.Glob(filepath.Join(dataDir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			out = append(out, Issue{File: l.rootRel(m), Message: err.Error()})
			continue
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			out = append(out, Issue{File: l.rootRel(m), Message: "invalid JSON: " + err.Error()})
		}
	}

	pages, err := l.eachFile(ctx, func(rel, text string) []Issue {
		var issues []Issue
		for i, block := range headtag.JSONLDBlocks(text) {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			var v any
			if err := json.Unmarshal([]byte(block), &v); err != nil {
				issues = append(issues, Issue{File: rel, Message: fmt.Sprintf("invalid JSON-LD (block %d): %v", i+1, err)})
			}
		}
		return issues
	})
	if err != nil {
		return nil, err
	}
	return append(out, pages...), nil
}

// loadAffiliates reads the affiliate domain list.
func loadAffiliates(p string) ([]string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("affiliate domain list must be a JSON array of strings: %w", err)
	}
	if len(domains) == 0 {
		return nil, errors.New("affiliate domain list must be a non-empty array")
	}
	return domains, nil
}

func isAffiliate(href string, domains []string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range []string{"/", "#", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	for _, d := range domains {
		if strings.Contains(lower, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func hasRequiredRel(rel string) bool {
	parts := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(rel)) {
		parts[f] = true
	}
	for _, want := range requiredAffiliateRel {
		if !parts[want] {
			return false
		}
	}
	return true
}

// checkAffiliateRel requires rel="sponsored nofollow noopener" on affiliate links.
func checkAffiliateRel(ctx context.Context, l *Linter) ([]Issue, error) {
	domains, err := loadAffiliates(l.Config.Resolve(l.Config.Affiliates))
	if err != nil {
		return []Issue{{File: l.Config.Affiliates, Message: err.Error()}}, nil
	}
	return l.eachFile(ctx, func(rel, text string) []Issue {
		doc, err := parse(text)
		if err != nil {
			return []Issue{{File: rel, Message: err.Error()}}
		}
		var issues []Issue
		doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if !isAffiliate(href, domains) {
				return
			}
			r, ok := s.Attr("rel")
			switch {
			case !ok:
				issues = append(issues, Issue{File: rel, Message: href + ` is missing rel="sponsored nofollow noopener"`})
			case !hasRequiredRel(r):
				issues = append(issues, Issue{File: rel, Message: href + ` must include rel="sponsored nofollow noopener"`})
			}
		})
		return issues
	})
}

// checkImageAlts matches the .webp files next to the alt map against its entries.
func checkImageAlts(ctx context.Context, l *Linter) ([]Issue, error) {
	mapPath := l.Config.Resolve(l.Config.AltMap)
	dir := filepath.Dir(mapPath)
	name := l.Config.AltMap

	entries, err := os.ReadDir(dir)
	if err != nil {
		return []Issue{{File: l.rootRel(dir), Message: "image directory not found"}}, nil
	}
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return []Issue{{File: name, Message: "alt text map missing"}}, nil
	}
	var alts map[string]any
	if err := json.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &alts); err != nil {
		return []Issue{{File: name, Message: "unable to parse alt text map: " + err.Error()}}, nil
	}

	var images []string
	onDisk := map[string]bool{}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), ".webp") {
			images = append(images, e.Name())
			onDisk[e.Name()] = true
		}
	}
	if len(images) == 0 {
		return []Issue{{File: l.rootRel(dir), Message: "no .webp images found to validate"}}, nil
	}

	var out []Issue
	for _, img := range images {
		v, ok := alts[img]
		if !ok {
			out = append(out, Issue{File: name, Message: "missing alt text for " + img})
			continue
		}
		s, isString := v.(string)
		if !isString || len([]rune(strings.TrimSpace(s))) < minAltLength {
			out = append(out, Issue{File: name, Message: fmt.Sprintf("alt text for %s needs %d+ visible characters", img, minAltLength)})
		}
	}
	var dangling []string
	for key := range alts {
		if !onDisk[key] {
			dangling = append(dangling, key)
		}
	}
	sort.Strings(dangling)
	for _, key := range dangling {
		out = append(out, Issue{File: name, Message: "alt text entry for missing file " + key})
	}
	return out, nil
}

// isBlogPost reports whether rel is a post directly under blog/.
func isBlogPost(rel string) bool {
	dir, base := path.Split(rel)
	return dir == "blog/" && base != "index.html"
}

// checkSpeakable verifies the voice and answer-engine markers on blog posts.
func checkSpeakable(ctx context.Context, l *Linter) ([]Issue, error) {
	var posts []string
	for _, rel := range l.Files {
		if isBlogPost(rel) {
			posts = append(posts, rel)
		}
	}
	sub := &Linter{Config: l.Config, Store: l.Store, Files: posts, Logger: l.Logger}
	return sub.eachFile(ctx, func(rel, text string) []Issue {
		doc, err := parse(text)
		if err != nil {
			return []Issue{{File: rel, Message: err.Error()}}
		}
		var issues []Issue
		add := func(format string, args ...any) {
			issues = append(issues, Issue{File: rel, Message: fmt.Sprintf(format, args...)})
		}

		if doc.Find(`[data-speak="tldr"]`).Length() == 0 {
			add(`missing data-speak="tldr" on TL;DR section`)
		}
		if !strings.Contains(text, `"SpeakableSpecification"`) {
			add("JSON-LD missing SpeakableSpecification")
		}

		doc.Find("section[id]").Each(func(i int, s *goquery.Selection) {
			id, _ := s.Attr("id")
			if cueExempt[id] {
				return
			}
			if !strings.Contains(strings.ToLower(s.Text()), reasoningCue) {
				add(`section #%s is missing a "This matters because" reasoning cue`, id)
			}
		})

		mirror := doc.Find(`section[aria-labelledby="mirror-qs"]`).First()
		if mirror.Length() == 0 {
			add("missing People also ask block")
		} else if n := mirror.Find("li").Length(); n < mirrorMin || n > mirrorMax {
			add("People also ask block must contain between %d and %d questions (found %d)", mirrorMin, mirrorMax, n)
		}

		summary := doc.Find(`section[aria-labelledby="summary"]`).First()
		if summary.Find("table").Length() == 0 {
			add("missing summary table with Why it matters column")
		} else {
			if !strings.Contains(strings.ToLower(summary.Text()), summaryColumnCue) {
				add("summary table must include a Why it matters column")
			}
			if n := summary.Find("tbody tr").Length(); n < summaryMinRows {
				add("summary table needs at least %d rows (found %d)", summaryMinRows, n)
			}
		}
		return issues
	})
}

// Languages the html-lang check can tell apart.
var detectable = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Italian, lingua.Portuguese, lingua.Dutch,
}

// checkHTMLLang compares <html lang> with the language the body text reads as.
func checkHTMLLang(ctx context.Context, l *Linter) ([]Issue, error) {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectable...).
		WithLowAccuracyMode().
		Build()

	return l.eachFile(ctx, func(rel, text string) []Issue {
		doc, err := parse(text)
		if err != nil {
			return []Issue{{File: rel, Message: err.Error()}}
		}
		lang, ok := doc.Find("html").Attr("lang")
		lang = strings.TrimSpace(lang)
		if !ok || lang == "" {
			return []Issue{{File: rel, Message: "missing <html lang>"}}
		}

		body := signals.Normalize(doc.Find("body").Text())
		if len([]rune(body)) < minLangSample {
			return nil
		}
		detected, ok := detector.DetectLanguageOf(body)
		if !ok {
			return nil
		}
		code := strings.ToLower(detected.IsoCode639_1().String())
		primary := strings.ToLower(strings.SplitN(lang, "-", 2)[0])
		if code != primary {
			return []Issue{{File: rel, Message: fmt.Sprintf("html lang %q but content reads as %s", lang, detected)}}
		}
		return nil
	})
}
