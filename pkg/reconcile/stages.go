package reconcile

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/document"
	"github.com/wsmith-bit/itstitanium/pkg/headtag"
	"github.com/wsmith-bit/itstitanium/pkg/images"
	"github.com/wsmith-bit/itstitanium/pkg/jsonld"
	"github.com/wsmith-bit/itstitanium/pkg/signals"
)

const (
	progressMarkup = "    <div class=\"progress\" aria-hidden=\"true\">\n      <i class=\"reading-progress\"></i>\n    </div>"
	siteScriptTag  = "  <script src=\"/site.js\" defer></script>"
)

var (
	headerRe      = regexp.MustCompile(`(?is)<header\b[^>]*>.*?</header\s*>`)
	headerCloseRe = regexp.MustCompile(`(?i)</header\s*>$`)
	siteScriptRe  = regexp.MustCompile(`(?i)src\s*=\s*["'][^"']*site\.js["']`)
	bodyCloseRe   = regexp.MustCompile(`(?i)</body\s*>`)
)

// upsert applies one tag edit to the head and flags duplicate matches.
func upsert(p *Page, pattern headtag.Pattern, desired string, mode headtag.Mode) bool {
	if n := pattern.Count(p.Inner); n > 1 {
		p.warn("duplicate %s tags (%d); first is authoritative", pattern, n)
	}
	next, changed := headtag.Upsert(p.Inner, pattern, desired, mode)
	p.Inner = next
	return changed
}

func contentOf(inner string, pattern headtag.Pattern) (string, bool) {
	tag, _, ok := pattern.Find(inner)
	if !ok {
		return "", false
	}
	v, _ := headtag.Attr(tag, "content")
	return signals.Normalize(html.UnescapeString(v)), true
}

// domain: whole text -> whole text with misspelled origins corrected.
var domainStage = Stage{
	Name: "domain",
	Run: func(env *Env, p *Page) error {
		text, n := images.FixDomain(p.Doc.Text, env.Config.Origin, env.Config.TypoDomains)
		if n > 0 {
			p.Doc.Text = text
			p.fix("Corrected domain typo")
		}
		return nil
	},
}

// head: whole text -> head region, prior graph dates.
var headStage = Stage{
	Name:     "head",
	Provides: []string{ValueHead, ValueDates},
	Run: func(env *Env, p *Page) error {
		h, ok := document.LocateHead(p.Doc.Text)
		if !ok {
			p.warn("Missing <head> section")
			return ErrSkip
		}
		p.head = h
		p.Inner = h.Inner

		dates, err := jsonld.ExistingDates(h.Inner)
		if err != nil {
			p.warn("Existing JSON-LD block is not valid JSON; dates not carried forward")
		}
		p.Prior = dates
		return nil
	},
}

// signals: whole text -> parsed body signals.
var signalsStage = Stage{
	Name:     "signals",
	Provides: []string{ValueSignals},
	Run: func(env *Env, p *Page) error {
		base, _ := url.Parse(env.Config.Origin + "/")
		s, err := signals.Read(p.Doc.Text, base)
		if err != nil {
			return err
		}
		p.Signals = s
		return nil
	},
}

// canonical: path -> canonical record, canonical link.
var canonicalStage = Stage{
	Name:     "canonical",
	Needs:    []string{ValueHead},
	Provides: []string{ValueCanonical},
	Run: func(env *Env, p *Page) error {
		p.Record = canonical.Derive(env.Config.Origin, p.Doc.Rel)
		tag := headtag.LinkTag("canonical", p.Record.URL, "", "")
		if upsert(p, headtag.Link("canonical", ""), tag, headtag.Force) {
			p.fix("Ensured canonical link")
		}
		return nil
	},
}

// title: head -> title text, length warnings.
var titleStage = Stage{
	Name:     "title",
	Needs:    []string{ValueHead},
	Provides: []string{ValueTitle},
	Run: func(env *Env, p *Page) error {
		cfg := env.Config
		title := signals.Title(p.Inner)
		if title == "" {
			p.warn("Missing <title>")
			p.Title = cfg.DefaultTitle
			return nil
		}
		if n := utf8.RuneCountInString(title); n < cfg.TitleMin || n > cfg.TitleMax {
			p.warn("Title length %d outside preferred range (%d-%d)", n, cfg.TitleMin, cfg.TitleMax)
		}
		p.Title = title
		return nil
	},
}

// description: head, signals -> description text; fills a missing or empty
// meta description, never replaces a written one.
var descriptionStage = Stage{
	Name:     "description",
	Needs:    []string{ValueHead, ValueSignals},
	Provides: []string{ValueDescription},
	Run: func(env *Env, p *Page) error {
		cfg := env.Config
		pattern := headtag.Meta("description")
		if existing, _ := contentOf(p.Inner, pattern); existing != "" {
			if n := pattern.Count(p.Inner); n > 1 {
				p.warn("duplicate %s tags (%d); first is authoritative", pattern, n)
			}
			if n := utf8.RuneCountInString(existing); n > cfg.DescriptionMax {
				p.warn("Meta description length %d exceeds %d characters", n, cfg.DescriptionMax)
			}
			p.Description = existing
			return nil
		}

		derived := ""
		if p.Signals.Derived {
			derived = p.Signals.Description
		}
		if derived == "" {
			p.warn("Missing meta description")
			p.Description = cfg.DefaultDescription
			return nil
		}
		if upsert(p, pattern, headtag.MetaTag("name", "description", derived), headtag.Force) {
			p.fix("Added meta description")
		}
		p.Description = derived
		return nil
	},
}

// robots: head -> robots meta, only when missing or empty.
var robotsStage = Stage{
	Name:  "robots",
	Needs: []string{ValueHead},
	Run: func(env *Env, p *Page) error {
		pattern := headtag.Meta("robots")
		if existing, found := contentOf(p.Inner, pattern); found && existing != "" {
			if n := pattern.Count(p.Inner); n > 1 {
				p.warn("duplicate %s tags (%d); first is authoritative", pattern, n)
			}
			return nil
		}
		if upsert(p, pattern, headtag.MetaTag("name", "robots", "index,follow"), headtag.Force) {
			p.fix("Standardized robots meta")
		}
		return nil
	},
}

// icons: head -> icon links for assets present in the public tree.
var iconsStage = Stage{
	Name:  "icons",
	Needs: []string{ValueHead},
	Run: func(env *Env, p *Page) error {
		for _, icon := range env.Config.Icons {
			if !env.Store.HasFile(icon.Href) {
				continue
			}
			tag := headtag.LinkTag(icon.Rel, icon.Href, icon.Sizes, icon.Type)
			if upsert(p, headtag.Link(icon.Rel, icon.Sizes), tag, headtag.Force) {
				p.fix(strings.TrimSpace("Ensured " + icon.Rel + " " + icon.Sizes))
			}
		}
		return nil
	},
}

// image: whole text -> primary image.
var imageStage = Stage{
	Name:     "image",
	Needs:    []string{ValueHead},
	Provides: []string{ValueImage},
	Run: func(env *Env, p *Page) error {
		if primary, ok := env.Resolver().Resolve(p.Doc.Text, p.Doc.Rel); ok {
			p.Image = &primary
		}
		return nil
	},
}

// opengraph: canonical, title, description, image -> og:* meta.
var openGraphStage = Stage{
	Name:  "opengraph",
	Needs: []string{ValueCanonical, ValueTitle, ValueDescription, ValueImage},
	Run: func(env *Env, p *Page) error {
		cfg := env.Config
		ogType := "article"
		if canonical.IsIndex(p.Doc.Rel) {
			ogType = "website"
		}
		pairs := [][2]string{
			{"og:type", ogType},
			{"og:site_name", cfg.SiteName},
			{"og:title", p.Title},
			{"og:description", p.Description},
			{"og:url", p.Record.URL},
		}
		if p.Image != nil {
			pairs = append(pairs, [2]string{"og:image", p.Image.URL}, [2]string{"og:image:alt", cfg.ImageAlt})
		}

		changed := false
		for _, kv := range pairs {
			pattern := headtag.Meta(kv[0], "property", "name")
			if upsert(p, pattern, headtag.MetaTag("property", kv[0], kv[1]), headtag.Force) {
				changed = true
			}
		}
		if changed {
			p.fix("Aligned Open Graph tags")
		}
		return nil
	},
}

// twitter: title, description, image -> twitter:* meta, keeping the
// attribute an existing tag already uses.
var twitterStage = Stage{
	Name:  "twitter",
	Needs: []string{ValueTitle, ValueDescription, ValueImage},
	Run: func(env *Env, p *Page) error {
		card := "summary"
		if p.Image != nil {
			card = "summary_large_image"
		}
		pairs := [][2]string{
			{"twitter:card", card},
			{"twitter:title", p.Title},
			{"twitter:description", p.Description},
		}
		if p.Image != nil {
			pairs = append(pairs, [2]string{"twitter:image", p.Image.URL}, [2]string{"twitter:image:alt", env.Config.ImageAlt})
		}

		changed := false
		for _, kv := range pairs {
			attr := "name"
			if !headtag.Meta(kv[0], "name").Exists(p.Inner) && headtag.Meta(kv[0], "property").Exists(p.Inner) {
				attr = "property"
			}
			if upsert(p, headtag.Meta(kv[0], attr), headtag.MetaTag(attr, kv[0], kv[1]), headtag.Force) {
				changed = true
			}
		}
		if changed {
			p.fix("Aligned Twitter card tags")
		}
		return nil
	},
}

// jsonld: everything above -> one graph block in the head.
var jsonLDStage = Stage{
	Name:  "jsonld",
	Needs: []string{ValueHead, ValueDates, ValueSignals, ValueCanonical, ValueTitle, ValueDescription, ValueImage},
	Run: func(env *Env, p *Page) error {
		if env.Builder == nil {
			return nil
		}
		in := jsonld.Input{
			Rel:         p.Doc.Rel,
			Canonical:   p.Record.URL,
			Title:       p.Title,
			Description: p.Description,
			Explicit:    p.Signals.Published,
			Prior:       p.Prior,
			Today:       env.Today,
			Speakable:   p.Signals.HasTLDR && p.Signals.HasH1,
			CareSteps:   p.Signals.CareSteps,
			FAQ:         env.FAQ,
		}
		if p.Image != nil {
			img := &jsonld.Image{URL: p.Image.URL}
			if h := p.Image.Hero; h != nil {
				img.Caption = html.UnescapeString(h.Alt)
				img.Width = h.Width
				img.Height = h.Height
			}
			in.Image = img
		}

		graph, err := env.Builder.Build(in)
		if err != nil {
			return err
		}
		next, changed, n := headtag.ReplaceJSONLD(p.Inner, graph)
		if n > 1 {
			p.warn("Replaced %d JSON-LD blocks with one", n)
		}
		p.Inner = next
		if changed {
			p.fix("Refreshed JSON-LD graph")
		}
		return nil
	},
}

// commit: head inner -> whole text.
var commitStage = Stage{
	Name:  "commit",
	Needs: []string{ValueHead},
	Run: func(env *Env, p *Page) error {
		if p.Inner != p.head.Inner {
			p.Doc.Text = document.ReplaceHead(p.Doc.Text, p.head, p.Inner)
		}
		return nil
	},
}

// progress: whole text -> reading progress markup inside <header>.
var progressStage = Stage{
	Name: "progress",
	Run: func(env *Env, p *Page) error {
		text := p.Doc.Text
		if strings.Contains(text, `class="reading-progress"`) {
			return nil
		}
		loc := headerRe.FindStringIndex(text)
		if loc == nil {
			p.warn("Missing <header> for progress bar injection")
			return nil
		}
		closing := headerCloseRe.FindStringIndex(text[loc[0]:loc[1]])
		at := loc[0] + closing[0]
		p.Doc.Text = text[:at] + progressMarkup + "\n  " + text[at:]
		p.fix("Inserted progress bar markup")
		return nil
	},
}

// site-script: whole text -> site.js reference before </body>.
var siteScriptStage = Stage{
	Name: "site-script",
	Run: func(env *Env, p *Page) error {
		text := p.Doc.Text
		if siteScriptRe.MatchString(text) {
			return nil
		}
		loc := bodyCloseRe.FindStringIndex(text)
		if loc == nil {
			return nil
		}
		p.Doc.Text = text[:loc[0]] + siteScriptTag + "\n" + text[loc[0]:]
		p.fix("Added site.js reference")
		return nil
	},
}

// images: whole text -> lazy/async policy on ordinary images.
var imagesStage = Stage{
	Name: "images",
	Run: func(env *Env, p *Page) error {
		res := images.Normalize(p.Doc.Text)
		p.Warnings = append(p.Warnings, res.Warnings...)
		if res.Changed {
			p.Doc.Text = res.HTML
			p.fix("Standardized image loading attributes")
		}
		return nil
	},
}
