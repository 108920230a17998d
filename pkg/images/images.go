// Package images classifies <img> tags as hero or ordinary, applies the
// lazy-loading policy to ordinary images and resolves a document's
// representative image.
package images

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/wsmith-bit/itstitanium/pkg/headtag"
)

var (
	imgRe     = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	imgOpenRe = regexp.MustCompile(`(?i)^<img`)
)

var heroAttrs = []string{"class", "id", "data-role", "data-hero"}

// IsHero reports whether an <img> tag carries a hero signal: a hero marker in
// class/id/data-role/data-hero, a bare data-hero attribute, or loading="eager".
func IsHero(tag string) bool {
	attrs := headtag.Attrs(tag)
	for _, name := range heroAttrs {
		v, ok := attrs[name]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(v), "hero") || (name == "data-hero" && v == "") {
			return true
		}
	}
	return strings.EqualFold(strings.TrimSpace(attrs["loading"]), "eager")
}

// Tags returns every <img> start tag in document order.
func Tags(html string) []string {
	return imgRe.FindAllString(html, -1)
}

// Result reports what Normalize did.
type Result struct {
	HTML     string
	Changed  bool
	Warnings []string
}

// Normalize sets loading="lazy" and decoding="async" on every non-hero image.
// Tags that already comply are left byte-for-byte untouched.
func Normalize(html string) Result {
	var warnings []string
	index := 0
	out := imgRe.ReplaceAllStringFunc(html, func(tag string) string {
		index++
		if IsHero(tag) {
			return tag
		}
		next := enforceAttr(tag, "loading", "lazy")
		next = enforceAttr(next, "decoding", "async")

		attrs := headtag.Attrs(next)
		_, hasWidth := attrs["width"]
		_, hasHeight := attrs["height"]
		if !hasWidth || !hasHeight {
			warnings = append(warnings, fmt.Sprintf("Missing width/height on image #%d", index))
		}
		return next
	})
	return Result{HTML: out, Changed: out != html, Warnings: warnings}
}

func enforceAttr(tag, name, value string) string {
	current, ok := headtag.Attr(tag, name)
	if ok && strings.EqualFold(strings.TrimSpace(current), value) {
		return tag
	}
	desired := fmt.Sprintf(`%s="%s"`, name, value)
	if span, ok := headtag.AttrSpan(tag, name); ok {
		return tag[:span[0]] + desired + tag[span[1]:]
	}
	return imgOpenRe.ReplaceAllLiteralString(tag, "<img "+desired)
}

// FixDomain rewrites every misspelled origin to the canonical origin.
// It returns the new text and the number of substitutions.
func FixDomain(text, origin string, typos []string) (string, int) {
	total := 0
	for _, typo := range typos {
		typo = strings.TrimRight(typo, "/")
		if typo == "" || typo == origin {
			continue
		}
		if n := strings.Count(text, typo); n > 0 {
			total += n
			text = strings.ReplaceAll(text, typo, origin)
		}
	}
	return text, total
}

// Hero holds the attributes of the hero image used for ImageObject details.
type Hero struct {
	Src    string
	Width  string
	Height string
	Alt    string
}

// FindHero returns the first image with a hero signal.
func FindHero(html string) (Hero, bool) {
	for _, tag := range Tags(html) {
		if !IsHero(tag) {
			continue
		}
		attrs := headtag.Attrs(tag)
		return Hero{
			Src:    attrs["src"],
			Width:  attrs["width"],
			Height: attrs["height"],
			Alt:    attrs["alt"],
		}, true
	}
	return Hero{}, false
}

var preload = headtag.Pattern{
	Element: "link",
	Keys: []headtag.Key{
		{Names: []string{"rel"}, Value: "preload"},
		{Names: []string{"as"}, Value: "image"},
	},
}

// Primary is the resolved representative image of a document.
type Primary struct {
	URL  string
	Hero *Hero // set when the image came from the hero tag
}

// Resolver picks a document's representative image.
type Resolver struct {
	Origin   string
	Fallback string
	// Exists, when set, filters out site-local images that are not on disk.
	Exists func(sitePath string) bool
}

// Resolve tries the hero image, a preloaded image, the first image and finally
// the fallback asset. ok is false when nothing resolves.
func (r Resolver) Resolve(html, rel string) (Primary, bool) {
	if hero, ok := FindHero(html); ok {
		if u, ok := r.absolute(hero.Src, rel); ok {
			h := hero
			return Primary{URL: u, Hero: &h}, true
		}
	}
	if tag, _, ok := preload.Find(html); ok {
		href, _ := headtag.Attr(tag, "href")
		if u, ok := r.absolute(href, rel); ok {
			return Primary{URL: u}, true
		}
	}
	if tags := Tags(html); len(tags) > 0 {
		src, _ := headtag.Attr(tags[0], "src")
		if u, ok := r.absolute(src, rel); ok {
			return Primary{URL: u}, true
		}
	}
	if r.Fallback != "" {
		if u, ok := r.absolute(r.Fallback, ""); ok {
			return Primary{URL: u}, true
		}
	}
	return Primary{}, false
}

func (r Resolver) absolute(src, rel string) (string, bool) {
	src = strings.TrimSpace(src)
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return src, true
	}
	sitePath := SitePath(src, rel)
	if sitePath == "" {
		return "", false
	}
	if r.Exists != nil && !r.Exists(sitePath) {
		return "", false
	}
	return r.Origin + sitePath, true
}

// SitePath resolves src against the directory of rel and returns a
// root-relative path. Data URIs, fragments and empty sources yield "".
func SitePath(src, rel string) string {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return ""
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "/") {
		return src
	}
	dir := path.Dir(strings.ReplaceAll(rel, `\`, "/"))
	if dir == "." {
		dir = ""
	}
	return "/" + strings.TrimPrefix(path.Clean(path.Join(dir, src)), "/")
}
