// Package canonical derives canonical URLs and breadcrumb chains from a
// document's site-relative path. Nothing here looks at document content.
package canonical

import (
	"strings"
)

const indexFile = "index.html"

// Crumb is one breadcrumb level.
type Crumb struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Item     string `json:"item"`
}

// Record bundles the derived values for one path.
type Record struct {
	URL         string
	Breadcrumbs []Crumb
}

// Normalize turns an OS or slash path into the slash-separated relative form.
func Normalize(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	return strings.TrimPrefix(rel, "/")
}

// IsRoot reports whether rel is the site root index.
func IsRoot(rel string) bool {
	return Normalize(rel) == indexFile
}

// IsIndex reports whether rel is any directory index.
func IsIndex(rel string) bool {
	rel = Normalize(rel)
	return rel == indexFile || strings.HasSuffix(rel, "/"+indexFile)
}

// Compute maps a relative path to its canonical absolute URL.
// origin must not carry a trailing slash.
func Compute(origin, rel string) string {
	rel = Normalize(rel)
	if rel == indexFile {
		return origin + "/"
	}
	if strings.HasSuffix(rel, "/"+indexFile) {
		return origin + "/" + strings.TrimSuffix(rel, indexFile)
	}
	return origin + "/" + rel
}

// Breadcrumbs builds the chain Home > segment > ... for rel.
func Breadcrumbs(origin, rel string) []Crumb {
	crumbs := []Crumb{{Position: 1, Name: "Home", Item: origin + "/"}}

	cleaned := Normalize(rel)
	if IsIndex(cleaned) {
		cleaned = strings.TrimSuffix(cleaned, indexFile)
	}
	var segments []string
	for _, s := range strings.Split(cleaned, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	acc := ""
	for i, seg := range segments {
		acc += seg
		if i != len(segments)-1 || !strings.HasSuffix(seg, ".html") {
			acc += "/"
		}
		crumbs = append(crumbs, Crumb{
			Position: len(crumbs) + 1,
			Name:     TitleCase(strings.TrimSuffix(seg, ".html")),
			Item:     origin + "/" + acc,
		})
	}
	return crumbs
}

// Derive computes the full record for rel.
func Derive(origin, rel string) Record {
	return Record{URL: Compute(origin, rel), Breadcrumbs: Breadcrumbs(origin, rel)}
}

// TitleCase splits a path segment on word separators and capitalizes each piece.
func TitleCase(segment string) string {
	parts := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
