// Package jsonld builds the per-page schema.org graph and reads the dates a
// previous run left behind.
package jsonld

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/headtag"
)

// DateLayout is used for the "today" fallback.
const DateLayout = "2006-01-02"

// Dates are the two values carried across runs.
type Dates struct {
	Published string
	Modified  string
}

// ResolveDates applies the carry-forward rules. A published date, once
// emitted, is never replaced.
func ResolveDates(prior Dates, explicit, today string) Dates {
	published := firstNonEmpty(prior.Published, prior.Modified, explicit, today)
	modified := firstNonEmpty(explicit, prior.Modified, published)
	return Dates{Published: published, Modified: modified}
}

// Image describes the primary image node.
type Image struct {
	URL     string
	Caption string
	Width   string
	Height  string
}

// Input carries everything read from one document.
type Input struct {
	Rel         string
	Canonical   string
	Title       string
	Description string
	Explicit    string // <time datetime> value, if any
	Prior       Dates
	Today       string
	Image       *Image
	Speakable   bool
	CareSteps   []string
	FAQ         []models.FAQEntry
}

// Builder emits graphs for one site.
type Builder struct {
	Origin    string
	SiteName  string
	Language  string
	HowToName string
	Template  *Template
}

func (b *Builder) ref(fragment string) Node {
	return Node{"@id": b.Origin + "/#" + fragment}
}

// Graph returns the ordered node list for in.
func (b *Builder) Graph(in Input) []Node {
	today := in.Today
	if today == "" {
		today = time.Now().Format(DateLayout)
	}
	dates := ResolveDates(in.Prior, in.Explicit, today)
	home := b.Origin + "/"

	org := clone(b.Template.Organization)
	org["@id"] = b.Origin + "/#org"
	org["url"] = home
	if _, ok := org["name"]; !ok {
		org["name"] = b.SiteName
	}

	site := clone(b.Template.WebSite)
	site["@id"] = b.Origin + "/#website"
	site["url"] = home
	site["name"] = b.SiteName
	site["inLanguage"] = b.Language
	site["publisher"] = b.ref("org")

	crumbs := clone(b.Template.BreadcrumbList)
	crumbs["@type"] = "BreadcrumbList"
	crumbs["@id"] = in.Canonical + "#breadcrumbs"
	crumbs["itemListElement"] = breadcrumbItems(canonical.Breadcrumbs(b.Origin, in.Rel))

	page := clone(b.Template.WebPage)
	page["@id"] = in.Canonical + "#webpage"
	page["url"] = in.Canonical
	page["name"] = in.Title
	page["inLanguage"] = b.Language
	page["description"] = in.Description
	page["datePublished"] = dates.Published
	page["dateModified"] = dates.Modified
	page["isPartOf"] = b.ref("website")
	page["breadcrumb"] = Node{"@id": in.Canonical + "#breadcrumbs"}

	graph := []Node{org, site, crumbs, page}

	imageRef := Node{"@id": in.Canonical + "#primaryimage"}
	if in.Image != nil {
		img := Node{
			"@type":      "ImageObject",
			"@id":        in.Canonical + "#primaryimage",
			"url":        in.Image.URL,
			"contentUrl": in.Image.URL,
			"caption":    in.Image.Caption,
		}
		if in.Image.Width != "" {
			img["width"] = dimension(in.Image.Width)
		}
		if in.Image.Height != "" {
			img["height"] = dimension(in.Image.Height)
		}
		page["primaryImageOfPage"] = imageRef
		graph = append(graph, img)
	}

	post := Node{
		"@type":            "BlogPosting",
		"@id":              in.Canonical + "#blog",
		"headline":         in.Title,
		"description":      in.Description,
		"datePublished":    dates.Published,
		"dateModified":     dates.Modified,
		"inLanguage":       b.Language,
		"mainEntityOfPage": Node{"@id": in.Canonical + "#webpage"},
		"author": Node{
			"@id":   b.Origin + "/#org",
			"@type": "Organization",
			"name":  b.SiteName,
		},
		"publisher": b.ref("org"),
	}
	if in.Image != nil {
		post["image"] = imageRef
	}
	graph = append(graph, post)

	if in.Speakable {
		graph = append(graph, Node{
			"@type":       "SpeakableSpecification",
			"@id":         in.Canonical + "#speakable",
			"cssSelector": []string{".tldr", "h1"},
		})
	}

	if canonical.IsRoot(in.Rel) && len(in.FAQ) > 0 {
		questions := make([]Node, 0, len(in.FAQ))
		for _, e := range in.FAQ {
			questions = append(questions, Node{
				"@type": "Question",
				"name":  e.Question,
				"acceptedAnswer": Node{
					"@type": "Answer",
					"text":  e.Answer,
				},
			})
		}
		graph = append(graph, Node{
			"@type":      "FAQPage",
			"@id":        in.Canonical + "#faq",
			"mainEntity": questions,
		})
	}

	if len(in.CareSteps) > 0 {
		steps := make([]Node, 0, len(in.CareSteps))
		for i, text := range in.CareSteps {
			steps = append(steps, Node{
				"@type":    "HowToStep",
				"position": i + 1,
				"text":     text,
			})
		}
		graph = append(graph, Node{
			"@type": "HowTo",
			"@id":   in.Canonical + "#care",
			"name":  b.HowToName,
			"step":  steps,
		})
	}
	return graph
}

// Build serialises the graph for in.
func (b *Builder) Build(in Input) (string, error) {
	if b.Template == nil {
		return "", ErrTemplate
	}
	return Marshal(b.Graph(in))
}

// Marshal renders a graph document with two-space indentation. Map keys are
// sorted by encoding/json so equal graphs give equal text.
func Marshal(graph []Node) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	doc := map[string]any{
		"@context": "https://schema.org",
		"@graph":   graph,
	}
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode graph: %w", err)
	}
	out := strings.TrimRight(buf.String(), "\n")
	return strings.ReplaceAll(out, "</", `<\/`), nil
}

// ExistingDates reads datePublished/dateModified from the first JSON-LD block
// in inner. A block that does not parse returns an error and no dates.
func ExistingDates(inner string) (Dates, error) {
	blocks := headtag.JSONLDBlocks(inner)
	if len(blocks) == 0 {
		return Dates{}, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(blocks[0])), &parsed); err != nil {
		return Dates{}, fmt.Errorf("unparsable JSON-LD block: %w", err)
	}

	var nodes []any
	switch v := parsed.(type) {
	case []any:
		nodes = v
	case map[string]any:
		if g, ok := v["@graph"].([]any); ok {
			nodes = g
		} else {
			nodes = []any{v}
		}
	}

	var d Dates
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := node["datePublished"].(string); ok && d.Published == "" {
			d.Published = s
		}
		if s, ok := node["dateModified"].(string); ok && d.Modified == "" {
			d.Modified = s
		}
		if d.Published != "" && d.Modified != "" {
			break
		}
	}
	return d, nil
}

func breadcrumbItems(crumbs []canonical.Crumb) []Node {
	items := make([]Node, 0, len(crumbs))
	for _, c := range crumbs {
		items = append(items, Node{
			"@type":    "ListItem",
			"position": c.Position,
			"name":     c.Name,
			"item":     c.Item,
		})
	}
	return items
}

func dimension(v string) any {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return n
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
