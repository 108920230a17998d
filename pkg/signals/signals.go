// Package signals reads page content that feeds head metadata: title,
// description, dates and structured-data hints. It never edits a document.
package signals

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"

	"github.com/wsmith-bit/itstitanium/pkg/headtag"
)

const (
	descriptionMax = 155
	descriptionCut = 152
)

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title\s*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Page holds everything read from one document.
type Page struct {
	Title       string
	Description string
	Published   string
	HasTLDR     bool
	HasH1       bool
	CareSteps   []string

	// Derived is set when Description came from body content rather than an
	// existing meta description.
	Derived bool
}

// Read parses text and collects its signals. base is used by the readability
// fallback to resolve relative links and may be nil.
func Read(text string, base *url.URL) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	p := &Page{}
	p.Title = Title(text)
	p.Description = MetaDescription(text)
	if p.Description == "" {
		p.Description = firstParagraph(doc)
		if p.Description == "" {
			p.Description = excerpt(text, base)
		}
		p.Derived = p.Description != ""
	}
	p.Published = publishedTime(doc)
	p.HasTLDR = doc.Find(".tldr, [data-speak='tldr']").Length() > 0
	p.HasH1 = doc.Find("h1").Length() > 0

	doc.Find("ol.care-steps li").Each(func(i int, s *goquery.Selection) {
		if step := Normalize(s.Text()); step != "" {
			p.CareSteps = append(p.CareSteps, step)
		}
	})
	return p, nil
}

// Title returns the unescaped, whitespace-collapsed text of the first <title>.
func Title(text string) string {
	m := titleRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return Normalize(html.UnescapeString(m[1]))
}

// MetaDescription returns the unescaped content of the first description meta.
func MetaDescription(text string) string {
	tag, _, ok := headtag.Meta("description").Find(text)
	if !ok {
		return ""
	}
	v, _ := headtag.Attr(tag, "content")
	return Normalize(html.UnescapeString(v))
}

func firstParagraph(doc *goquery.Document) string {
	var text string
	doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text = Normalize(s.Text())
		return text == ""
	})
	return Truncate(text)
}

func excerpt(text string, base *url.URL) string {
	if base == nil {
		base = &url.URL{Scheme: "https", Host: "localhost"}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(text), base)
	if err != nil {
		return ""
	}
	return Truncate(Normalize(article.Excerpt))
}

// publishedTime returns the first <time datetime> value that parses as a date.
func publishedTime(doc *goquery.Document) string {
	var value string
	doc.Find("time[datetime]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw, _ := s.Attr("datetime")
		raw = strings.TrimSpace(raw)
		if _, err := ParseDate(raw); err == nil {
			value = raw
			return false
		}
		return true
	})
	return value
}

// Normalize collapses runs of whitespace and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Truncate shortens text longer than 155 characters to 152 characters plus
// an ellipsis.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= descriptionMax {
		return s
	}
	return strings.TrimSpace(string(r[:descriptionCut])) + "..."
}

// ParseDate parses any common date or timestamp layout.
func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseAny(strings.TrimSpace(s))
}
