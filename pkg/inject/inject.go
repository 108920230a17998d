// Package inject keeps the shared body widgets in sync: the affiliate
// disclosure section on every page and the FAQ list on index pages.
package inject

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/wsmith-bit/itstitanium/models"
)

// Change messages recorded for the two widgets.
const (
	FixDisclosure = "Updated disclosure block"
	FixFAQ        = "Synced FAQ module"
)

var (
	disclosureRe = regexp.MustCompile(`(?i)<section[^>]*id=["']disclosure["'][\s\S]*?</section>`)
	faqSectionRe = regexp.MustCompile(`(?i)(<section[^>]*id=["']faqs["'][^>]*>)([\s\S]*?)(</section>)`)
	mainOpenRe   = regexp.MustCompile(`(?i)<main[^>]*>`)
	bodyOpenRe   = regexp.MustCompile(`(?i)<body[^>]*>`)
	slugRe       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Escape encodes the five HTML-significant characters.
func Escape(s string) string {
	return html.EscapeString(s)
}

// LoadDisclosure reads and trims the disclosure text.
func LoadDisclosure(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read disclosure %s: %w", p, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// DisclosureHTML renders the disclosure section for text.
func DisclosureHTML(text string) string {
	return "<section class=\"disclosure\" id=\"disclosure\">\n      <p>" + Escape(text) + "</p>\n    </section>"
}

// UpsertDisclosure replaces an existing disclosure section, or inserts one
// after <main>, after <body>, or at the end of the document, in that order.
func UpsertDisclosure(text, section string) string {
	if loc := disclosureRe.FindStringIndex(text); loc != nil {
		return text[:loc[0]] + section + text[loc[1]:]
	}
	if loc := mainOpenRe.FindStringIndex(text); loc != nil {
		return text[:loc[1]] + "\n    " + section + text[loc[1]:]
	}
	if loc := bodyOpenRe.FindStringIndex(text); loc != nil {
		return text[:loc[1]] + "\n  " + section + text[loc[1]:]
	}
	return text + "\n" + section
}

// Slug derives the anchor id of a FAQ entry from its question.
func Slug(question string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(question), "-")
	return "faq-" + strings.Trim(s, "-")
}

// FAQHTML renders the FAQ list.
func FAQHTML(entries []models.FAQEntry) string {
	if len(entries) == 0 {
		return `            <div class="faq-list"></div>`
	}
	var b strings.Builder
	b.WriteString("            <div class=\"faq-list\">\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "              <details id=\"%s\"><summary>%s</summary><div>%s</div></details>\n",
			Slug(e.Question), Escape(e.Question), Escape(e.Answer))
	}
	b.WriteString("            </div>")
	return b.String()
}

// ReplaceFAQ swaps the contents of the first faqs section for list. Documents
// without one are returned unchanged.
func ReplaceFAQ(text, list string) string {
	m := faqSectionRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text
	}
	open := text[m[2]:m[3]]
	closing := text[m[6]:m[7]]
	return text[:m[0]] + open + "\n" + list + "\n          " + closing + text[m[1]:]
}

// Counts tallies widget updates from per-document fixes.
func Counts(fixes [][]string) (disclosure, faq int) {
	for _, fs := range fixes {
		for _, f := range fs {
			switch f {
			case FixDisclosure:
				disclosure++
			case FixFAQ:
				faq++
			}
		}
	}
	return disclosure, faq
}
