// Package headtag is the idempotent insert-or-replace primitive for line-oriented
// head elements (meta, link, JSON-LD script blocks).
//
// Elements are located by tag kind and matched on parsed attribute values, so
// attribute order and quoting style do not matter. Edits only ever touch the
// matched element's bytes.
package headtag

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Mode selects what Upsert does when a matching element already exists.
type Mode int

const (
	// Force replaces an existing element whose text differs from the desired text.
	Force Mode = iota
	// Fill only inserts missing elements and never rewrites an existing one.
	Fill
)

func (m Mode) String() string {
	if m == Fill {
		return "fill"
	}
	return "force"
}

// Key matches when any of Names carries Value (values compare case-insensitively).
type Key struct {
	Names []string
	Value string
}

// Pattern identifies one logical head element, e.g. <meta property="og:title">.
type Pattern struct {
	Element string
	Keys    []Key
}

// Meta matches a <meta> whose attribute (any of attrs) equals key.
func Meta(key string, attrs ...string) Pattern {
	if len(attrs) == 0 {
		attrs = []string{"name"}
	}
	return Pattern{Element: "meta", Keys: []Key{{Names: attrs, Value: key}}}
}

// Link matches a <link rel="..."> with optional sizes.
func Link(rel, sizes string) Pattern {
	p := Pattern{Element: "link", Keys: []Key{{Names: []string{"rel"}, Value: rel}}}
	if sizes != "" {
		p.Keys = append(p.Keys, Key{Names: []string{"sizes"}, Value: sizes})
	}
	return p
}

func (p Pattern) String() string {
	var b strings.Builder
	b.WriteString("<" + p.Element)
	for _, k := range p.Keys {
		fmt.Fprintf(&b, " %s=%q", strings.Join(k.Names, "|"), k.Value)
	}
	b.WriteString(">")
	return b.String()
}

var (
	elementMu sync.Mutex
	elementRe = map[string]*regexp.Regexp{}

	commentRe = regexp.MustCompile(`(?s)<!--.*?(?:-->|$)`)
	attrRe    = regexp.MustCompile(`([^\s"'<>/=]+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'=<>` + "`" + `]+)))?`)
)

func tagRegexp(element string) *regexp.Regexp {
	elementMu.Lock()
	defer elementMu.Unlock()
	re, ok := elementRe[element]
	if !ok {
		re = regexp.MustCompile(`(?i)<` + regexp.QuoteMeta(element) + `\b[^>]*>`)
		elementRe[element] = re
	}
	return re
}

// attrBody returns the attribute section of a start tag and its offset in tag.
func attrBody(tag string) (string, int) {
	body := strings.TrimRight(tag, " \t\r\n")
	body = strings.TrimSuffix(body, ">")
	body = strings.TrimSuffix(body, "/")
	lead := len(body) - len(strings.TrimLeft(body, " \t\r\n"))
	i := strings.IndexAny(body[lead:], " \t\r\n")
	if i < 0 {
		return "", 0
	}
	return body[lead+i:], lead + i
}

// Attrs parses the attributes of a single start tag. Names are lowercased and
// the first occurrence of a name wins.
func Attrs(tag string) map[string]string {
	body, _ := attrBody(tag)
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(body, -1) {
		name := strings.ToLower(m[1])
		if _, seen := attrs[name]; seen {
			continue
		}
		attrs[name] = m[2] + m[3] + m[4]
	}
	return attrs
}

// AttrSpan returns the [start, end) span within tag of the attribute Attr
// reads for name, covering the name and any value.
func AttrSpan(tag, name string) ([]int, bool) {
	body, offset := attrBody(tag)
	name = strings.ToLower(name)
	for _, m := range attrRe.FindAllStringSubmatchIndex(body, -1) {
		if strings.ToLower(body[m[2]:m[3]]) == name {
			return []int{offset + m[0], offset + m[1]}, true
		}
	}
	return nil, false
}

// Attr returns a single attribute value of a start tag.
func Attr(tag, name string) (string, bool) {
	v, ok := Attrs(tag)[strings.ToLower(name)]
	return v, ok
}

func (p Pattern) matches(tag string) bool {
	attrs := Attrs(tag)
	for _, k := range p.Keys {
		found := false
		for _, n := range k.Names {
			if v, ok := attrs[strings.ToLower(n)]; ok && strings.EqualFold(strings.TrimSpace(v), k.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// live drops the spans that start inside an HTML comment of text.
func live(text string, spans [][]int) [][]int {
	comments := commentRe.FindAllStringIndex(text, -1)
	if len(comments) == 0 {
		return spans
	}
	out := spans[:0]
	for _, span := range spans {
		commented := false
		for _, c := range comments {
			if span[0] >= c[0] && span[0] < c[1] {
				commented = true
				break
			}
		}
		if !commented {
			out = append(out, span)
		}
	}
	return out
}

// FindAll returns the [start, end) spans of every matching element in document
// order. Elements inside comments are ignored.
func (p Pattern) FindAll(inner string) [][]int {
	var spans [][]int
	for _, loc := range live(inner, tagRegexp(p.Element).FindAllStringIndex(inner, -1)) {
		if p.matches(inner[loc[0]:loc[1]]) {
			spans = append(spans, loc)
		}
	}
	return spans
}

// Find returns the first matching element and its span.
func (p Pattern) Find(inner string) (string, []int, bool) {
	spans := p.FindAll(inner)
	if len(spans) == 0 {
		return "", nil, false
	}
	loc := spans[0]
	return inner[loc[0]:loc[1]], loc, true
}

// Exists reports whether at least one element matches.
func (p Pattern) Exists(inner string) bool {
	_, _, ok := p.Find(inner)
	return ok
}

// Count returns the number of matching elements. More than one is a duplicate.
func (p Pattern) Count(inner string) int {
	return len(p.FindAll(inner))
}

// Upsert inserts desired when no element matches, replaces the first match when
// mode is Force and its trimmed text differs, and otherwise leaves inner alone.
// Running it twice with the same arguments never reports a second change.
func Upsert(inner string, p Pattern, desired string, mode Mode) (string, bool) {
	desired = strings.TrimSpace(desired)
	current, loc, ok := p.Find(inner)
	if ok {
		if mode == Fill || strings.TrimSpace(current) == desired {
			return inner, false
		}
		return inner[:loc[0]] + desired + inner[loc[1]:], true
	}
	return AppendLine(inner, desired), true
}

// AppendLine trims trailing whitespace and adds line as the last indented line.
func AppendLine(inner, line string) string {
	return strings.TrimRight(inner, " \t\r\n") + "\n  " + line + "\n"
}

var entityRe = regexp.MustCompile(`&(?:[a-zA-Z0-9]+|#\d+|#x[a-fA-F0-9]+);|&`)

// EscapeAttr escapes a value for a double-quoted attribute. Existing entities
// are kept so that escaping an already escaped value is a no-op.
func EscapeAttr(value string) string {
	value = entityRe.ReplaceAllStringFunc(value, func(m string) string {
		if m == "&" {
			return "&amp;"
		}
		return m
	})
	value = strings.ReplaceAll(value, `"`, "&quot;")
	return strings.ReplaceAll(value, "'", "&#39;")
}

// MetaTag builds <meta attr="key" content="value">.
func MetaTag(attr, key, content string) string {
	return fmt.Sprintf(`<meta %s="%s" content="%s">`, attr, key, EscapeAttr(content))
}

// LinkTag builds <link rel href [sizes] [type]>.
func LinkTag(rel, href, sizes, typ string) string {
	parts := []string{fmt.Sprintf(`rel="%s"`, rel), fmt.Sprintf(`href="%s"`, EscapeAttr(href))}
	if sizes != "" {
		parts = append(parts, fmt.Sprintf(`sizes="%s"`, sizes))
	}
	if typ != "" {
		parts = append(parts, fmt.Sprintf(`type="%s"`, typ))
	}
	return "<link " + strings.Join(parts, " ") + ">"
}
