// Package document locates the head region of an HTML document and splices
// replacement content into it without touching any other byte.
package document

import (
	"errors"
	"regexp"
)

var ErrNoHead = errors.New("missing <head> section")

var (
	headOpenRe  = regexp.MustCompile(`(?i)<head\b[^>]*>`)
	headCloseRe = regexp.MustCompile(`(?i)</head\s*>`)
)

// Head is the located head region. Start and End span the whole element,
// from the open tag through the close tag.
type Head struct {
	Start    int
	End      int
	OpenTag  string
	Inner    string
	CloseTag string
}

// LocateHead finds the first <head>...</head> region.
func LocateHead(html string) (Head, bool) {
	open := headOpenRe.FindStringIndex(html)
	if open == nil {
		return Head{}, false
	}
	closeLoc := headCloseRe.FindStringIndex(html[open[1]:])
	if closeLoc == nil {
		return Head{}, false
	}
	closeStart := open[1] + closeLoc[0]
	closeEnd := open[1] + closeLoc[1]
	return Head{
		Start:    open[0],
		End:      closeEnd,
		OpenTag:  html[open[0]:open[1]],
		Inner:    html[open[1]:closeStart],
		CloseTag: html[closeStart:closeEnd],
	}, true
}

// ReplaceHead splices newInner into the head region. It does not re-scan the result.
func ReplaceHead(html string, h Head, newInner string) string {
	return html[:h.Start] + h.OpenTag + newInner + h.CloseTag + html[h.End:]
}

// Document is one file of the tree: its site-relative path, the text as read
// and the working text that stages edit.
type Document struct {
	Rel      string
	Original string
	Text     string
}

func New(rel, text string) *Document {
	return &Document{Rel: rel, Original: text, Text: text}
}

// Changed reports whether the working text differs from what was read.
func (d *Document) Changed() bool {
	return d.Text != d.Original
}

// EditHead runs fn over the head inner content and splices the result back.
// It returns ErrNoHead when the document has no head region.
func (d *Document) EditHead(fn func(inner string) string) error {
	h, ok := LocateHead(d.Text)
	if !ok {
		return ErrNoHead
	}
	next := fn(h.Inner)
	if next != h.Inner {
		d.Text = ReplaceHead(d.Text, h, next)
	}
	return nil
}

// HeadInner returns the current head inner content.
func (d *Document) HeadInner() (string, bool) {
	h, ok := LocateHead(d.Text)
	return h.Inner, ok
}
