package headtag

import (
	"regexp"
	"strings"
)

var jsonLDRe = regexp.MustCompile(`(?is)<script\b[^>]*\btype\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script\s*>`)

// JSONLDBlocks returns the raw contents of every JSON-LD script block outside
// comments, in order.
func JSONLDBlocks(text string) []string {
	var blocks []string
	for _, m := range live(text, jsonLDRe.FindAllStringSubmatchIndex(text, -1)) {
		blocks = append(blocks, text[m[2]:m[3]])
	}
	return blocks
}

// ReplaceJSONLD leaves exactly one JSON-LD block holding json in inner. A single
// existing block is rewritten in place; several are removed and one block is
// appended. It returns the new inner text, whether it differs from the input
// and how many blocks were present before.
func ReplaceJSONLD(inner, json string) (string, bool, int) {
	block := "<script type=\"application/ld+json\">\n" + json + "\n  </script>"
	locs := live(inner, jsonLDRe.FindAllStringIndex(inner, -1))
	if len(locs) == 1 {
		start, end := locs[0][0], locs[0][1]
		next := inner[:start] + block + inner[end:]
		return next, next != inner, 1
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		// Take the whole line when the block sits on its own line.
		lineStart := start
		for lineStart > last && (inner[lineStart-1] == ' ' || inner[lineStart-1] == '\t') {
			lineStart--
		}
		if lineStart == 0 || inner[lineStart-1] == '\n' {
			start = lineStart
			lineEnd := end
			for lineEnd < len(inner) && (inner[lineEnd] == ' ' || inner[lineEnd] == '\t' || inner[lineEnd] == '\r') {
				lineEnd++
			}
			if lineEnd < len(inner) && inner[lineEnd] == '\n' {
				end = lineEnd + 1
			}
		}
		b.WriteString(inner[last:start])
		last = end
	}
	b.WriteString(inner[last:])

	next := AppendLine(b.String(), block)
	return next, next != inner, len(locs)
}
