package jsonld

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wsmith-bit/itstitanium/models"
)

// ErrTemplate marks a knowledge-graph template that cannot be used.
var ErrTemplate = errors.New("invalid JSON-LD template")

// Node is one object of the @graph array.
type Node = map[string]any

// Template holds the typed nodes the builder clones for every page.
type Template struct {
	Organization   Node
	WebSite        Node
	WebPage        Node
	BreadcrumbList Node
}

// ParseTemplate reads a {"@graph":[...]} document. Organization and WebSite
// nodes are required; WebPage and BreadcrumbList default to empty nodes.
func ParseTemplate(data []byte) (*Template, error) {
	var doc struct {
		Graph []Node `json:"@graph"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	t := &Template{}
	for _, node := range doc.Graph {
		typ, _ := node["@type"].(string)
		switch typ {
		case "Organization":
			t.Organization = node
		case "WebSite":
			t.WebSite = node
		case "WebPage":
			t.WebPage = node
		case "BreadcrumbList":
			t.BreadcrumbList = node
		}
	}
	if t.Organization == nil || t.WebSite == nil {
		return nil, fmt.Errorf("%w: missing Organization or WebSite node", ErrTemplate)
	}
	if t.WebPage == nil {
		t.WebPage = Node{"@type": "WebPage"}
	}
	if t.BreadcrumbList == nil {
		t.BreadcrumbList = Node{"@type": "BreadcrumbList"}
	}
	return t, nil
}

// LoadTemplate reads and parses the template file at path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return ParseTemplate(data)
}

// ParseFAQ decodes a bank of {"q":..., "a":...} entries. Blank input is an
// empty bank.
func ParseFAQ(data []byte) ([]models.FAQEntry, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var entries []models.FAQEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse FAQ bank: %w", err)
	}
	return entries, nil
}

// LoadFAQ reads the FAQ bank at path. A missing file is an empty bank.
func LoadFAQ(path string) ([]models.FAQEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read FAQ bank %s: %w", path, err)
	}
	return ParseFAQ(data)
}

func clone(n Node) Node {
	out := make(Node, len(n)+8)
	for k, v := range n {
		out[k] = v
	}
	return out
}
