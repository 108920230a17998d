package signals

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "<head><title>Titanium Pans</title></head>", "Titanium Pans"},
		{"entities and whitespace", "<title>\n  Care &amp;   Cleaning\n</title>", "Care & Cleaning"},
		{"attributes", `<title data-x="1">Guide</title>`, "Guide"},
		{"missing", "<head></head>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.in); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetaDescription(t *testing.T) {
	in := `<head><meta name="description" content="Cook &quot;safely&quot; with titanium"></head>`
	if got, want := MetaDescription(in), `Cook "safely" with titanium`; got != want {
		t.Errorf("MetaDescription() = %q, want %q", got, want)
	}
	if got := MetaDescription("<head></head>"); got != "" {
		t.Errorf("MetaDescription() = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", 155)
	if got := Truncate(short); got != short {
		t.Errorf("Truncate() changed a 155-character string")
	}

	long := strings.Repeat("b", 200)
	got := Truncate(long)
	if want := strings.Repeat("b", 152) + "..."; got != want {
		t.Errorf("Truncate() = %q, want %q", got, want)
	}
}

func TestRead_ExistingDescription(t *testing.T) {
	text := `<html><head><title>Pans</title><meta name="description" content="Existing"></head>
<body><h1>Pans</h1><p>Body text.</p></body></html>`
	p, err := Read(text, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if p.Description != "Existing" || p.Derived {
		t.Errorf("Description = %q, Derived = %v, want Existing, false", p.Description, p.Derived)
	}
	if !p.HasH1 || p.HasTLDR {
		t.Errorf("HasH1/HasTLDR = %v/%v, want true/false", p.HasH1, p.HasTLDR)
	}
}

func TestRead_DerivedDescription(t *testing.T) {
	long := strings.Repeat("Titanium cookware lasts. ", 10)
	text := `<html><head><title>Pans</title></head>
<body><p>   </p><p>` + long + `</p></body></html>`
	p, err := Read(text, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !p.Derived {
		t.Errorf("Derived = false, want true")
	}
	if want := Truncate(Normalize(long)); p.Description != want {
		t.Errorf("Description = %q, want %q", p.Description, want)
	}
	if !strings.HasSuffix(p.Description, "...") {
		t.Errorf("Description = %q, want ellipsis suffix", p.Description)
	}
}

func TestRead_ExcerptWithoutParagraphs(t *testing.T) {
	body := strings.Repeat("Titanium cookware heats evenly, resists corrosion, and never needs seasoning. ", 6)
	text := `<html><head><title>Pans</title></head>
<body><article>
<div>` + body + `</div>
<div>` + body + `</div>
</article></body></html>`
	base, _ := url.Parse("https://itstitanium.com/")
	p, err := Read(text, base)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !p.Derived || !strings.HasPrefix(p.Description, "Titanium cookware heats evenly") {
		t.Errorf("Description = %q, Derived = %v, want the readability excerpt", p.Description, p.Derived)
	}
	if n := len([]rune(p.Description)); n > 155 {
		t.Errorf("len(Description) = %d, want at most 155", n)
	}
}

func TestRead_Published(t *testing.T) {
	text := `<html><head></head><body>
<time datetime="not a date">soon</time>
<time datetime="2024-03-05">March 5</time>
<time datetime="2025-01-01">later</time>
</body></html>`
	p, err := Read(text, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if p.Published != "2024-03-05" {
		t.Errorf("Published = %q, want 2024-03-05", p.Published)
	}
}

func TestRead_MarkersAndSteps(t *testing.T) {
	text := `<html><head></head><body>
<section id="blog"><h1>Care</h1>
<div data-speak="tldr">Short version.</div>
<ol class="care-steps">
  <li>Rinse   with warm water</li>
  <li> </li>
  <li>Dry
      thoroughly</li>
</ol></section></body></html>`
	p, err := Read(text, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !p.HasTLDR || !p.HasH1 {
		t.Errorf("HasTLDR/HasH1 = %v/%v, want both true", p.HasTLDR, p.HasH1)
	}
	want := []string{"Rinse with warm water", "Dry thoroughly"}
	if diff := cmp.Diff(want, p.CareSteps); diff != "" {
		t.Errorf("CareSteps mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate(" 2024-02-29 "); err != nil {
		t.Errorf("ParseDate() error = %v", err)
	}
	if _, err := ParseDate("someday"); err == nil {
		t.Errorf("ParseDate() error = nil, want error")
	}
}
