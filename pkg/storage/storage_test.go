package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestListHTML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html></html>")
	writeFile(t, root, "blog/post.html", "<html></html>")
	writeFile(t, root, "blog/index.html", "<html></html>")
	writeFile(t, root, "assets/site.css", "body{}")
	writeFile(t, root, ".drafts/hidden.html", "<html></html>")
	writeFile(t, root, "blog/.secret.html", "<html></html>")

	s := New(root)
	got, err := s.ListHTML()
	if err != nil {
		t.Fatalf("ListHTML() error = %v", err)
	}
	want := []string{"blog/index.html", "blog/post.html", "index.html"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListHTML() = %v, want %v", got, want)
	}
}

func TestSaveIfChanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "same")
	s := New(root)

	wrote, err := s.SaveIfChanged("index.html", []byte("same"))
	if err != nil {
		t.Fatalf("SaveIfChanged() error = %v", err)
	}
	if wrote {
		t.Error("SaveIfChanged() wrote identical content")
	}

	wrote, err = s.SaveIfChanged("index.html", []byte("different"))
	if err != nil {
		t.Fatalf("SaveIfChanged() error = %v", err)
	}
	if !wrote {
		t.Error("SaveIfChanged() did not write changed content")
	}
	data, _ := s.ReadFile("index.html")
	if string(data) != "different" {
		t.Errorf("file content = %q, want %q", data, "different")
	}
}

func TestHasFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "assets/img/hero.webp", "x")
	s := New(root)

	tests := []struct {
		rel  string
		want bool
	}{
		{"/assets/img/hero.webp", true},
		{"assets/img/hero.webp?v=2", true},
		{"/assets/img/hero.webp#frag", true},
		{"/assets/img", false},
		{"/missing.png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := s.HasFile(tt.rel); got != tt.want {
			t.Errorf("HasFile(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
