package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestPreviewReadsOpenGraphTags(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="A Great Video">
			<meta property="og:image" content="http://img.example.com/t.jpg">
			<meta property="og:site_name" content="ExampleTube">
			<meta property="og:description" content="Watch this.">
		</head><body></body></html>`))
	}))
	defer ts.Close()

	fields := NewPreviewer().Preview(context.Background(), ts.URL)
	if fields["title"] != "A Great Video" {
		t.Fatalf("title = %v", fields["title"])
	}
	if fields["thumbnail"] != "https://img.example.com/t.jpg" {
		t.Fatalf("thumbnail not upgraded to https: %v", fields["thumbnail"])
	}
	if fields["uploader"] != "ExampleTube" {
		t.Fatalf("uploader = %v", fields["uploader"])
	}
	if fields["description"] != "Watch this." {
		t.Fatalf("description = %v", fields["description"])
	}
}

func TestPreviewFallsBackToTitleTag(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>  Plain Page  </title></head><body></body></html>`))
	}))
	defer ts.Close()

	fields := NewPreviewer().Preview(context.Background(), ts.URL)
	if fields["title"] != "Plain Page" {
		t.Fatalf("title = %v", fields["title"])
	}
}

func TestPreviewUnreachableHost(t *testing.T) {
	t.Parallel()

	fields := NewPreviewer().Preview(context.Background(), "http://127.0.0.1:1/nope")
	if len(fields) != 0 {
		t.Fatalf("expected no fields for unreachable host, got %v", fields)
	}
}

func TestBaseDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc", "youtube.com"},
		{"https://vimeo.com/12345", "vimeo.com"},
		{"http://media.example.co.uk:8080/v", "media.example.co.uk"},
	}
	for _, tt := range tests {
		got, err := baseDomain(tt.in)
		if err != nil {
			t.Fatalf("baseDomain(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("baseDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := baseDomain("not-a-url"); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

func TestSaveCookiesToFile(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/cookies.txt"
	cookies := []*http.Cookie{
		{
			Name:    "session",
			Value:   "abc123",
			Path:    "/",
			Domain:  "media.example.com",
			Secure:  true,
			Expires: time.Unix(1900000000, 0),
		},
		{Name: "pref", Value: "dark"},
	}

	if err := saveCookiesToFile(cookies, "example.com", path); err != nil {
		t.Fatalf("saveCookiesToFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cookie file: %v", err)
	}
	content := string(raw)

	if !strings.HasPrefix(content, "# Netscape HTTP Cookie File") {
		t.Fatal("missing Netscape header")
	}
	if !strings.Contains(content, ".media.example.com\tTRUE\t/\tTRUE\t1900000000\tsession\tabc123") {
		t.Fatalf("session cookie line wrong:\n%s", content)
	}
	// Domainless cookies inherit the requested domain with no dot prefix.
	if !strings.Contains(content, "example.com\tTRUE\t/\tFALSE\t0\tpref\tdark") {
		t.Fatalf("pref cookie line wrong:\n%s", content)
	}
}
