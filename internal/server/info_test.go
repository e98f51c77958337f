package server

import (
	"testing"

	"fetcharr/internal/fetch"
)

func TestInfoResponseShaping(t *testing.T) {
	info := fetch.Metadata{
		"title":         "T",
		"uploader":      "U",
		"duration":      "1:30",
		"view_count":    100.0,
		"extractor_key": "Youtube",
		"thumbnail":     "http://img.example.com/t.jpg",
		"formats": []any{
			map[string]any{
				"format_id":  "137",
				"resolution": "1920x1080",
				"ext":        "mp4",
				"vcodec":     "avc1",
			},
			"not-a-map",
		},
		"entries": []any{
			map[string]any{"title": "E1", "url": "https://example.com/1"},
		},
	}

	out := infoResponse(info)
	if out["title"] != "T" || out["uploader"] != "U" {
		t.Fatalf("basic fields wrong: %v", out)
	}
	if out["duration"] != int64(90) {
		t.Fatalf("duration = %v, want 90", out["duration"])
	}
	if out["website"] != "Youtube" {
		t.Fatalf("website = %v", out["website"])
	}
	if out["thumbnail"] != "https://img.example.com/t.jpg" {
		t.Fatalf("thumbnail not upgraded: %v", out["thumbnail"])
	}

	formats, _ := out["formats"].([]map[string]any)
	if len(formats) != 1 || formats[0]["format_id"] != "137" {
		t.Fatalf("formats = %v", formats)
	}
	entries, _ := out["entries"].([]map[string]any)
	if len(entries) != 1 || entries[0]["url"] != "https://example.com/1" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestBestThumbnailFallsBackToList(t *testing.T) {
	info := fetch.Metadata{
		"thumbnails": []any{
			map[string]any{"url": "https://img.example.com/small.jpg"},
			map[string]any{"url": "https://img.example.com/large.jpg"},
		},
	}
	if got := bestThumbnail(info); got != "https://img.example.com/large.jpg" {
		t.Fatalf("bestThumbnail = %v, want the last entry", got)
	}
	if got := bestThumbnail(fetch.Metadata{}); got != nil {
		t.Fatalf("bestThumbnail on empty metadata = %v, want nil", got)
	}
}

func TestDurationSeconds(t *testing.T) {
	if got := durationSeconds(95.7); got != int64(95) {
		t.Fatalf("float duration = %v", got)
	}
	if got := durationSeconds("2:05"); got != int64(125) {
		t.Fatalf("timestamp duration = %v", got)
	}
	if got := durationSeconds("garbage"); got != nil {
		t.Fatalf("unparseable duration = %v, want nil", got)
	}
	if got := durationSeconds(nil); got != nil {
		t.Fatalf("nil duration = %v, want nil", got)
	}
}
