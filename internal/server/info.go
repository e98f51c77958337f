package server

import (
	"strings"

	"fetcharr/internal/fetch"
	"fetcharr/internal/parsing"
)

// infoResponse shapes an engine metadata document for the /api/info
// endpoint: selected top-level fields, the available formats, and playlist
// entries when present.
func infoResponse(info fetch.Metadata) map[string]any {
	formats := make([]map[string]any, 0)
	if rawFormats, ok := info["formats"].([]any); ok {
		for _, rf := range rawFormats {
			fm, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			formats = append(formats, map[string]any{
				"format_id":   fm["format_id"],
				"format_note": fm["format_note"],
				"resolution":  fm["resolution"],
				"ext":         fm["ext"],
				"filesize":    fm["filesize"],
				"vcodec":      fm["vcodec"],
				"acodec":      fm["acodec"],
				"fps":         fm["fps"],
				"abr":         fm["abr"],
			})
		}
	}

	entries := make([]map[string]any, 0)
	if rawEntries, ok := info["entries"].([]any); ok {
		for _, re := range rawEntries {
			em, ok := re.(map[string]any)
			if !ok {
				continue
			}
			entryURL := em["webpage_url"]
			if entryURL == nil {
				entryURL = em["url"]
			}
			entries = append(entries, map[string]any{
				"title": em["title"],
				"url":   entryURL,
			})
		}
	}

	return map[string]any{
		"title":       info["title"],
		"uploader":    info["uploader"],
		"duration":    durationSeconds(info["duration"]),
		"view_count":  info["view_count"],
		"description": info["description"],
		"website":     info["extractor_key"],
		"thumbnail":   bestThumbnail(info),
		"formats":     formats,
		"entries":     entries,
		"subtitles":   info["subtitles"],
	}
}

// bestThumbnail picks the top-level thumbnail, falling back to the last
// entry of the thumbnails list, preferring https.
func bestThumbnail(info fetch.Metadata) any {
	thumb, _ := info["thumbnail"].(string)
	if thumb == "" {
		if thumbs, ok := info["thumbnails"].([]any); ok && len(thumbs) > 0 {
			if last, ok := thumbs[len(thumbs)-1].(map[string]any); ok {
				thumb, _ = last["url"].(string)
			}
		}
	}
	if thumb == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(thumb, "http://"); ok {
		thumb = "https://" + rest
	}
	return thumb
}

// durationSeconds normalizes a duration reported as a number or timestamp
// string to whole seconds, nil when unparseable.
func durationSeconds(raw any) any {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return nil
		}
		return int64(v)
	case string:
		secs, err := parsing.ParseDuration(v)
		if err != nil {
			return nil
		}
		return secs
	}
	return nil
}
