// Package parsing holds small value parsers shared across Fetcharr.
package parsing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// ParseUploadDate normalizes an engine-reported upload date (commonly
// "20060102", but any parseable form is accepted) to yyyy-mm-dd.
func ParseUploadDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty date")
	}

	// Compact yyyymmdd needs hyphenating before dateparse sees it.
	if len(raw) == 8 && isDigits(raw) {
		raw = raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return "", fmt.Errorf("unable to parse date %q: %w", raw, err)
	}
	return t.Format("2006-01-02"), nil
}

// ParseDuration converts a duration reported either as seconds or as a
// colon-separated timestamp ("1:02:03") into whole seconds.
func ParseDuration(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return int64(f), nil
	}

	var total int64
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total = total*60 + n
	}
	return total, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
