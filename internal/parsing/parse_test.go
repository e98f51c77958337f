package parsing

import "testing"

func TestParseUploadDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"20240115", "2024-01-15"},
		{"2024-01-15", "2024-01-15"},
		{"Jan 15, 2024", "2024-01-15"},
		{"  20231209  ", "2023-12-09"},
	}
	for _, tt := range tests {
		got, err := ParseUploadDate(tt.in)
		if err != nil {
			t.Fatalf("ParseUploadDate(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseUploadDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseUploadDateErrors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "not a date"} {
		if _, err := ParseUploadDate(in); err == nil {
			t.Fatalf("ParseUploadDate(%q) succeeded, want error", in)
		}
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"90", 90},
		{"90.7", 90},
		{"1:30", 90},
		{"1:02:03", 3723},
		{"0:59", 59},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationErrors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "-5", "1:xx:03", "abc"} {
		if _, err := ParseDuration(in); err == nil {
			t.Fatalf("ParseDuration(%q) succeeded, want error", in)
		}
	}
}
