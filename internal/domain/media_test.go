package domain

import "testing"

func TestContainerFormatTable(t *testing.T) {
	cases := []struct {
		name      string
		media     bool
		transcode bool
	}{
		{"movie.mp4", true, false},
		{"movie.webm", true, false},
		{"movie.mov", true, false},
		{"movie.m4v", true, false},
		{"movie.mkv", true, true},
		{"movie.avi", true, true},
		{"movie.wmv", false, true},
		{"MOVIE.MKV", true, true},
		{"notes.txt", false, false},
		{"archive.rar", false, false},
		{"noextension", false, false},
	}

	for _, tc := range cases {
		if got := IsMedia(tc.name); got != tc.media {
			t.Errorf("IsMedia(%q) = %v, want %v", tc.name, got, tc.media)
		}
		if got := NeedsTranscode(tc.name); got != tc.transcode {
			t.Errorf("NeedsTranscode(%q) = %v, want %v", tc.name, got, tc.transcode)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0.00 B"},
		{512, "512.00 B"},
		{1024, "1.00 KB"},
		{50 << 20, "50.00 MB"},
		{3 << 30, "3.00 GB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
