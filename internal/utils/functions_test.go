package utils

import "testing"

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.onion/files/archive.zip", "archive.zip"},
		{"http://example.onion/files/archive.zip?token=abc", "archive.zip"},
		{"http://example.onion/", "download"},
		{"http://example.onion", "download"},
		{"http://example.onion/weird%20name.tar.gz", "weird name.tar.gz"},
		{"http://example.onion/data/ev!l*file.bin", "ev_l_file.bin"},
	}
	for _, tt := range tests {
		if got := FilenameFromURL(tt.url); got != tt.want {
			t.Errorf("FilenameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{500, "500 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
