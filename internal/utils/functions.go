package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
)

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// FilenameFromURL derives a destination file name from the URL path. The
// same URL always maps to the same name so a rerun resumes the same file.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	name = filenameSanitizer.ReplaceAllString(name, "_")
	if name == "" {
		return "download"
	}
	return name
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}
