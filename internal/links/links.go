// Package links loads the ordered list of URLs to download. The list is
// read once at startup and handed to the queue as an immutable sequence.
package links

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// Load reads download links from a JSON array file or a YAML list file,
// picked by extension. Order is preserved.
func Load(path string) ([]string, error) {
	log := utils.GetLogger("links")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading links file: %v", err)
	}
	var links []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &links)
	default:
		err = json.Unmarshal(data, &links)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing links file %s: %v", path, err)
	}
	links = dropEmpty(links)
	if len(links) == 0 {
		return nil, fmt.Errorf("links file %s is empty", path)
	}
	log.Info().Int("count", len(links)).Str("file", path).Msg("Loaded download links")
	log.Debug().Strs("links", links).Msg("Link list")
	return links, nil
}

// FromWeb fetches a page through the given client and extracts download
// links with the caller's regex pattern.
func FromWeb(client *utils.TorHTTPClient, url, pattern string) ([]string, error) {
	log := utils.GetLogger("links")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid link pattern: %v", err)
	}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching link page: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("link page returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading link page: %v", err)
	}
	found := re.FindAllString(string(body), -1)
	log.Info().Int("count", len(found)).Str("url", url).Msg("Found links on page")
	return dropEmpty(found), nil
}

func dropEmpty(links []string) []string {
	var out []string
	for _, link := range links {
		if strings.TrimSpace(link) != "" {
			out = append(out, strings.TrimSpace(link))
		}
	}
	return out
}
