package downloader

import (
	"context"
	"errors"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// fileInfo issues a HEAD request for the expected size and a server-side
// file name. Size is -1 when the server doesn't report Content-Length.
func (d *Downloader) fileInfo(link string) (int64, string, error) {
	req, err := http.NewRequest("HEAD", link, nil)
	if err != nil {
		return -1, "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return -1, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return -1, "", &LinkError{URL: link, Reason: "received 404, recheck download links"}
	}
	if resp.StatusCode >= 400 {
		return -1, "", errors.New("server returned error: " + strconv.Itoa(resp.StatusCode))
	}
	filename := headerFilename(resp)
	contentLength := resp.Header.Get("Content-Length")
	if contentLength == "" {
		return -1, filename, nil
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || size <= 0 {
		return -1, filename, nil
	}
	return size, filename, nil
}

func headerFilename(resp *http.Response) string {
	if contentDisposition := resp.Header.Get("Content-Disposition"); contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn, ok := params["filename"]; ok && fn != "" {
				return utils.FilenameFromURL(fn)
			}
		}
	}
	if location := resp.Header.Get("Location"); location != "" {
		return utils.FilenameFromURL(location)
	}
	return ""
}

// Classify maps an attempt error onto the retry decision table.
func Classify(err error) utils.ErrorKind {
	if err == nil {
		return utils.ErrKindNone
	}
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return utils.ErrKindLink
	}
	if errors.Is(err, utils.ErrRangeRequestsNotSupported) {
		return utils.ErrKindRangeUnsupported
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return utils.ErrKindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return utils.ErrKindTimeout
	}
	// The transport's SOCKS dialer prefixes routing refusals from the
	// proxy with "socks connect".
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if strings.Contains(urlErr.Err.Error(), "socks connect") {
			return utils.ErrKindProxyRejected
		}
	}
	if strings.Contains(err.Error(), "socks connect") {
		return utils.ErrKindProxyRejected
	}
	return utils.ErrKindConnection
}
