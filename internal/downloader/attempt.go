package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// downloadAttempt performs one streamed transfer pass, resuming from the
// destination file's current size. Returns the total bytes on disk after
// the pass. Bytes already flushed stay in place on error so the next
// attempt (or the next run) can resume.
func (d *Downloader) downloadAttempt(target *utils.Target, progressCh chan<- int64) (int64, error) {
	log := utils.GetLogger("downloader")
	if err := os.MkdirAll(filepath.Dir(target.OutputPath), 0755); err != nil {
		return 0, fmt.Errorf("error creating output directory: %v", err)
	}

	var resumeOffset int64 = 0
	fileMode := os.O_CREATE | os.O_WRONLY
	if fileInfo, err := os.Stat(target.OutputPath); err == nil {
		resumeOffset = fileInfo.Size()
		fileMode |= os.O_APPEND
	} else {
		fileMode |= os.O_TRUNC
	}

	outFile, err := os.OpenFile(target.OutputPath, fileMode, 0644)
	if err != nil {
		return 0, fmt.Errorf("error creating output file: %v", err)
	}
	defer outFile.Close()

	req, err := http.NewRequest("GET", target.URL, nil)
	if err != nil {
		return 0, &LinkError{URL: target.URL, Reason: err.Error()}
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
		log.Debug().Str("file", filepath.Base(target.OutputPath)).Int64("resumeOffset", resumeOffset).Msg("Resuming incomplete download")
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := d.client.Do(req)
	if err != nil {
		return resumeOffset, fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return resumeOffset, &LinkError{URL: target.URL, Reason: "received 404, recheck download links"}
	case http.StatusRequestedRangeNotSatisfiable:
		return resumeOffset, errAlreadyComplete
	}

	if resumeOffset > 0 {
		if resp.StatusCode != http.StatusPartialContent {
			// Informational, not fatal: restart the transfer from zero.
			log.Warn().Err(utils.ErrRangeRequestsNotSupported).Str("kind", string(utils.ErrKindRangeUnsupported)).Int("statusCode", resp.StatusCode).Str("url", target.URL).Msg("Restarting download from byte zero")
			outFile.Close()
			outFile, err = os.OpenFile(target.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return 0, fmt.Errorf("error recreating output file: %v", err)
			}
			defer outFile.Close()
			resumeOffset = 0
		}
	} else if resp.StatusCode != http.StatusOK {
		return resumeOffset, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Align the progress counter with the bytes on disk, taking back
	// anything a failed attempt already reported or a restart discarded.
	if delta := resumeOffset - target.Downloaded; delta != 0 {
		progressCh <- delta
	}
	target.Downloaded = resumeOffset
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if d.limiter != nil {
				if err := d.limiter.WaitN(context.Background(), bytesRead); err != nil {
					return target.Downloaded, fmt.Errorf("error waiting for bandwidth limiter: %v", err)
				}
			}
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return target.Downloaded, fmt.Errorf("error writing to output file: %v", writeErr)
			}
			target.Downloaded += int64(bytesRead)
			progressCh <- int64(bytesRead)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return target.Downloaded, fmt.Errorf("error reading response body: %w", readErr)
		}
	}
	outFile.Sync()
	return target.Downloaded, nil
}
