// Package downloader performs single URL-to-file transfers through the
// SOCKS proxy: streamed chunk writes, byte-range resumption of partial
// files, and a bounded retry loop with an error-kind decision table.
package downloader

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// LinkError marks a URL that can never download: malformed, unsupported
// scheme, or a 404 from the server. Never retried.
type LinkError struct {
	URL    string
	Reason string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("bad link %s: %s", e.URL, e.Reason)
}

// errAlreadyComplete signals a 416 response to a resume request: the local
// file already holds the whole body.
var errAlreadyComplete = errors.New("requested range not satisfiable, file already complete")

type Downloader struct {
	client  *utils.TorHTTPClient
	limiter *rate.Limiter
	cfg     utils.PoolConfig
}

func New(cfg utils.PoolConfig) *Downloader {
	client := utils.NewTorHTTPClient(utils.HTTPClientConfig{
		SocksAddr:   cfg.ProxyAddr,
		UserAgent:   cfg.UserAgent,
		InsecureTLS: true, // onion services rarely carry CA-signed certs
	})
	return NewWithClient(cfg, client)
}

// NewWithClient lets callers supply their own client, e.g. one without a
// proxy configured.
func NewWithClient(cfg utils.PoolConfig, client *utils.TorHTTPClient) *Downloader {
	var limiter *rate.Limiter
	if cfg.BandwidthLimit > 0 {
		burst := int(cfg.BandwidthLimit)
		if burst < utils.DefaultBufferSize {
			burst = utils.DefaultBufferSize
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.BandwidthLimit), burst)
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	return &Downloader{client: client, limiter: limiter, cfg: cfg}
}

// NewTarget wraps a raw URL into an unresolved target.
func NewTarget(rawURL string) *utils.Target {
	return &utils.Target{
		ID:           uuid.NewString(),
		URL:          rawURL,
		ExpectedSize: -1,
	}
}

// Resolve fills in a target's destination file name and, when the server
// reports one, the expected size. A failed HEAD request is not fatal; the
// size just stays unknown.
func (d *Downloader) Resolve(target *utils.Target) error {
	log := utils.GetLogger("downloader")
	parsed, err := url.Parse(target.URL)
	if err != nil {
		return &LinkError{URL: target.URL, Reason: "invalid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &LinkError{URL: target.URL, Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	name := utils.FilenameFromURL(target.URL)
	size, headerName, err := d.fileInfo(target.URL)
	if err != nil {
		var linkErr *LinkError
		if errors.As(err, &linkErr) {
			return err
		}
		log.Debug().Err(err).Str("url", target.URL).Msg("HEAD request failed, expected size unknown")
	} else {
		target.ExpectedSize = size
		if path.Ext(name) == "" && headerName != "" {
			name = headerName
		}
	}
	target.OutputPath = filepath.Join(d.cfg.OutputDir, name)
	return nil
}

// Fetch runs the full transfer for one target. Failures local to the
// target are retried up to the budget; the decision table is:
//
//	link error / 404        -> fail, no retry
//	proxy rejected routing  -> fail, no retry without a fresh health check
//	connection / timeout    -> retry with backoff
//	non-206 resume response -> restart from byte zero inside the attempt
//	size mismatch at end    -> fail (corruption signal)
func (d *Downloader) Fetch(target *utils.Target, progressCh chan<- int64) utils.DownloadOutcome {
	log := utils.GetLogger("downloader")
	start := time.Now()

	if target.ExpectedSize > 0 {
		if info, err := os.Stat(target.OutputPath); err == nil && info.Size() == target.ExpectedSize {
			log.Info().Str("file", target.OutputPath).Msg("File already fully downloaded, skipping")
			return utils.DownloadOutcome{
				Target:     target,
				Status:     utils.OutcomeSkipped,
				SkipReason: "already complete",
				Elapsed:    time.Since(start),
			}
		}
	}

	var lastErr error
	var kind utils.ErrorKind
	attempts := 0
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		attempts = attempt
		if attempt > 1 {
			log.Warn().Str("url", target.URL).Int("attempt", attempt).Int("maxRetries", d.cfg.MaxRetries).Msg("Retrying download")
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		written, err := d.downloadAttempt(target, progressCh)
		if err == nil {
			if target.ExpectedSize > 0 {
				if info, statErr := os.Stat(target.OutputPath); statErr == nil && info.Size() != target.ExpectedSize {
					log.Error().Str("file", target.OutputPath).Int64("size", info.Size()).Int64("expected", target.ExpectedSize).Msg("Final size does not match expected size")
					return utils.DownloadOutcome{
						Target:   target,
						Status:   utils.OutcomeFailed,
						Kind:     utils.ErrKindSizeMismatch,
						Attempts: attempts,
						Err:      fmt.Errorf("final size %d does not match expected %d", info.Size(), target.ExpectedSize),
						Elapsed:  time.Since(start),
					}
				}
			}
			log.Info().Str("url", target.URL).Str("file", target.OutputPath).Int64("bytes", written).Msg("Download finished")
			return utils.DownloadOutcome{
				Target:       target,
				Status:       utils.OutcomeCompleted,
				BytesWritten: written,
				Attempts:     attempts,
				Elapsed:      time.Since(start),
			}
		}
		if errors.Is(err, errAlreadyComplete) {
			log.Info().Str("file", target.OutputPath).Msg("Server reports range satisfied, download already complete")
			return utils.DownloadOutcome{
				Target:     target,
				Status:     utils.OutcomeSkipped,
				SkipReason: "server reports file already complete",
				Elapsed:    time.Since(start),
			}
		}
		lastErr = err
		kind = Classify(err)
		log.Error().Err(err).Str("url", target.URL).Str("kind", string(kind)).Int("attempt", attempt).Msg("Download attempt failed")
		if kind == utils.ErrKindLink || kind == utils.ErrKindProxyRejected {
			break
		}
	}
	return utils.DownloadOutcome{
		Target:   target,
		Status:   utils.OutcomeFailed,
		Kind:     kind,
		Attempts: attempts,
		Err:      lastErr,
		Elapsed:  time.Since(start),
	}
}
