package utils

import "time"

// Target is one URL-to-file download task. Downloaded is only mutated by
// the downloader that owns the target for the duration of an attempt.
type Target struct {
	ID           string
	URL          string
	OutputPath   string
	ExpectedSize int64 // -1 when the server didn't report Content-Length
	Downloaded   int64
}

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ErrorKind classifies a download failure for the retry decision table.
type ErrorKind string

const (
	ErrKindNone             ErrorKind = ""
	ErrKindConnection       ErrorKind = "connection"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindRangeUnsupported ErrorKind = "range-unsupported"
	ErrKindSizeMismatch     ErrorKind = "size-mismatch"
	ErrKindProxyRejected    ErrorKind = "proxy-rejected"
	ErrKindLink             ErrorKind = "link"
)

// DownloadOutcome is the immutable result of processing one target.
type DownloadOutcome struct {
	Target       *Target
	Status       OutcomeStatus
	BytesWritten int64
	SkipReason   string
	Kind         ErrorKind
	Attempts     int
	Err          error
	Elapsed      time.Duration
}

type ProxyState string

const (
	ProxyHealthy     ProxyState = "healthy"
	ProxyUnreachable ProxyState = "unreachable"
	ProxyUnhealthy   ProxyState = "unhealthy"
)

// ProxyStatus is the result of the pre-flight health check. Checks counts
// the probe attempts made before the state was decided.
type ProxyStatus struct {
	State  ProxyState
	Checks int
}

// PoolConfig is the immutable runtime snapshot consumed by the scheduler
// and its children. Built once by the entrypoint, passed by value.
type PoolConfig struct {
	MaxDownloads   int
	MaxTorChecks   int
	MaxRetries     int
	ProxyAddr      string // host:port of the local SOCKS5 endpoint
	OutputDir      string
	UserAgent      string
	BandwidthLimit int64 // bytes/sec shared across workers, 0 = unlimited
}
