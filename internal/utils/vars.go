package utils

import "errors"

// Small chunks keep a dropped Tor circuit cheap to retry; the bytes already
// flushed to disk are kept for resumption.
const DefaultBufferSize = 64 * 1024

const ToolUserAgent = "TorDownloader-CLI"

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")
