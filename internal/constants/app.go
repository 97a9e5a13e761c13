package constants

import (
	"time"
)

// Backend endpoints
const (
	PathLogin       = "/login"
	PathListFiles   = "/list-files"
	PathUpload      = "/upload"
	PathDeleteBatch = "/delete-batch"
	PathDelete      = "/delete/"
	PathFiles       = "/files/"

	// UploadFormField - multipart field name the backend reads the file from
	UploadFormField = "file"
)

// Event Bus Configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Uploads publish progress per chunk read, so small buffers drop events quickly.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Upload Configuration
const (
	// DefaultMaxConcurrent - 0 means every upload starts immediately
	DefaultMaxConcurrent = 0

	// UploadProgressChanBuffer - per-task progress channel depth
	UploadProgressChanBuffer = 64

	// UploadCopyBufferSize - bytes read from the local file per progress step (256 KB)
	UploadCopyBufferSize = 256 * 1024
)

// Download Configuration
const (
	// DownloadRetryMax - retries for public file fetches (idempotent GET only)
	DownloadRetryMax = 3

	// DownloadRetryWaitMin / DownloadRetryWaitMax bound the backoff between fetch attempts
	DownloadRetryWaitMin = 500 * time.Millisecond
	DownloadRetryWaitMax = 10 * time.Second

	// DiskSpaceSafetyMargin - free space required relative to Content-Length
	DiskSpaceSafetyMargin = 1.05
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - bound on the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// Progress UI
const (
	// ProgressRefreshRate - mpb redraw interval
	ProgressRefreshRate = 300 * time.Millisecond

	// ProgressBarWidth - total width of an upload bar line
	ProgressBarWidth = 100

	// ProgressNameWidth - truncated display width for file names
	ProgressNameWidth = 30
)

// Log file rotation (lumberjack)
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
)
