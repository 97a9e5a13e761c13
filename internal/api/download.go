package api

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/diskspace"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/progress"
)

// retryLogger adapts the logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Downloader fetches files through their public links.
// These GETs are idempotent and carry no credential, so unlike the
// authenticated client they are retried with backoff.
type Downloader struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewDownloader wraps httpClient with retry logic.
func NewDownloader(httpClient *nethttp.Client, baseURL string, logger *logging.Logger) *Downloader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.DownloadRetryMax
	retryClient.RetryWaitMin = constants.DownloadRetryWaitMin
	retryClient.RetryWaitMax = constants.DownloadRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand back the last response once retries run out so a persistent 5xx
	// is reported with its status rather than as a network failure.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Downloader{client: retryClient, baseURL: baseURL}
}

// Download streams /files/{uniqueName} into w and returns the byte count.
// The reporter receives the running total; a nil reporter disables progress.
func (d *Downloader) Download(ctx context.Context, uniqueName string, w io.Writer, reporter progress.Reporter) (int64, error) {
	resp, err := d.fetch(ctx, uniqueName)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return copyBody(resp, uniqueName, w, reporter)
}

// DownloadFile saves /files/{uniqueName} at path. When the server announces
// the size, free space is checked before path is created. A partial file is
// removed on failure.
func (d *Downloader) DownloadFile(ctx context.Context, uniqueName, path string, reporter progress.Reporter) (int64, error) {
	resp, err := d.fetch(ctx, uniqueName)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := diskspace.CheckAvailableSpace(path, resp.ContentLength, constants.DiskSpaceSafetyMargin); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := copyBody(resp, uniqueName, f, reporter)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write %s: %w", path, cerr)
	}
	if err != nil {
		os.Remove(path)
		return n, err
	}
	return n, nil
}

func (d *Downloader) fetch(ctx context.Context, uniqueName string) (*nethttp.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, fileURL(d.baseURL, uniqueName), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "download " + uniqueName, Err: err}
	}

	if resp.StatusCode == nethttp.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("file %s not found", uniqueName)
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, fmt.Errorf("download %s failed: status %d: %s", uniqueName, resp.StatusCode, ReadErrorBody(resp))
	}
	return resp, nil
}

func copyBody(resp *nethttp.Response, uniqueName string, w io.Writer, reporter progress.Reporter) (int64, error) {
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}
	reporter.Start(resp.ContentLength, uniqueName)

	n, err := io.Copy(w, progress.NewProgressReader(resp.Body, resp.ContentLength, reporter))
	if err != nil {
		reporter.Error(err)
		return n, fmt.Errorf("download %s interrupted: %w", uniqueName, err)
	}
	reporter.Finish()
	return n, nil
}
