package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go-video-parse/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
	ErrTooLarge    = errors.New("response body too large")
)

// DefaultMaxFetchSize caps how much FetchBytes holds in memory for one URL.
const DefaultMaxFetchSize int64 = 64 << 20

// DefaultFileName is used when a URL has no usable last path segment.
const DefaultFileName = "download"

// Downloader fetches media bytes and writes them into an output directory.
type Downloader struct {
	client *http.Client
	// MaxFetchSize limits FetchBytes; zero means DefaultMaxFetchSize.
	MaxFetchSize int64
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{client: client}
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for %s: %w", ErrHttpRequest, url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request for %s: %w", ErrHttpRequest, url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, url)
	}
	return resp, nil
}

// FetchBytes downloads url fully into memory.
func (d *Downloader) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := d.MaxFetchSize
	if limit <= 0 {
		limit = DefaultMaxFetchSize
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %s declares %d bytes (limit %d)", ErrTooLarge, url, resp.ContentLength, limit)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	counter := &helpers.CounterWriter{Writer: &buf}
	if _, err := io.Copy(counter, io.LimitReader(resp.Body, limit+1)); err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	if int64(counter.Total) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, limit)
	}
	log.Debugf("Fetched %s (%s)", url, helpers.BytesToSize(counter.Total))
	return buf.Bytes(), nil
}

// DownloadFile streams url into targetDir under the name derived from the
// URL's last path segment. An existing file is never overwritten; a numeric
// suffix is added instead. Returns the final path.
func (d *Downloader) DownloadFile(ctx context.Context, targetDir string, url string) (string, error) {
	name := helpers.FileNameFromURL(url, DefaultFileName)

	resp, err := d.get(ctx, url)
	if err != nil {
		log.WithError(err).Errorf("Error downloading %s", url)
		return "", err
	}
	defer resp.Body.Close()

	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	log.Infof("Downloading %s (%s)...", name, helpers.BytesToSize(size))

	return writeAtomically(targetDir, name, func(w io.Writer) (uint64, error) {
		counter := &helpers.CounterWriter{Writer: w}
		_, err := io.Copy(counter, resp.Body)
		return counter.Total, err
	})
}

// SaveFile writes data into targetDir as name, with the same no-overwrite
// behaviour as DownloadFile. Returns the final path.
func SaveFile(targetDir, name string, data []byte) (string, error) {
	return writeAtomically(targetDir, name, func(w io.Writer) (uint64, error) {
		n, err := w.Write(data)
		return uint64(n), err
	})
}

// writeAtomically fills a temp file in targetDir and renames it into place.
func writeAtomically(targetDir, name string, fill func(io.Writer) (uint64, error)) (string, error) {
	if !helpers.CheckAndMakeDir(targetDir) {
		return "", fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}
	name = filepath.Base(helpers.SanitizePath(name))

	tempFile, err := os.CreateTemp(targetDir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, name, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	written, err := fill(tempFile)
	if err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("writing to temporary file %s: %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}

	finalPath := uniquePath(filepath.Join(targetDir, name))
	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return "", fmt.Errorf("%w: renaming %s to %s: %w", ErrFileSystem, tempFile.Name(), finalPath, err)
	}
	shouldCleanupTemp = false

	log.Infof("Saved %s (%s)", finalPath, helpers.BytesToSize(written))
	return finalPath, nil
}

// uniquePath returns path, or "name (n).ext" for the first n that is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
