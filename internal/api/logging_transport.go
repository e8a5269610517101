package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	activeLoggingTransports []*LoggingTransport
	transportsMu            sync.Mutex
)

// LoggingTransport wraps an http.RoundTripper and appends every parse
// request and its response to a log file.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	writer    *bufio.Writer
	mu        sync.Mutex
}

// NewLoggingTransport opens logFilePath for appending and registers the
// transport so CloseAllLoggingTransports can flush it on exit.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	path := filepath.Clean(logFilePath)
	// #nosec G304
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", path, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	lt := &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}

	transportsMu.Lock()
	activeLoggingTransports = append(activeLoggingTransports, lt)
	count := len(activeLoggingTransports)
	transportsMu.Unlock()
	log.Debugf("Registered LoggingTransport for %s (%d active)", path, count)

	return lt, nil
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	if dump, err := httputil.DumpRequestOut(req, false); err != nil {
		log.WithError(err).Warn("[LogTransport] Failed to dump request")
	} else {
		t.record("Request", started, 0, string(dump))
	}

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(started)
	if err != nil {
		t.record("Response Error", time.Now(), elapsed, err.Error())
		return resp, err
	}

	headers, _ := httputil.DumpResponse(resp, false)
	if !isTextual(resp.Header.Get("Content-Type")) {
		t.record("Response", time.Now(), elapsed, string(headers)+"(body not logged)")
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		log.WithError(readErr).Warn("[LogTransport] Failed to read response body")
		t.record("Response", time.Now(), elapsed, string(headers)+"(body read failed)")
		return resp, nil
	}
	t.record("Response", time.Now(), elapsed, string(headers)+string(body))
	return resp, nil
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/")
}

func (t *LoggingTransport) record(kind string, at time.Time, elapsed time.Duration, payload string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("--- %s (%s) ---", kind, at.Format(time.RFC3339))
	if elapsed > 0 {
		header = fmt.Sprintf("--- %s (%s, %v) ---", kind, at.Format(time.RFC3339), elapsed)
	}
	if _, err := fmt.Fprintf(t.writer, "%s\n%s\n\n", header, payload); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
		return
	}
	if err := t.writer.Flush(); err != nil {
		log.WithError(err).Error("[LogTransport] Failed to flush log writer")
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}

// CloseAllLoggingTransports closes every registered transport.
func CloseAllLoggingTransports() {
	transportsMu.Lock()
	defer transportsMu.Unlock()

	for _, t := range activeLoggingTransports {
		if err := t.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing logging transport for %s: %v\n", t.logFile.Name(), err)
		}
	}
	log.Debugf("Closed %d logging transports", len(activeLoggingTransports))
	activeLoggingTransports = nil
}
