package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// TestNewDownloader_NilClient tests that a default client is created when nil is passed
func TestNewDownloader_NilClient(t *testing.T) {
	downloader := NewDownloader(nil)
	if downloader.client == nil {
		t.Error("Expected default HTTP client to be created")
	}
}

func newFileServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/media/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video bytes"))
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("index"))
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestFetchBytes tests reading a body into memory
func TestFetchBytes(t *testing.T) {
	server := newFileServer(t)
	d := NewDownloader(server.Client())

	data, err := d.FetchBytes(context.Background(), server.URL+"/media/video.mp4")
	if err != nil {
		t.Fatalf("FetchBytes() error = %v", err)
	}
	if string(data) != "video bytes" {
		t.Errorf("FetchBytes() = %q", data)
	}

	_, err = d.FetchBytes(context.Background(), server.URL+"/missing.jpg")
	if !errors.Is(err, ErrHttpStatus) {
		t.Errorf("Expected ErrHttpStatus, got %v", err)
	}
}

// TestDownloadFile_Success tests the file name is taken from the URL's last segment
func TestDownloadFile_Success(t *testing.T) {
	server := newFileServer(t)
	d := NewDownloader(server.Client())
	dir := t.TempDir()

	path, err := d.DownloadFile(context.Background(), dir, server.URL+"/media/video.mp4?sig=abc&x=1")
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if filepath.Base(path) != "video.mp4" {
		t.Errorf("Expected video.mp4, got %s", filepath.Base(path))
	}
	content, _ := os.ReadFile(path)
	if string(content) != "video bytes" {
		t.Errorf("Unexpected file content %q", content)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temp files, found %d entries", len(entries))
	}
}

// TestDownloadFile_FallbackName tests URLs without a usable last segment
func TestDownloadFile_FallbackName(t *testing.T) {
	server := newFileServer(t)
	d := NewDownloader(server.Client())

	path, err := d.DownloadFile(context.Background(), t.TempDir(), server.URL+"/media/")
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if filepath.Base(path) != DefaultFileName {
		t.Errorf("Expected %s, got %s", DefaultFileName, filepath.Base(path))
	}
}

// TestDownloadFile_NoOverwrite tests a second download of the same name gets a suffix
func TestDownloadFile_NoOverwrite(t *testing.T) {
	server := newFileServer(t)
	d := NewDownloader(server.Client())
	dir := t.TempDir()

	first, err := d.DownloadFile(context.Background(), dir, server.URL+"/media/video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.DownloadFile(context.Background(), dir, server.URL+"/media/video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("Expected distinct paths, both were %s", first)
	}
	if filepath.Base(second) != "video (1).mp4" {
		t.Errorf("Unexpected second name %s", filepath.Base(second))
	}
}

// TestDownloadFile_HTTPError tests that nothing is written on a non-200 response
func TestDownloadFile_HTTPError(t *testing.T) {
	server := newFileServer(t)
	d := NewDownloader(server.Client())
	dir := t.TempDir()

	_, err := d.DownloadFile(context.Background(), dir, server.URL+"/missing.jpg")
	if !errors.Is(err, ErrHttpStatus) {
		t.Errorf("Expected ErrHttpStatus, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, found %d entries", len(entries))
	}
}

// TestSaveFile tests writing an in-memory payload
func TestSaveFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := SaveFile(dir, "../images_1.zip", []byte("PK"))
	if err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if path != filepath.Join(dir, "images_1.zip") {
		t.Errorf("Unexpected path %s", path)
	}
}

// TestFetchBytes_OversizedContentLength tests a declared length above the cap is rejected before reading
func TestFetchBytes_OversizedContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4611686018427387904")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	d := NewDownloader(server.Client())
	_, err := d.FetchBytes(context.Background(), server.URL+"/huge.jpg")
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

// TestFetchBytes_BodyOverLimit tests a body without a usable length is cut off at the cap
func TestFetchBytes_BodyOverLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush() // chunked, no Content-Length
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	d := NewDownloader(server.Client())
	d.MaxFetchSize = 16
	_, err := d.FetchBytes(context.Background(), server.URL+"/stream.jpg")
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}

	d.MaxFetchSize = 64
	data, err := d.FetchBytes(context.Background(), server.URL+"/stream.jpg")
	if err != nil {
		t.Fatalf("FetchBytes() at exactly the limit error = %v", err)
	}
	if len(data) != 64 {
		t.Errorf("Expected 64 bytes, got %d", len(data))
	}
}
