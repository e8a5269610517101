package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-video-parse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewClient tests the API client creation
func TestNewClient(t *testing.T) {
	client := NewClient(nil, models.Config{})

	if client.HttpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout to be %v, got %v", DefaultTimeout, client.Timeout)
	}

	client = NewClient(nil, models.Config{RequestTimeoutSec: 3})
	if client.Timeout != 3*time.Second {
		t.Errorf("Expected timeout to be 3s, got %v", client.Timeout)
	}
}

func TestRequestURL(t *testing.T) {
	got := RequestURL(DefaultEndpoints["douyin"], "https://v.douyin.com/abc/")
	assert.Equal(t, "https://api.bugpk.com/api/douyin?url=https%3A%2F%2Fv.douyin.com%2Fabc%2F", got)

	got = RequestURL("http://h/api?key=1", "https://x.example/v/123")
	assert.Equal(t, "http://h/api?key=1&url=https%3A%2F%2Fx.example%2Fv%2F123", got)
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		platform string
		expected string
	}{
		{"douyin", "https://api.bugpk.com/api/douyin"},
		{"DouYin", "https://api.bugpk.com/api/douyin"},
		{"xhs", "https://api.bugpk.com/api/xhsjx"},
		{"", "https://api.bugpk.com/api/short_videos"},
		{"myspace", "https://api.bugpk.com/api/short_videos"},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveEndpoint(DefaultEndpoints, tt.platform))
		})
	}
}

func TestMergeEndpoints(t *testing.T) {
	merged := MergeEndpoints(map[string]string{"Douyin": "http://local/dy", "kuaishou": " "})
	assert.Equal(t, "http://local/dy", merged["douyin"])
	assert.Equal(t, DefaultEndpoints["kuaishou"], merged["kuaishou"])
	assert.Equal(t, "https://api.bugpk.com/api/douyin", DefaultEndpoints["douyin"], "defaults must not be mutated")
}

func TestParse_Success(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"msg":"ok","data":{"title":"Cat","images":["https://i/1.jpg","https://i/2.jpg"],"like":"1234"}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), models.Config{})
	rec, err := client.Parse(context.Background(), server.URL+"/api/douyin", "https://x.example/v/123")
	require.NoError(t, err)

	assert.Equal(t, "url=https%3A%2F%2Fx.example%2Fv%2F123", gotQuery)
	assert.Equal(t, "Cat", models.Str(rec.Title))
	assert.Len(t, rec.Images, 2)
	require.NotNil(t, rec.Like)
	assert.Equal(t, int64(1234), *rec.Like)
}

func TestParse_ApplicationError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "with message", body: `{"code":403,"msg":"blocked"}`, message: "blocked"},
		{name: "without message", body: `{"code":500}`, message: "解析失败，请稍后再试"},
		{name: "missing code", body: `{"data":{}}`, message: "解析失败，请稍后再试"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.Client(), models.Config{})
			_, err := client.Parse(context.Background(), server.URL, "https://x.example/v/1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrApplication)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.message, apiErr.Error())
		})
	}
}

func TestParse_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.Client(), models.Config{})
	_, err := client.Parse(context.Background(), server.URL, "https://x.example/v/1")

	assert.ErrorIs(t, err, ErrNetwork)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 502, statusErr.StatusCode)
	assert.Equal(t, "HTTP错误! 状态码: 502", err.Error())
}

func TestParse_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), models.Config{})
	_, err := client.Parse(context.Background(), server.URL, "https://x.example/v/1")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestParse_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.Client(), models.Config{})
	client.Timeout = 50 * time.Millisecond

	_, err := client.Parse(context.Background(), server.URL, "https://x.example/v/1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestParse_Cancelled(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(server.Client(), models.Config{})
	_, err := client.Parse(ctx, server.URL, "https://x.example/v/1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "exactly one request, no retries")
}

func TestParse_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(nil, models.Config{})
	_, err := client.Parse(context.Background(), addr, "https://x.example/v/1")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"data":{"title":"logged"}}`))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	lt, err := NewLoggingTransport(server.Client().Transport, logPath)
	require.NoError(t, err)

	client := NewClient(&http.Client{Transport: lt}, models.Config{})
	rec, err := client.Parse(context.Background(), server.URL, "https://x.example/v/1")
	require.NoError(t, err)
	assert.Equal(t, "logged", models.Str(rec.Title), "body must still be readable after logging")

	CloseAllLoggingTransports()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	logged := string(data)
	assert.True(t, strings.Contains(logged, "--- Request"))
	assert.True(t, strings.Contains(logged, `"title":"logged"`))
}
