package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-video-parse/internal/downloader"
	"go-video-parse/internal/notify"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher fails any URL containing "bad" after a random short delay.
type fakeFetcher struct {
	mu      sync.Mutex
	seen    []string
	active  int32
	maxSeen int32
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, url)
	f.mu.Unlock()

	select {
	case <-time.After(time.Duration(rand.Intn(5)) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if strings.Contains(url, "bad") {
		return nil, fmt.Errorf("status 404 for %s", url)
	}
	return []byte("img:" + url), nil
}

// countingBuilder wraps a ZipBuilder and counts factory and Finalize calls.
type countingBuilder struct {
	Builder
	finalized *int32
}

func (c countingBuilder) Finalize() ([]byte, error) {
	atomic.AddInt32(c.finalized, 1)
	return c.Builder.Finalize()
}

type harness struct {
	pipeline  *Pipeline
	fetcher   *fakeFetcher
	notifier  *notify.Recorder
	built     int32
	finalized int32
	saves     int32
	saved     []byte
	savedName string
}

func newHarness() *harness {
	h := &harness{fetcher: &fakeFetcher{}, notifier: &notify.Recorder{}}
	h.pipeline = &Pipeline{
		Fetcher: h.fetcher,
		NewBuilder: func() Builder {
			atomic.AddInt32(&h.built, 1)
			return countingBuilder{Builder: NewZipBuilder(), finalized: &h.finalized}
		},
		Save: func(name string, data []byte) (string, error) {
			atomic.AddInt32(&h.saves, 1)
			h.saved, h.savedName = data, name
			return "/out/" + name, nil
		},
		Notifier: h.notifier,
		Options: Options{
			Folder: DefaultFolder,
			Clock:  func() time.Time { return time.UnixMilli(1700000000123) },
		},
	}
	return h
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "images/image_1.jpg", EntryName("images", 0))
	assert.Equal(t, "image_3.jpg", EntryName("", 2))
}

func TestNewJob_CleansURLs(t *testing.T) {
	job := NewJob([]string{"`https://i/1.png`", "https://i/2.webp"}, DefaultFolder)
	require.Len(t, job.Items, 2)
	assert.Equal(t, "https://i/1.png", job.Items[0].SourceURL)
	assert.Equal(t, "images/image_2.jpg", job.Items[1].TargetName)
	assert.NotEmpty(t, job.ID)
}

func TestRun_AllSucceed(t *testing.T) {
	h := newHarness()
	out, err := h.pipeline.Run(context.Background(), []string{"https://i/1", "https://i/2", "https://i/3"})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Succeeded)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, "images_1700000000123.zip", out.Name)
	assert.Equal(t, "/out/images_1700000000123.zip", out.Path)
	assert.Len(t, out.Checksum, 64)
	assert.Equal(t, []string{"images/image_1.jpg", "images/image_2.jpg", "images/image_3.jpg"}, zipNames(t, h.saved))
	assert.Equal(t, []string{"开始下载并压缩图片（3张）", "成功压缩并下载3张图片"}, h.notifier.Texts())
}

func TestRun_PartialFailure(t *testing.T) {
	h := newHarness()
	out, err := h.pipeline.Run(context.Background(), []string{"https://i/ok", "https://i/bad"})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, []string{"images/image_1.jpg"}, zipNames(t, h.saved))
	assert.Equal(t, []string{"开始下载并压缩图片（2张）", "成功压缩并下载1张图片，1张失败"}, h.notifier.Texts())
	assert.Equal(t, notify.LevelInfo, h.notifier.Messages()[0].Level)
	assert.Equal(t, notify.LevelWarn, h.notifier.Messages()[1].Level)
}

func TestRun_TotalFailure(t *testing.T) {
	h := newHarness()
	_, err := h.pipeline.Run(context.Background(), []string{"https://i/bad1", "https://i/bad2", "https://i/bad3"})

	assert.ErrorIs(t, err, ErrTotalFailure)
	assert.Equal(t, int32(0), h.built, "no archive is generated")
	assert.Equal(t, int32(0), h.saves, "no download happens")
	assert.Equal(t, []string{"开始下载并压缩图片（3张）", "所有图片下载失败，请重试"}, h.notifier.Texts())
}

func TestRun_NoImages(t *testing.T) {
	h := newHarness()
	_, err := h.pipeline.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Equal(t, int32(0), h.saves)
	assert.Empty(t, h.notifier.Texts(), "nothing starts without images")
}

// TestRun_ExactlyOnce runs many jobs with random outcomes and completion order
// and checks the archive is built and saved once per job.
func TestRun_ExactlyOnce(t *testing.T) {
	for round := 0; round < 25; round++ {
		h := newHarness()
		n := 1 + rand.Intn(30)
		urls := make([]string, n)
		good := 0
		for i := range urls {
			if rand.Intn(3) == 0 {
				urls[i] = fmt.Sprintf("https://i/bad/%d", i)
			} else {
				urls[i] = fmt.Sprintf("https://i/%d", i)
				good++
			}
		}

		out, err := h.pipeline.Run(context.Background(), urls)
		assert.Equal(t, n, out.Succeeded+out.Failed)
		if good == 0 {
			assert.ErrorIs(t, err, ErrTotalFailure)
			assert.Equal(t, int32(0), h.saves)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, int32(1), h.built, "round %d", round)
		assert.Equal(t, int32(1), h.finalized, "round %d", round)
		assert.Equal(t, int32(1), h.saves, "round %d", round)
		assert.Len(t, zipNames(t, h.saved), good)
		assert.Len(t, h.notifier.Texts(), 2, "start and result, once each")
	}
}

func TestRun_ConcurrencyCap(t *testing.T) {
	h := newHarness()
	h.pipeline.Concurrency = 2

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://i/%d", i)
	}
	_, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&h.fetcher.maxSeen), int32(2))
}

type slowFetcher struct{}

func (slowFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if strings.Contains(url, "slow") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte("x"), nil
}

func TestRun_ItemTimeout(t *testing.T) {
	h := newHarness()
	h.pipeline.Fetcher = slowFetcher{}
	h.pipeline.ItemTimeout = 20 * time.Millisecond

	out, err := h.pipeline.Run(context.Background(), []string{"https://i/fast", "https://i/slow"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
}

type brokenBuilder struct{}

func (brokenBuilder) AddEntry(string, []byte) error { return nil }
func (brokenBuilder) Finalize() ([]byte, error)     { return nil, errors.New("disk full") }

func TestRun_CompressionFailure(t *testing.T) {
	h := newHarness()
	h.pipeline.NewBuilder = func() Builder { return brokenBuilder{} }

	_, err := h.pipeline.Run(context.Background(), []string{"https://i/1"})
	assert.ErrorIs(t, err, ErrCompression)
	assert.Equal(t, int32(0), h.saves)
	assert.Equal(t, []string{"开始下载并压缩图片（1张）", "图片压缩失败: disk full"}, h.notifier.Texts())
}

func TestRun_SaveFailure(t *testing.T) {
	h := newHarness()
	h.pipeline.Save = func(string, []byte) (string, error) { return "", errors.New("read-only") }

	_, err := h.pipeline.Run(context.Background(), []string{"https://i/1"})
	assert.ErrorIs(t, err, ErrSave)
	require.Len(t, h.notifier.Texts(), 2)
	assert.Contains(t, h.notifier.Texts()[1], "read-only")
}

func TestRun_Progress(t *testing.T) {
	h := newHarness()
	var buf bytes.Buffer
	h.pipeline.Progress = &buf

	_, err := h.pipeline.Run(context.Background(), []string{"https://i/1", "https://i/bad"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "[2/2]"))
}

func TestWriteTorrent(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "images_1.zip")
	require.NoError(t, os.WriteFile(archivePath, bytes.Repeat([]byte("z"), 1000), 0600))

	res, err := WriteTorrent(archivePath, []string{"udp://tracker.example:1337/announce", "ftp://nope"}, true)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "images_1.torrent"), res.TorrentPath)
	assert.True(t, strings.HasPrefix(res.MagnetURI, "magnet:?xt=urn:btih:"))
	assert.Contains(t, res.MagnetURI, "dn=images_1.zip")
	assert.NotContains(t, res.MagnetURI, "ftp")

	mi, err := metainfo.LoadFromFile(res.TorrentPath)
	require.NoError(t, err)
	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Length)

	magnet, err := os.ReadFile(res.MagnetPath)
	require.NoError(t, err)
	assert.Equal(t, res.MagnetURI, string(magnet))
}

func TestZipBuilder_ForwardSlashEntries(t *testing.T) {
	b := NewZipBuilder()
	require.NoError(t, b.AddEntry(`images\image_1.jpg`, []byte("a")))
	require.NoError(t, b.AddEntry("../../images/image_2.jpg", []byte("b")))
	require.NoError(t, b.AddEntry("/abs/image_3.jpg", []byte("c")))
	data, err := b.Finalize()
	require.NoError(t, err)

	assert.Equal(t, []string{"images/image_1.jpg", "images/image_2.jpg", "abs/image_3.jpg"}, zipNames(t, data))
}

// TestRun_OversizedImageCountsAsFailure serves one normal image and one that
// declares an absurd Content-Length; the job must finish with one archive.
func TestRun_OversizedImageCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jpg" {
			w.Header().Set("Content-Length", "4611686018427387904")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	h := newHarness()
	h.pipeline.Fetcher = downloader.NewDownloader(server.Client())

	out, err := h.pipeline.Run(context.Background(), []string{server.URL + "/ok.jpg", server.URL + "/bad.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, int32(1), h.saves)
	assert.Equal(t, []string{"images/image_1.jpg"}, zipNames(t, h.saved))
}
