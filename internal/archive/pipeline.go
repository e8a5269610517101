// Package archive fetches a set of images concurrently and packs the ones
// that arrived into a single archive that is saved exactly once.
package archive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"go-video-parse/internal/helpers"
	"go-video-parse/internal/notify"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

var (
	ErrNoImages     = errors.New("没有可下载的图片")
	ErrTotalFailure = errors.New("所有图片下载失败，请重试")
	ErrCompression  = errors.New("图片压缩失败")
	ErrSave         = errors.New("保存压缩包失败")
)

// DefaultFolder is the folder inside the archive that holds the images.
const DefaultFolder = "images"

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Saver persists the finished archive under name and returns where it went.
type Saver func(name string, data []byte) (string, error)

// Item is one image to fetch and the name it gets inside the archive.
type Item struct {
	SourceURL  string
	TargetName string
}

// Job is a single archive run. Items are fixed at creation.
type Job struct {
	ID    string
	Items []Item

	mu        sync.Mutex
	succeeded int
	failed    int
	progress  io.Writer
}

// EntryName is the in-archive name of the image at zero-based index.
func EntryName(folder string, index int) string {
	name := fmt.Sprintf("image_%d.jpg", index+1)
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// NewJob creates a job for urls. Each URL is cleaned once and that cleaned
// value is used both for fetching and naming.
func NewJob(urls []string, folder string) *Job {
	items := make([]Item, len(urls))
	for i, u := range urls {
		items[i] = Item{SourceURL: helpers.CleanURL(u), TargetName: EntryName(folder, i)}
	}
	return &Job{ID: uuid.NewString(), Items: items}
}

// record counts one finished item and reports progress in the same step.
func (j *Job) record(ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if ok {
		j.succeeded++
	} else {
		j.failed++
	}
	if j.progress != nil {
		fmt.Fprintf(j.progress, "[%d/%d] 图片下载中… 成功 %d，失败 %d\n",
			j.succeeded+j.failed, len(j.Items), j.succeeded, j.failed)
	}
}

// Counts returns the current success and failure counters.
func (j *Job) Counts() (succeeded, failed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.succeeded, j.failed
}

// Options tune a Pipeline. Zero values mean unlimited concurrency, no
// per-item timeout, no progress output and the default folder.
type Options struct {
	Folder      string
	Concurrency int
	ItemTimeout time.Duration
	Progress    io.Writer
	Clock       func() time.Time
}

// Pipeline wires the fetcher, archive builder, saver and notifier together.
type Pipeline struct {
	Fetcher    Fetcher
	NewBuilder BuilderFactory
	Save       Saver
	Notifier   notify.Notifier
	Options
}

// Outcome describes a finished run.
type Outcome struct {
	JobID     string
	Name      string
	Path      string
	Checksum  string
	Entries   []string
	Succeeded int
	Failed    int
	Size      int
}

// Message is the user-facing summary for a successful outcome.
func (o Outcome) Message() string {
	msg := fmt.Sprintf("成功压缩并下载%d张图片", o.Succeeded)
	if o.Failed > 0 {
		msg += fmt.Sprintf("，%d张失败", o.Failed)
	}
	return msg
}

type fetchResult struct {
	data []byte
	err  error
}

// Run fetches every URL concurrently, waits until each one has either
// succeeded or failed, then builds and saves the archive once.
func (p *Pipeline) Run(ctx context.Context, urls []string) (Outcome, error) {
	if len(urls) == 0 {
		return Outcome{}, ErrNoImages
	}
	job := NewJob(urls, p.Folder)
	job.progress = p.Progress
	logger := log.WithFields(log.Fields{"job": job.ID, "items": len(job.Items)})
	logger.Info("Starting image archive job")
	notify.Info(p.Notifier, fmt.Sprintf("开始下载并压缩图片（%d张）", len(job.Items)))

	var sem chan struct{}
	if p.Concurrency > 0 {
		sem = make(chan struct{}, p.Concurrency)
	}

	results := make([]fetchResult, len(job.Items))
	var wg sync.WaitGroup
	for i, item := range job.Items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i].err = ctx.Err()
					job.record(false)
					return
				}
			}
			data, err := p.fetch(ctx, item.SourceURL)
			results[i] = fetchResult{data: data, err: err}
			if err != nil {
				logger.WithError(err).WithField("url", item.SourceURL).Warn("Image fetch failed")
			}
			job.record(err == nil)
		}(i, item)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		logger.WithError(err).Warn("Archive job cancelled before completion")
		return Outcome{JobID: job.ID}, fmt.Errorf("archive job cancelled: %w", err)
	}
	return p.finalize(job, results, logger)
}

func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	if p.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ItemTimeout)
		defer cancel()
	}
	return p.Fetcher.FetchBytes(ctx, url)
}

// finalize runs once per job, after every item has reported.
func (p *Pipeline) finalize(job *Job, results []fetchResult, logger *log.Entry) (Outcome, error) {
	succeeded, failed := job.Counts()
	out := Outcome{JobID: job.ID, Succeeded: succeeded, Failed: failed}

	if succeeded == 0 {
		logger.Error("Every image in the job failed to download")
		notify.Error(p.Notifier, ErrTotalFailure.Error())
		return out, ErrTotalFailure
	}
	if failed > 0 {
		logger.Warnf("%d of %d images failed to download", failed, len(job.Items))
	}

	newBuilder := p.NewBuilder
	if newBuilder == nil {
		newBuilder = NewZipBuilder
	}
	builder := newBuilder()
	for i, r := range results {
		if r.err != nil {
			continue
		}
		if err := builder.AddEntry(job.Items[i].TargetName, r.data); err != nil {
			return out, p.compressionFailed(err, logger)
		}
		out.Entries = append(out.Entries, job.Items[i].TargetName)
	}
	data, err := builder.Finalize()
	if err != nil {
		return out, p.compressionFailed(err, logger)
	}

	sum := blake3.Sum256(data)
	out.Checksum = hex.EncodeToString(sum[:])
	out.Size = len(data)
	out.Name = helpers.ArchiveName(p.now())

	save := p.Save
	if save == nil {
		save = func(string, []byte) (string, error) { return "", errors.New("no saver configured") }
	}
	saved, err := save(out.Name, data)
	if err != nil {
		logger.WithError(err).Error("Failed to save archive")
		wrapped := fmt.Errorf("%w: %v", ErrSave, err)
		notify.Error(p.Notifier, wrapped.Error())
		return out, wrapped
	}
	out.Path = saved

	logger.WithFields(log.Fields{
		"path":   saved,
		"size":   helpers.BytesToSize(uint64(out.Size)),
		"blake3": out.Checksum,
	}).Info("Archive saved")
	if failed > 0 {
		notify.Warn(p.Notifier, out.Message())
	} else {
		notify.Info(p.Notifier, out.Message())
	}
	return out, nil
}

func (p *Pipeline) compressionFailed(err error, logger *log.Entry) error {
	logger.WithError(err).Error("Failed to build archive")
	wrapped := fmt.Errorf("%w: %v", ErrCompression, err)
	notify.Error(p.Notifier, wrapped.Error())
	return wrapped
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}
