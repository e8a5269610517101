package parser

import (
	"context"
	"errors"
	"fmt"

	"go-video-parse/internal/archive"
	"go-video-parse/internal/notify"
	"go-video-parse/internal/render"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
)

var (
	ErrClipboard     = errors.New("clipboard unavailable")
	ErrNothingToCopy = errors.New("nothing to copy")
	ErrNoResult      = errors.New("没有可用的解析结果")
	ErrNoMedia       = errors.New("没有可下载的内容")
)

// CopyError reports a copy action that did not reach the clipboard.
type CopyError struct {
	Err   error
	Label string
}

func (e *CopyError) Error() string {
	if errors.Is(e.Err, ErrNothingToCopy) {
		return "没有可复制的" + e.Label
	}
	return "无法复制" + e.Label
}

func (e *CopyError) Unwrap() error { return e.Err }

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard uses the OS clipboard.
type SystemClipboard struct{}

// ReadAll implements Clipboard.
func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", ErrClipboard
	}
	return clipboard.ReadAll()
}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboard
	}
	return clipboard.WriteAll(text)
}

// Actions are the user operations available on a parse Result.
type Actions struct {
	Clipboard  Clipboard
	Downloader FileDownloader
	Archive    *archive.Pipeline
	Notifier   notify.Notifier
	OutputDir  string
}

// FileDownloader saves a single URL into a directory.
type FileDownloader interface {
	DownloadFile(ctx context.Context, targetDir, url string) (string, error)
}

// CopyCover copies the result's cover link.
func (a *Actions) CopyCover(res *Result) error { return a.copy(res, render.CopyCover) }

// CopyURL copies the result's video link.
func (a *Actions) CopyURL(res *Result) error { return a.copy(res, render.CopyURL) }

func (a *Actions) copy(res *Result, target render.CopyTarget) error {
	label := target.Label()
	value := ""
	if res != nil && res.View.Offers(target) {
		value = res.View.CopyValue(target)
	}
	if value == "" {
		err := &CopyError{Label: label, Err: ErrNothingToCopy}
		notify.Error(a.Notifier, err.Error())
		return err
	}

	cb := a.Clipboard
	if cb == nil {
		cb = SystemClipboard{}
	}
	if err := cb.WriteAll(value); err != nil {
		log.WithError(err).Warn("Clipboard write failed")
		cerr := &CopyError{Label: label, Err: fmt.Errorf("%w: %v", ErrClipboard, err)}
		notify.Error(a.Notifier, cerr.Error())
		return cerr
	}
	notify.Info(a.Notifier, label+"已复制到剪贴板")
	return nil
}

// DownloadVideo saves the result's video file.
func (a *Actions) DownloadVideo(ctx context.Context, res *Result) (string, error) {
	if res == nil {
		return "", a.fail(ErrNoResult)
	}
	if res.View.Mode != render.SingleVideo || res.View.VideoURL == "" {
		return "", a.fail(fmt.Errorf("%w: 视频", ErrNoMedia))
	}
	return a.download(ctx, res.View.VideoURL)
}

// DownloadMusic saves the result's soundtrack.
func (a *Actions) DownloadMusic(ctx context.Context, res *Result) (string, error) {
	if res == nil {
		return "", a.fail(ErrNoResult)
	}
	if !res.View.MusicPlayable {
		return "", a.fail(fmt.Errorf("%w: 音乐", ErrNoMedia))
	}
	return a.download(ctx, res.View.Music.URL)
}

// DownloadImage saves one gallery image; index is 1-based.
func (a *Actions) DownloadImage(ctx context.Context, res *Result, index int) (string, error) {
	if res == nil {
		return "", a.fail(ErrNoResult)
	}
	if index < 1 || index > len(res.View.Images) {
		return "", a.fail(fmt.Errorf("%w: 第%d张图片（共%d张）", ErrNoMedia, index, len(res.View.Images)))
	}
	return a.download(ctx, res.View.Images[index-1])
}

// DownloadAll packs every gallery image into one archive.
func (a *Actions) DownloadAll(ctx context.Context, res *Result) (archive.Outcome, error) {
	if res == nil {
		return archive.Outcome{}, a.fail(ErrNoResult)
	}
	if res.View.Mode != render.ImageGallery {
		return archive.Outcome{}, a.fail(archive.ErrNoImages)
	}
	if a.Archive == nil {
		return archive.Outcome{}, a.fail(errors.New("archive pipeline not configured"))
	}
	// The pipeline notifies on its own.
	return a.Archive.Run(ctx, res.View.Images)
}

func (a *Actions) download(ctx context.Context, url string) (string, error) {
	if a.Downloader == nil {
		return "", a.fail(errors.New("downloader not configured"))
	}
	path, err := a.Downloader.DownloadFile(ctx, a.OutputDir, url)
	if err != nil {
		return "", a.fail(fmt.Errorf("下载失败: %w", err))
	}
	notify.Info(a.Notifier, "已下载 "+path)
	return path, nil
}

func (a *Actions) fail(err error) error {
	notify.Error(a.Notifier, err.Error())
	return err
}

// InputFromClipboard reads parse input from the clipboard.
func InputFromClipboard(cb Clipboard) (string, error) {
	if cb == nil {
		cb = SystemClipboard{}
	}
	text, err := cb.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClipboard, err)
	}
	return text, nil
}
