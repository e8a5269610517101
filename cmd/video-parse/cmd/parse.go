package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-video-parse/internal/api"
	"go-video-parse/internal/archive"
	"go-video-parse/internal/downloader"
	"go-video-parse/internal/notify"
	"go-video-parse/internal/parser"
	"go-video-parse/internal/render"
)

var (
	parseHTMLFlag          string
	parseFromClipboardFlag bool
	parseCopyFlag          string
	parseDownloadVideoFlag bool
	parseDownloadMusicFlag bool
	parseDownloadImageFlag []int
	parseDownloadAllFlag   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [share text or URL...]",
	Short: "Parse a share link and show the media behind it",
	Long: `Extracts the first http(s) link from the given text (all arguments are
joined with spaces), sends it to the platform's parse endpoint and prints the
result. The result can be written as an HTML page and its media downloaded or
copied to the clipboard in the same run.`,
	Example: `  video-parse parse "看看这个 https://v.douyin.com/abc/ 太好笑了" -p douyin
  video-parse parse --from-clipboard --download-video
  video-parse parse https://www.xiaohongshu.com/explore/123 --download-all --torrent`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseHTMLFlag, "html", "", "Write the result as an HTML page to this file")
	parseCmd.Flags().BoolVar(&parseFromClipboardFlag, "from-clipboard", false, "Read the share text from the clipboard")
	parseCmd.Flags().StringVar(&parseCopyFlag, "copy", "", "Copy a link to the clipboard: cover or url")
	parseCmd.Flags().BoolVar(&parseDownloadVideoFlag, "download-video", false, "Download the video file")
	parseCmd.Flags().BoolVar(&parseDownloadMusicFlag, "download-music", false, "Download the soundtrack")
	parseCmd.Flags().IntSliceVar(&parseDownloadImageFlag, "download-image", nil, "Download gallery image N (1-based, repeatable)")
	parseCmd.Flags().BoolVar(&parseDownloadAllFlag, "download-all", false, "Pack every gallery image into one zip archive")
	addArchiveFlags(parseCmd)
	addTorrentFlags(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	dark := darkMode()
	notifier := newNotifier(dark)
	client := httpClient()

	input := strings.Join(args, " ")
	if parseFromClipboardFlag {
		text, err := parser.InputFromClipboard(nil)
		if err != nil {
			log.WithError(err).Warn("Clipboard read failed")
			notify.Error(notifier, "无法读取剪贴板")
			return notified(err)
		}
		input = text
	}

	orch := parser.New(api.NewClient(client, cfg), cfg.Endpoints, notifier)
	res, err := orch.Submit(cmd.Context(), input, cfg.Platform)
	if err != nil {
		// Submit has already notified the user.
		return notified(err)
	}

	out := cmd.OutOrStdout()
	if err := render.Terminal(out, res.View, dark); err != nil {
		return err
	}
	if parseHTMLFlag != "" {
		if err := writeHTML(parseHTMLFlag, res.View, dark); err != nil {
			notify.Error(notifier, "写入页面失败")
			return notified(err)
		}
		notify.Info(notifier, "页面已保存到 "+parseHTMLFlag)
	}

	actions := &parser.Actions{
		Downloader: downloader.NewDownloader(client),
		Notifier:   notifier,
		OutputDir:  cfg.SavePath,
	}
	return runResultActions(cmd.Context(), out, actions, res, notifier)
}

// runResultActions performs every action requested by flags. All of them run
// even when an earlier one fails; the first error is returned.
func runResultActions(ctx context.Context, out io.Writer, a *parser.Actions, res *parser.Result, n notify.Notifier) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = notified(err)
		}
	}

	switch strings.ToLower(parseCopyFlag) {
	case "":
	case "cover":
		keep(a.CopyCover(res))
	case "url", "video":
		keep(a.CopyURL(res))
	default:
		notify.Error(n, fmt.Sprintf("未知的复制目标: %s", parseCopyFlag))
		keep(fmt.Errorf("unknown --copy target %q (want cover or url)", parseCopyFlag))
	}

	if parseDownloadVideoFlag {
		_, err := a.DownloadVideo(ctx, res)
		keep(err)
	}
	if parseDownloadMusicFlag {
		_, err := a.DownloadMusic(ctx, res)
		keep(err)
	}
	for _, index := range parseDownloadImageFlag {
		_, err := a.DownloadImage(ctx, res, index)
		keep(err)
	}

	if parseDownloadAllFlag {
		var outcome archive.Outcome
		err := withProgress(func(progress io.Writer) error {
			a.Archive = newPipeline(globalConfig, httpClient(), n, progress)
			var runErr error
			outcome, runErr = a.DownloadAll(ctx, res)
			return runErr
		})
		if err == nil {
			printOutcome(out, outcome)
			err = writeArchiveTorrent(out, globalConfig, outcome, n)
		}
		keep(err)
	}
	return firstErr
}

func writeHTML(path string, v render.View, dark bool) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return render.WritePage(f, v, dark)
}
