package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-video-parse/internal/archive"
	"go-video-parse/internal/downloader"
	"go-video-parse/internal/helpers"
	"go-video-parse/internal/models"
	"go-video-parse/internal/notify"
)

// Archive and torrent flags are shared by the archive and parse commands.
var (
	archiveConcurrencyFlag int
	archiveItemTimeoutFlag int
	archiveFolderFlag      string
	archiveNoProgressFlag  bool

	torrentFlag         bool
	torrentAnnounceFlag []string
	torrentMagnetFlag   bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive URL...",
	Short: "Download images and pack them into one zip archive",
	Long: `Downloads every image URL concurrently and packs the ones that succeed
into images_<millis>.zip under the output directory. The archive is written once,
after every image has either arrived or failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	addArchiveFlags(archiveCmd)
	addTorrentFlags(archiveCmd)
}

func addArchiveFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&archiveConcurrencyFlag, "concurrency", "c", 0, "Maximum simultaneous image downloads (0 = unlimited, overrides config)")
	cmd.Flags().IntVar(&archiveItemTimeoutFlag, "item-timeout", 0, "Per-image timeout in seconds (0 = none, overrides config)")
	cmd.Flags().StringVar(&archiveFolderFlag, "folder", archive.DefaultFolder, "Folder inside the archive (overrides config)")
	cmd.Flags().BoolVar(&archiveNoProgressFlag, "no-progress", false, "Do not print live progress")
}

func addTorrentFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&torrentFlag, "torrent", false, "Also write a .torrent file for the archive")
	cmd.Flags().StringSliceVar(&torrentAnnounceFlag, "announce", nil, "Tracker announce URLs (overrides config)")
	cmd.Flags().BoolVar(&torrentMagnetFlag, "magnet", false, "Write the magnet link next to the .torrent (overrides config)")
}

// newPipeline builds the archive pipeline for cfg. The archive is saved under
// cfg.SavePath without overwriting existing files.
func newPipeline(cfg models.Config, client *http.Client, n notify.Notifier, progress io.Writer) *archive.Pipeline {
	return &archive.Pipeline{
		Fetcher:    downloader.NewDownloader(client),
		NewBuilder: archive.NewZipBuilder,
		Save: func(name string, data []byte) (string, error) {
			return downloader.SaveFile(cfg.SavePath, name, data)
		},
		Notifier: n,
		Options: archive.Options{
			Folder:      cfg.Archive.Folder,
			Concurrency: cfg.Archive.Concurrency,
			ItemTimeout: time.Duration(cfg.Archive.ItemTimeoutSec) * time.Second,
			Progress:    progress,
		},
	}
}

// withProgress runs fn with a live progress writer unless progress is disabled.
func withProgress(fn func(progress io.Writer) error) error {
	if archiveNoProgressFlag {
		return fn(nil)
	}
	writer := uilive.New()
	writer.Start()
	defer writer.Stop()
	return fn(writer)
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	notifier := newNotifier(darkMode())

	// Invalid URLs stay in the job so they are counted as failed images.
	urls := make([]string, 0, len(args))
	for _, arg := range args {
		u := helpers.CleanURL(arg)
		if !helpers.IsValidURL(u) {
			log.Warnf("Invalid image URL %q will be counted as failed", arg)
		}
		urls = append(urls, u)
	}

	var outcome archive.Outcome
	err := withProgress(func(progress io.Writer) error {
		var runErr error
		outcome, runErr = newPipeline(cfg, httpClient(), notifier, progress).Run(cmd.Context(), urls)
		return runErr
	})
	if err != nil {
		if errors.Is(err, archive.ErrNoImages) {
			notify.Error(notifier, archive.ErrNoImages.Error())
		}
		return notified(err)
	}

	printOutcome(cmd.OutOrStdout(), outcome)
	return writeArchiveTorrent(cmd.OutOrStdout(), cfg, outcome, notifier)
}

func printOutcome(w io.Writer, o archive.Outcome) {
	fmt.Fprintf(w, "Archive: %s (%s)\n", o.Path, helpers.BytesToSize(uint64(o.Size)))
	fmt.Fprintf(w, "BLAKE3:  %s\n", o.Checksum)
	fmt.Fprintf(w, "Images:  %d ok, %d failed\n", o.Succeeded, o.Failed)
}

// writeArchiveTorrent writes the .torrent for a saved archive when --torrent is set.
func writeArchiveTorrent(w io.Writer, cfg models.Config, o archive.Outcome, n notify.Notifier) error {
	if !torrentFlag {
		return nil
	}
	res, err := archive.WriteTorrent(o.Path, cfg.Torrent.Trackers, cfg.Torrent.MagnetLinks)
	if err != nil {
		log.WithError(err).Error("Failed to generate torrent")
		notify.Error(n, "生成种子文件失败")
		return notified(err)
	}
	fmt.Fprintf(w, "Torrent: %s\n", res.TorrentPath)
	if res.MagnetPath != "" {
		fmt.Fprintf(w, "Magnet:  %s\n", res.MagnetPath)
	}
	return nil
}
