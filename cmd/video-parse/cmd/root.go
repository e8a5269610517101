package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-video-parse/internal/api"
	"go-video-parse/internal/config"
	"go-video-parse/internal/models"
	"go-video-parse/internal/notify"
	"go-video-parse/internal/prefs"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logLevel and logFormat hold the values of the --log-level and --log-format flags
var (
	logLevel  string
	logFormat string
)

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// outputDirFlag holds the value of the --output-dir flag
var outputDirFlag string

// prefsPathFlag holds the value of the --prefs flag
var prefsPathFlag string

// platformFlag holds the value of the --platform flag
var platformFlag string

// timeoutFlag holds the value of the --timeout flag
var timeoutFlag int

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper = http.DefaultTransport

// errNotified marks a command error the user has already seen as a notification.
var errNotified = errors.New("already reported")

func notified(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errNotified, err)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "video-parse",
	Short: "Parse short-video share links into playable media",
	Long: `video-parse extracts the link from pasted share text, asks the parse
API for the media behind it and shows the result. Videos, covers, soundtracks
and whole image galleries can be downloaded from the parsed result.`,
	PersistentPreRunE: loadGlobalConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { api.CloseAllLoggingTransports() },
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	api.CloseAllLoggingTransports()
	if err != nil {
		if !errors.Is(err, errNotified) {
			fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml or ~/.config/video-parse/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputDirFlag, "output-dir", "o", "", "Directory for downloads and archives (overrides config)")
	rootCmd.PersistentFlags().StringVar(&prefsPathFlag, "prefs", "", "Preference database path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&platformFlag, "platform", "p", "", "Platform endpoint: all, douyin, kuaishou, bilibili, xhs, toutiao (overrides config)")
	rootCmd.PersistentFlags().IntVar(&timeoutFlag, "timeout", config.DefaultRequestTimeoutSec, "Parse request timeout in seconds (overrides config)")
}

// initLogging applies the level and format. Unknown values fall back to info/text.
func initLogging(level, format string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// collectFlags turns the flags the user actually set into config overrides.
func collectFlags(cmd *cobra.Command) config.CliFlags {
	flags := config.CliFlags{}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if cfgFile != "" {
		flags.ConfigFilePath = &cfgFile
	}
	if changed("log-level") {
		flags.LogLevel = &logLevel
	}
	if changed("log-format") {
		flags.LogFormat = &logFormat
	}
	if changed("log-api") {
		flags.LogApiRequests = &logApiFlag
	}
	if changed("output-dir") {
		flags.SavePath = &outputDirFlag
	}
	if changed("prefs") {
		flags.PrefsPath = &prefsPathFlag
	}
	if changed("platform") {
		flags.Platform = &platformFlag
	}
	if changed("timeout") {
		flags.RequestTimeoutSec = &timeoutFlag
	}

	archiveFlags := &config.CliArchiveFlags{}
	if changed("concurrency") {
		archiveFlags.Concurrency = &archiveConcurrencyFlag
	}
	if changed("item-timeout") {
		archiveFlags.ItemTimeoutSec = &archiveItemTimeoutFlag
	}
	if changed("folder") {
		archiveFlags.Folder = &archiveFolderFlag
	}
	flags.Archive = archiveFlags

	torrentFlags := &config.CliTorrentFlags{}
	if changed("announce") {
		torrentFlags.Trackers = &torrentAnnounceFlag
	}
	if changed("magnet") {
		torrentFlags.MagnetLinks = &torrentMagnetFlag
	}
	flags.Torrent = torrentFlags

	return flags
}

// loadGlobalConfig loads the configuration and applies flag overrides.
// It also sets up the global HTTP transport based on logging settings.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	// Flag errors have already been reported with usage at this point.
	cmd.SilenceUsage = true

	initLogging(logLevel, logFormat)

	cfg, transport, err := config.Initialize(collectFlags(cmd))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return notified(err)
	}
	globalConfig = cfg
	globalHttpTransport = transport

	// The config file may carry its own log settings.
	initLogging(cfg.LogLevel, cfg.LogFormat)
	log.Debugf("Effective platform: %s, save path: %s", cfg.Platform, cfg.SavePath)
	return nil
}

// httpClient returns a client on the global transport. Timeouts come from
// request contexts.
func httpClient() *http.Client {
	return &http.Client{Transport: globalHttpTransport}
}

// darkMode reads the stored preference, falling back to the terminal background.
func darkMode() bool {
	store, err := prefs.Open(globalConfig.PrefsPath)
	if err != nil {
		log.WithError(err).Debug("Preference store unavailable, using in-memory defaults")
		store, _ = prefs.Open("")
	}
	defer store.Close()
	return store.EffectiveDarkMode()
}

// newNotifier prints notifications to stderr styled for the active theme.
func newNotifier(dark bool) notify.Notifier {
	return notify.NewTerminal(os.Stderr, dark)
}
