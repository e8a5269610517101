package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-video-parse/internal/api"
	"go-video-parse/internal/archive"
	"go-video-parse/internal/helpers"
	"go-video-parse/internal/models"
	"go-video-parse/internal/prefs"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultSavePath          = "downloads"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultPlatform          = api.PlatformAll
	DefaultRequestTimeoutSec = 15
	DefaultLogApiRequests    = false
	DefaultConfigName        = "config"
	DefaultConfigFileName    = DefaultConfigName + ".toml"
	AppDirName               = "video-parse"
	EnvPrefix                = "VIDEOPARSE"

	DefaultArchiveFolder      = archive.DefaultFolder
	DefaultArchiveConcurrency = 0 // unlimited
	DefaultArchiveItemTimeout = 0 // none

	DefaultTorrentMagnetLinks = false
)

// DefaultTorrentTrackers are announced in generated .torrent files.
var DefaultTorrentTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://tracker.openbittorrent.com:80",
}

// DefaultConfig returns the built-in configuration before any file, env or
// flag is applied.
func DefaultConfig() models.Config {
	return models.Config{
		SavePath:          DefaultSavePath,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		Platform:          DefaultPlatform,
		Endpoints:         api.MergeEndpoints(nil),
		RequestTimeoutSec: DefaultRequestTimeoutSec,
		LogApiRequests:    DefaultLogApiRequests,
		Archive: models.ArchiveConfig{
			Folder:         DefaultArchiveFolder,
			Concurrency:    DefaultArchiveConcurrency,
			ItemTimeoutSec: DefaultArchiveItemTimeout,
		},
		Torrent: models.TorrentConfig{
			Trackers:    append([]string(nil), DefaultTorrentTrackers...),
			MagnetLinks: DefaultTorrentMagnetLinks,
		},
	}
}

// setViperDefaults registers every key so env overrides work through AutomaticEnv.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("savepath", d.SavePath)
	v.SetDefault("prefspath", "")
	v.SetDefault("loglevel", d.LogLevel)
	v.SetDefault("logformat", d.LogFormat)
	v.SetDefault("platform", d.Platform)
	v.SetDefault("endpoints", d.Endpoints)
	v.SetDefault("requesttimeoutsec", d.RequestTimeoutSec)
	v.SetDefault("logapirequests", d.LogApiRequests)
	v.SetDefault("archive.folder", d.Archive.Folder)
	v.SetDefault("archive.concurrency", d.Archive.Concurrency)
	v.SetDefault("archive.itemtimeoutsec", d.Archive.ItemTimeoutSec)
	v.SetDefault("torrent.trackers", d.Torrent.Trackers)
	v.SetDefault("torrent.magnetlinks", d.Torrent.MagnetLinks)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	ConfigFilePath    *string
	LogLevel          *string // --log-level
	LogFormat         *string // --log-format
	LogApiRequests    *bool   // --log-api
	SavePath          *string // --output-dir
	PrefsPath         *string // --prefs
	Platform          *string // --platform
	RequestTimeoutSec *int    // --timeout

	Archive *CliArchiveFlags
	Torrent *CliTorrentFlags
}

type CliArchiveFlags struct {
	Folder         *string
	Concurrency    *int
	ItemTimeoutSec *int
}

type CliTorrentFlags struct {
	Trackers    *[]string
	MagnetLinks *bool
}

// UserConfigDir is where the config file and preferences live by default.
func UserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppDirName)
}

// Initialize merges defaults, the TOML config file, VIDEOPARSE_* environment
// variables and CLI flags (in increasing priority) and builds the HTTP
// transport used for API calls.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	if flags.ConfigFilePath != nil && *flags.ConfigFilePath != "" {
		log.Debugf("[Initialize] Using config file path from CLI flag: %s", *flags.ConfigFilePath)
		v.SetConfigFile(*flags.ConfigFilePath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir := UserConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			log.Debug("[Initialize] No config file found. Using defaults, env and CLI flags only.")
		} else {
			log.Warnf("[Initialize] Error reading config file: %v. Using defaults, env and CLI flags only.", err)
		}
	} else {
		log.Debugf("[Initialize] Read config file: %s", v.ConfigFileUsed())
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	applyFlags(&cfg, flags)

	cfg.Endpoints = api.MergeEndpoints(cfg.Endpoints)
	if cfg.PrefsPath == "" {
		cfg.PrefsPath = defaultPrefsPath(cfg.SavePath)
	}

	if err := Validate(cfg); err != nil {
		return models.Config{}, nil, err
	}

	transport := buildTransport(cfg)
	log.Debug("Configuration initialized successfully.")
	return cfg, transport, nil
}

func applyFlags(cfg *models.Config, flags CliFlags) {
	if flags.SavePath != nil {
		cfg.SavePath = *flags.SavePath
	}
	if flags.PrefsPath != nil {
		cfg.PrefsPath = *flags.PrefsPath
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.Platform != nil {
		cfg.Platform = *flags.Platform
	}
	if flags.RequestTimeoutSec != nil {
		cfg.RequestTimeoutSec = *flags.RequestTimeoutSec
	}
	if a := flags.Archive; a != nil {
		if a.Folder != nil {
			cfg.Archive.Folder = *a.Folder
		}
		if a.Concurrency != nil {
			cfg.Archive.Concurrency = *a.Concurrency
		}
		if a.ItemTimeoutSec != nil {
			cfg.Archive.ItemTimeoutSec = *a.ItemTimeoutSec
		}
	}
	if t := flags.Torrent; t != nil {
		if t.Trackers != nil && len(*t.Trackers) > 0 {
			cfg.Torrent.Trackers = *t.Trackers
		}
		if t.MagnetLinks != nil {
			cfg.Torrent.MagnetLinks = *t.MagnetLinks
		}
	}
}

func defaultPrefsPath(savePath string) string {
	if dir := UserConfigDir(); dir != "" {
		return filepath.Join(dir, prefs.FileName)
	}
	return filepath.Join(savePath, prefs.FileName)
}

// Validate rejects configurations the commands cannot work with.
func Validate(cfg models.Config) error {
	if cfg.SavePath == "" {
		return fmt.Errorf("SavePath cannot be empty (set via --output-dir flag or SavePath in config)")
	}
	if cfg.RequestTimeoutSec <= 0 {
		return fmt.Errorf("RequestTimeoutSec must be positive, got %d", cfg.RequestTimeoutSec)
	}
	if cfg.Archive.Concurrency < 0 {
		return fmt.Errorf("Archive.Concurrency cannot be negative, got %d", cfg.Archive.Concurrency)
	}
	if cfg.Archive.ItemTimeoutSec < 0 {
		return fmt.Errorf("Archive.ItemTimeoutSec cannot be negative, got %d", cfg.Archive.ItemTimeoutSec)
	}
	for tag, endpoint := range cfg.Endpoints {
		if !helpers.IsValidURL(endpoint) {
			return fmt.Errorf("endpoint for platform %q is not a valid URL: %q", tag, endpoint)
		}
	}
	return nil
}

func buildTransport(cfg models.Config) http.RoundTripper {
	base := http.DefaultTransport
	if !cfg.LogApiRequests {
		return base
	}
	logFilePath := "api.log"
	if helpers.CheckAndMakeDir(cfg.SavePath) {
		logFilePath = filepath.Join(cfg.SavePath, logFilePath)
	} else {
		log.Warnf("SavePath '%s' unavailable, saving api.log to current directory.", cfg.SavePath)
	}
	log.Infof("API logging to file: %s", logFilePath)

	lt, err := api.NewLoggingTransport(base, logFilePath)
	if err != nil {
		log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		return base
	}
	return lt
}
