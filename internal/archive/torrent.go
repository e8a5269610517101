package archive

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	log "github.com/sirupsen/logrus"
)

const torrentPieceLength = 256 * 1024

// TorrentResult lists what WriteTorrent produced.
type TorrentResult struct {
	TorrentPath string
	MagnetPath  string
	MagnetURI   string
}

// WriteTorrent creates "<archive>.torrent" next to a saved archive. With
// magnetFile set, the magnet URI is also written to "<archive>-magnet.txt".
// Trackers that are not http, https or udp URLs are skipped.
func WriteTorrent(archivePath string, trackers []string, magnetFile bool) (TorrentResult, error) {
	var res TorrentResult

	stat, err := os.Stat(archivePath)
	if err != nil {
		return res, fmt.Errorf("stating archive %s: %w", archivePath, err)
	}
	if stat.IsDir() {
		return res, fmt.Errorf("archive path %s is a directory", archivePath)
	}

	mi := metainfo.MetaInfo{
		CreatedBy:    "go-video-parse",
		CreationDate: time.Now().Unix(),
	}
	if valid := validTrackers(trackers); len(valid) > 0 {
		mi.Announce = valid[0]
		mi.AnnounceList = [][]string{valid}
	} else {
		log.Warn("No valid tracker URLs given; torrent will rely on DHT")
	}

	info := metainfo.Info{PieceLength: torrentPieceLength}
	if err := info.BuildFromFilePath(archivePath); err != nil {
		return res, fmt.Errorf("building torrent info for %s: %w", archivePath, err)
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return res, fmt.Errorf("marshaling torrent info: %w", err)
	}
	mi.InfoBytes = infoBytes

	base := strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
	res.TorrentPath = base + ".torrent"
	if err := writeMetainfo(res.TorrentPath, &mi); err != nil {
		return res, err
	}
	log.WithField("path", res.TorrentPath).Info("Generated torrent file")

	res.MagnetURI = magnetURI(&mi, info.Name)
	if magnetFile {
		res.MagnetPath = base + "-magnet.txt"
		if err := os.WriteFile(res.MagnetPath, []byte(res.MagnetURI), 0600); err != nil {
			return res, fmt.Errorf("writing magnet file %s: %w", res.MagnetPath, err)
		}
	}
	return res, nil
}

func validTrackers(trackers []string) []string {
	valid := make([]string, 0, len(trackers))
	for _, tracker := range trackers {
		u, err := url.Parse(tracker)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "udp") {
			log.WithField("tracker", tracker).Warn("Skipping invalid tracker URL")
			continue
		}
		valid = append(valid, tracker)
	}
	return valid
}

func writeMetainfo(path string, mi *metainfo.MetaInfo) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating torrent file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing torrent file %s: %w", path, closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err = mi.Write(f); err != nil {
		return fmt.Errorf("writing torrent file %s: %w", path, err)
	}
	return nil
}

func magnetURI(mi *metainfo.MetaInfo, name string) string {
	parts := []string{
		"magnet:?xt=urn:btih:" + mi.HashInfoBytes().HexString(),
		"dn=" + url.QueryEscape(name),
	}
	seen := map[string]bool{}
	for _, tier := range mi.UpvertedAnnounceList() {
		for _, tracker := range tier {
			if !seen[tracker] {
				seen[tracker] = true
				parts = append(parts, "tr="+url.QueryEscape(tracker))
			}
		}
	}
	return strings.Join(parts, "&")
}
