package helpers

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// urlPattern matches the first http(s) link inside free text such as a share message.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s]+`)

// CleanURL strips backticks some parse APIs wrap around returned links.
// It does not escape anything else and is idempotent.
func CleanURL(raw string) string {
	return strings.ReplaceAll(raw, "`", "")
}

// ExtractURL returns the first http(s) URL found in text, or the trimmed text
// itself when it contains none.
func ExtractURL(text string) string {
	trimmed := strings.TrimSpace(text)
	if match := urlPattern.FindString(trimmed); match != "" {
		return match
	}
	return trimmed
}

// IsValidURL reports whether raw parses as an absolute URL: it needs a scheme
// and either a host (http://host/...) or an opaque part (mailto:x).
func IsValidURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// EncodeURIComponent percent-encodes s the way browsers do for a single query
// component: everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is escaped and
// spaces become %20.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	replacer := strings.NewReplacer(
		"+", "%20",
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	)
	return replacer.Replace(escaped)
}

// FileNameFromURL derives a download name from the last path segment of a URL,
// dropping any query string. Returns fallback when nothing usable remains.
func FileNameFromURL(raw string, fallback string) string {
	segments := strings.Split(raw, "/")
	name := segments[len(segments)-1]
	if i := strings.Index(name, "?"); i != -1 {
		name = name[:i]
	}
	if i := strings.Index(name, "#"); i != -1 {
		name = name[:i]
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = filepath.Base(SanitizePath(name))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

// FormatNumber renders n with comma thousands separators. Zero renders as "0".
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// FormatDate renders a unix timestamp as "YYYY-MM-DD HH:MM" in local time.
// Values of ten digits or fewer are taken as seconds, longer ones as
// milliseconds. Zero yields "".
func FormatDate(ts int64) string {
	if ts == 0 {
		return ""
	}
	if len(strconv.FormatInt(ts, 10)) <= 10 {
		ts *= 1000
	}
	return time.UnixMilli(ts).Local().Format("2006-01-02 15:04")
}

// ArchiveName returns the download name for an image archive created at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("images_%d.zip", t.UnixMilli())
}

// BytesToSize converts a byte count to a human readable string.
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := 0
	value := float64(bytes)
	for value >= 1024 && i < len(sizes)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, sizes[i])
}

// SanitizePath cleans a relative path and removes leading separators and
// parent-directory segments so the result cannot escape its base directory.
func SanitizePath(path string) string {
	cleaned := filepath.Clean("/" + filepath.ToSlash(path))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "."
	}
	return cleaned
}

// CheckAndMakeDir ensures dir exists, creating it (and parents) if needed.
func CheckAndMakeDir(dir string) bool {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.WithError(err).Errorf("Failed to create directory %s", dir)
		return false
	}
	return true
}

// CounterWriter counts the bytes written through it.
type CounterWriter struct {
	Writer io.Writer
	Total  uint64
}

func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}
