package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
)

// Builder accumulates named entries and produces the final archive bytes.
// A Builder is used by one job only and is not safe for concurrent use.
type Builder interface {
	AddEntry(name string, data []byte) error
	Finalize() ([]byte, error)
}

// BuilderFactory returns a fresh Builder for each job.
type BuilderFactory func() Builder

// ZipBuilder writes a deflate-compressed zip archive in memory.
type ZipBuilder struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	modified time.Time
	closed   bool
}

// NewZipBuilder is the default BuilderFactory.
func NewZipBuilder() Builder {
	b := &ZipBuilder{modified: time.Now()}
	b.zw = zip.NewWriter(&b.buf)
	return b
}

// AddEntry implements Builder. Entry names are sanitised so they cannot
// escape the archive root on extraction.
func (b *ZipBuilder) AddEntry(name string, data []byte) error {
	if b.closed {
		return fmt.Errorf("zip builder already finalized")
	}
	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     entryPath(name),
		Method:   zip.Deflate,
		Modified: b.modified,
	})
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}

// entryPath normalises name to a forward-slash path relative to the archive
// root, whatever the host separator is.
func entryPath(name string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimPrefix(cleaned, "/")
}

// Finalize implements Builder.
func (b *ZipBuilder) Finalize() ([]byte, error) {
	if b.closed {
		return nil, fmt.Errorf("zip builder already finalized")
	}
	b.closed = true
	if err := b.zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip writer: %w", err)
	}
	return b.buf.Bytes(), nil
}
