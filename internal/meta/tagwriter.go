package meta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
)

// FieldFrames maps each editable field to the ID3v2.4 frame that stores it
var FieldFrames = map[string]string{
	"title":       "TIT2",
	"artist":      "TPE1",
	"album":       "TALB",
	"tracknumber": "TRCK",
	"genre":       "TCON",
	"date":        "TDRC",
	"albumartist": "TPE2",
	"composer":    "TCOM",
}

// legacyFrames are older frames that hold the same value as a field and are
// removed whenever that field is written
var legacyFrames = map[string][]string{
	"date": {"TYER", "TDAT", "TIME"},
}

const id3v1Size = 128

// TagWriter writes and clears tags
type TagWriter interface {
	WriteTags(ctx context.Context, path string, t *store.Tags) error
	ClearTags(ctx context.Context, path string) error
}

// FileTagWriter writes ID3v2 tags to disk, retrying transient I/O errors
type FileTagWriter struct {
	Retry *util.RetryConfig
}

// NewFileTagWriter returns a writer with the default retry policy
func NewFileTagWriter() *FileTagWriter {
	return &FileTagWriter{Retry: util.DefaultRetryConfig()}
}

// WriteTags implements TagWriter
func (w *FileTagWriter) WriteTags(ctx context.Context, path string, t *store.Tags) error {
	return util.Retry(ctx, w.Retry, "write tags "+filepath.Base(path), func() error {
		return WriteTags(path, t)
	})
}

// ClearTags implements TagWriter
func (w *FileTagWriter) ClearTags(ctx context.Context, path string) error {
	return util.Retry(ctx, w.Retry, "clear tags "+filepath.Base(path), func() error {
		return ClearTags(path)
	})
}

// WriteTags saves t to path as ID3v2.4 UTF-8 frames. Every known field is
// replaced: a value that is non-empty after trimming sets its frame, an empty
// one deletes it. Frames outside FieldFrames are left alone.
func WriteTags(path string, t *store.Tags) error {
	if t == nil {
		return fmt.Errorf("tags are nil")
	}
	if !CanWriteTags(path) {
		return fmt.Errorf("%s: %w", filepath.Ext(path), util.ErrUnsupported)
	}

	tag, err := openID3(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	for _, field := range store.TagFields {
		frameID := FieldFrames[field]
		value, _ := t.Get(field)
		value = strings.TrimSpace(value)

		tag.DeleteFrames(frameID)
		for _, legacy := range legacyFrames[field] {
			tag.DeleteFrames(legacy)
		}

		if value != "" {
			tag.AddTextFrame(frameID, id3v2.EncodingUTF8, value)
		}
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}

	util.DebugLog("Wrote tags to: %s", path)
	return nil
}

// ClearTags removes every ID3v2 frame and a trailing ID3v1 block from path
func ClearTags(path string) error {
	if !CanWriteTags(path) {
		return fmt.Errorf("%s: %w", filepath.Ext(path), util.ErrUnsupported)
	}

	if err := stripID3v1(path); err != nil {
		return err
	}

	tag, err := openID3(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.DeleteAllFrames()
	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save cleared tags: %w", err)
	}

	util.DebugLog("Cleared tags of: %s", path)
	return nil
}

// openID3 opens path for tag editing. ID3v2.2 tags cannot be rewritten by
// the library, so they are dropped before retrying.
func openID3(path string) (*id3v2.Tag, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if errors.Is(err, id3v2.ErrUnsupportedVersion) {
		if stripErr := stripID3v2(path); stripErr != nil {
			return nil, fmt.Errorf("failed to strip unsupported ID3v2 tag: %w", stripErr)
		}
		tag, err = id3v2.Open(path, id3v2.Options{Parse: true})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open tags: %w", err)
	}
	return tag, nil
}

// stripID3v2 removes a leading ID3v2 block, whatever its version
func stripID3v2(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	if len(data) < 10 || string(data[:3]) != "ID3" {
		return nil
	}

	// Synchsafe size: 7 bits per byte
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	tagSize := size + 10
	if data[5]&0x10 != 0 {
		tagSize += 10
	}

	if tagSize > len(data) {
		return fmt.Errorf("ID3v2 tag size (%d) exceeds file size (%d)", tagSize, len(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	if err := os.WriteFile(path, data[tagSize:], info.Mode()); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// stripID3v1 truncates a trailing 128-byte "TAG" block if there is one
func stripID3v1(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() < id3v1Size {
		return nil
	}

	header := make([]byte, 3)
	if _, err := f.ReadAt(header, info.Size()-id3v1Size); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read ID3v1 header: %w", err)
	}
	if !bytes.Equal(header, []byte("TAG")) {
		return nil
	}

	if err := f.Truncate(info.Size() - id3v1Size); err != nil {
		return fmt.Errorf("failed to strip ID3v1 tag: %w", err)
	}
	return nil
}

// CanWriteTags checks if we can write tags for this file format
func CanWriteTags(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}
