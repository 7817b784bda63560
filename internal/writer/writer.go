// Package writer owns the single append-only handle to the engine's data
// file. It is not internally synchronized: callers (the engine) serialize
// access to it via their own writer lock, per the engine's documented lock
// order (writer lock -> index lock -> reader-pool lock).
package writer

import (
	"io"
	"os"

	"github.com/rezkam/kashk/internal/kverrors"
)

// Writer is the exclusive owner of one append-only file handle.
type Writer struct {
	file *os.File
	size int64
}

// Open opens (creating if absent) path in append mode and seeds size from
// the file's current length.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kverrors.New(kverrors.IO, "writer: open", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, kverrors.New(kverrors.IO, "writer: stat", err)
	}

	return &Writer{file: f, size: info.Size()}, nil
}

// Append writes prefix then payload to the tail of the file and returns the
// offset at which payload (not prefix) begins.
//
// On a partial write the file is truncated back to the pre-append size so
// Size stays accurate, and the error is surfaced.
func (w *Writer) Append(prefix, payload []byte) (offset int64, err error) {
	base := w.size

	n, err := w.file.Write(prefix)
	if err == nil && n == len(prefix) {
		var n2 int
		n2, err = w.file.Write(payload)
		n += n2
	}
	if err != nil {
		_ = w.file.Truncate(base)
		_, _ = w.file.Seek(0, io.SeekEnd)
		return 0, kverrors.New(kverrors.IO, "writer: append", err)
	}

	w.size = base + int64(len(prefix)+len(payload))
	return base + int64(len(prefix)), nil
}

// Size returns the writer's tracked file size.
func (w *Writer) Size() int64 { return w.size }

// Replace closes the current handle and swaps in a freshly opened one
// against newPath, reseeding size. Used by compaction after the rename.
func (w *Writer) Replace(newPath string) error {
	f, err := os.OpenFile(newPath, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return kverrors.New(kverrors.IO, "writer: reopen after compaction", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return kverrors.New(kverrors.IO, "writer: stat after compaction", err)
	}

	_ = w.file.Close()
	w.file = f
	w.size = info.Size()
	return nil
}

// Sync flushes the handle to the OS (best-effort durability boundary).
func (w *Writer) Sync() error {
	if err := w.file.Sync(); err != nil {
		return kverrors.New(kverrors.IO, "writer: sync", err)
	}
	return nil
}

// Close syncs and closes the handle.
func (w *Writer) Close() error {
	if err := w.file.Sync(); err != nil {
		return kverrors.New(kverrors.IO, "writer: sync on close", err)
	}
	if err := w.file.Close(); err != nil {
		return kverrors.New(kverrors.IO, "writer: close", err)
	}
	return nil
}
