package kashk

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/rezkam/kashk/internal/index"
	"github.com/rezkam/kashk/internal/kverrors"
	"github.com/rezkam/kashk/internal/record"
)

// Compact rewrites the log to contain exactly one record per live key. It
// holds the writer lock for the whole operation, serializing it against
// concurrent Set/Delete; a Get running concurrently either completes
// entirely against the old file (if it took the index read lock before the
// swap) or entirely against the new one (if after).
//
// Any I/O or decode error before the rename leaves the original file and
// index untouched and is surfaced to the caller. A failure after the
// rename is fatal to the Engine, since the old data is already gone.
func (e *Engine) Compact() error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	snapshot := e.idx.Snapshot()

	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, ".kashk-compact-*")
	if err != nil {
		return kverrors.New(kverrors.IO, "compact: create temp file", err)
	}
	tmpPath := tmp.Name()
	abort := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return cause
	}

	oldFile, err := os.Open(e.path)
	if err != nil {
		return abort(kverrors.New(kverrors.IO, "compact: open source file", err))
	}
	defer oldFile.Close()

	// Advisory hint only: compaction scans the whole old file sequentially.
	// Not a lock, so it doesn't conflict with the engine's no-file-locking
	// policy.
	_ = unix.Fadvise(int(oldFile.Fd()), 0, 0, unix.FADV_SEQUENTIAL)

	newEntries := make(map[string]index.Location, len(snapshot))
	var cursor int64

	for key, loc := range snapshot {
		payload := make([]byte, loc.Length)
		if _, err := oldFile.ReadAt(payload, int64(loc.Offset)); err != nil {
			return abort(kverrors.New(kverrors.IO, fmt.Sprintf("compact: read payload for key %q", key), err))
		}

		rec, err := record.Decode(payload)
		if err != nil {
			return abort(err)
		}
		if rec.IsTombstone() || !bytes.Equal(rec.Key, []byte(key)) {
			return abort(kverrors.New(kverrors.Corruption, fmt.Sprintf("compact: stale index entry for key %q", key), nil))
		}

		prefix := record.EncodePrefix(loc.Length)
		if _, err := tmp.Write(prefix); err != nil {
			return abort(kverrors.New(kverrors.IO, "compact: write prefix", err))
		}
		if _, err := tmp.Write(payload); err != nil {
			return abort(kverrors.New(kverrors.IO, "compact: write payload", err))
		}

		newEntries[key] = index.Location{Offset: uint64(cursor) + record.PrefixSize, Length: loc.Length}
		cursor += record.PrefixSize + int64(loc.Length)
	}

	if err := tmp.Sync(); err != nil {
		return abort(kverrors.New(kverrors.IO, "compact: sync temp file", err))
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return abort(kverrors.New(kverrors.IO, "compact: rewind temp file", err))
	}

	// Take the index write lock before the rename so no Get can pair an
	// old-file Location with a handle opened against the new file.
	e.idx.Lock()
	defer e.idx.Unlock()

	// atomic.WriteFile does its own temp-file-plus-rename dance in dir(e.path),
	// so the replace of the live data file is atomic on this platform.
	if err := atomic.WriteFile(e.path, tmp); err != nil {
		return abort(kverrors.New(kverrors.IO, "compact: atomic replace", err))
	}
	_ = tmp.Close()
	_ = os.Remove(tmpPath)

	e.idx.Replace(newEntries)
	e.pool.Drain()

	if err := e.w.Replace(e.path); err != nil {
		// The rename already happened: the original file is gone. Surface
		// the error but the engine's writer is now in an unusable state.
		slog.Error("kashk: compaction rename succeeded but reopening the writer failed; engine is unusable", "err", err)
		return err
	}

	slog.Info("kashk: compaction complete", "live_keys", len(newEntries), "new_size", cursor)
	return nil
}
