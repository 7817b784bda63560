package kashk

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/rezkam/kashk/internal/index"
	"github.com/rezkam/kashk/internal/kverrors"
	"github.com/rezkam/kashk/internal/record"
)

// recoverIndex opens (creating if absent) the data file at path and
// replays it from offset 0, rebuilding the index. A short read at EOF
// (fewer than 8 prefix bytes, or fewer than the framed payload length) is
// treated as a torn trailing append: the file is truncated back to the
// last clean record boundary. A decode error mid-file is a hard
// corruption error and is surfaced without truncating anything.
func recoverIndex(path string) (*index.Index, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, kverrors.New(kverrors.IO, "recover: open", err)
	}
	defer f.Close()

	idx := index.New()
	prefixBuf := make([]byte, record.PrefixSize)

	var cursor int64
	for {
		n, err := io.ReadFull(f, prefixBuf)
		if err == io.EOF {
			break // clean boundary: nothing more to read
		}
		if err == io.ErrUnexpectedEOF {
			slog.Warn("kashk: torn trailing length prefix, truncating", "path", path, "offset", cursor, "bytes_read", n)
			break
		}
		if err != nil {
			return nil, kverrors.New(kverrors.IO, "recover: read length prefix", err)
		}

		length := record.DecodePrefix(prefixBuf)
		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Warn("kashk: torn trailing record, truncating", "path", path, "offset", cursor, "want", length)
				break
			}
			return nil, kverrors.New(kverrors.IO, "recover: read payload", err)
		}

		rec, err := record.Decode(payload)
		if err != nil {
			return nil, err // mid-file corruption is a hard failure, never skipped
		}

		offset := cursor + record.PrefixSize
		if rec.IsTombstone() {
			idx.Remove(string(rec.Key))
		} else {
			idx.Set(string(rec.Key), index.Location{Offset: uint64(offset), Length: length})
		}

		cursor = offset + int64(length)
	}

	if err := f.Truncate(cursor); err != nil {
		return nil, kverrors.New(kverrors.IO, "recover: truncate torn tail", err)
	}

	return idx, nil
}
