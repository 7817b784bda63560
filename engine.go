// Package kashk is an embeddable, single-node, log-structured key/value
// store in the Bitcask tradition: point get/set/delete against an
// append-only data file, backed by a full in-memory index so a read costs
// one seek.
package kashk

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/rezkam/kashk/internal/index"
	"github.com/rezkam/kashk/internal/kverrors"
	"github.com/rezkam/kashk/internal/pool"
	"github.com/rezkam/kashk/internal/record"
	"github.com/rezkam/kashk/internal/writer"
)

// defaultThreshold is the auto-compaction threshold used by Load when no
// explicit value is given.
const defaultThreshold = 1 << 20 // 1 MiB

// Engine is the storage engine. It is safe for concurrent use by multiple
// goroutines; the zero value is not usable, construct with Load or
// LoadWithThreshold.
type Engine struct {
	// writerMu is the "writer lock" from the concurrency design: it
	// serializes Set, Delete and Compact and is always acquired before the
	// index lock, never after.
	writerMu sync.Mutex

	idx  *index.Index
	pool *pool.Pool
	w    *writer.Writer

	path      string
	threshold int64
}

// Option customizes an Engine at construction time.
type Option func(*Engine) error

// WithThreshold overrides the auto-compaction threshold (bytes).
func WithThreshold(bytes int64) Option {
	return func(e *Engine) error {
		if bytes <= 0 {
			return kverrors.New(kverrors.Encode, "kashk: threshold must be positive", nil)
		}
		e.threshold = bytes
		return nil
	}
}

// WithReaderPoolWarm pre-opens n read handles into the reader pool so the
// first n concurrent Get calls don't pay the open() cost.
func WithReaderPoolWarm(n int) Option {
	return func(e *Engine) error {
		handles := make([]*os.File, 0, n)
		for i := 0; i < n; i++ {
			h, err := e.pool.Acquire()
			if err != nil {
				return kverrors.New(kverrors.IO, "kashk: warm reader pool", err)
			}
			handles = append(handles, h)
		}
		for _, h := range handles {
			e.pool.Release(h)
		}
		return nil
	}
}

// Load opens (creating if absent) the data file at path, replays it to
// rebuild the index, and returns a ready Engine using the default
// auto-compaction threshold.
func Load(path string, opts ...Option) (*Engine, error) {
	return LoadWithThreshold(path, defaultThreshold, opts...)
}

// LoadWithThreshold is Load with an explicit auto-compaction threshold in
// bytes.
func LoadWithThreshold(path string, threshold int64, opts ...Option) (*Engine, error) {
	if threshold <= 0 {
		return nil, kverrors.New(kverrors.Encode, "kashk: threshold must be positive", nil)
	}

	idx, err := recoverIndex(path)
	if err != nil {
		return nil, err
	}

	w, err := writer.Open(path)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		idx:       idx,
		pool:      pool.New(path),
		w:         w,
		path:      path,
		threshold: threshold,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	return e, nil
}

// Set appends a new record for key with the given value and publishes it
// to the index. If the tracked file size exceeds the engine's threshold
// after the append, Compact runs synchronously before Set returns.
func (e *Engine) Set(key, value []byte) error {
	if len(key) == 0 {
		return kverrors.New(kverrors.Encode, "kashk: key must not be empty", nil)
	}
	if value == nil {
		value = []byte{}
	}

	payload, err := record.Encode(record.Record{
		Timestamp: uint64(time.Now().UnixMilli()),
		Key:       key,
		Value:     value,
	})
	if err != nil {
		return kverrors.New(kverrors.Encode, "kashk: encode record", err)
	}
	prefix := record.EncodePrefix(uint64(len(payload)))

	e.writerMu.Lock()
	offset, err := e.w.Append(prefix, payload)
	if err != nil {
		e.writerMu.Unlock()
		return err
	}
	e.idx.Set(string(key), index.Location{Offset: uint64(offset), Length: uint64(len(payload))})
	size := e.w.Size()
	e.writerMu.Unlock()

	if size > e.threshold {
		return e.Compact()
	}
	return nil
}

// Get returns the current value for key. ok is false if the key was never
// written or its most recent record is a tombstone; err is non-nil only on
// I/O failure or corruption.
func (e *Engine) Get(key []byte) (value []byte, ok bool, err error) {
	e.idx.RLock()
	defer e.idx.RUnlock()

	loc, found := e.idx.Lookup(string(key))
	if !found {
		return nil, false, nil
	}

	h, err := e.pool.Acquire()
	if err != nil {
		return nil, false, kverrors.New(kverrors.IO, "kashk: acquire reader", err)
	}

	buf := make([]byte, loc.Length)
	if _, err := h.ReadAt(buf, int64(loc.Offset)); err != nil {
		e.pool.Discard(h)
		return nil, false, kverrors.New(kverrors.IO, "kashk: read record", err)
	}
	e.pool.Release(h)

	rec, err := record.Decode(buf)
	if err != nil {
		return nil, false, err
	}
	if rec.IsTombstone() {
		return nil, false, kverrors.New(kverrors.Corruption, "kashk: index pointed at a tombstone", nil)
	}
	if !bytes.Equal(rec.Key, key) {
		return nil, false, kverrors.New(kverrors.Corruption, "kashk: decoded key does not match requested key", nil)
	}

	return rec.Value, true, nil
}

// Delete appends a tombstone for key and removes it from the index. It is
// not an error to delete an absent or already-deleted key; the tombstone
// is still written so that replay on a later Load observes the deletion
// even against a Set that's only visible on disk via an older log entry.
func (e *Engine) Delete(key []byte) error {
	if len(key) == 0 {
		return kverrors.New(kverrors.Encode, "kashk: key must not be empty", nil)
	}

	payload, err := record.Encode(record.Record{
		Timestamp: uint64(time.Now().UnixMilli()),
		Key:       key,
		Value:     nil,
	})
	if err != nil {
		return kverrors.New(kverrors.Encode, "kashk: encode tombstone", err)
	}
	prefix := record.EncodePrefix(uint64(len(payload)))

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if _, err := e.w.Append(prefix, payload); err != nil {
		return err
	}
	e.idx.Remove(string(key))
	return nil
}

// Close flushes and closes the writer handle and every pooled reader
// handle. The Engine must not be used afterward.
func (e *Engine) Close() error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	e.pool.Drain()
	return e.w.Close()
}
