// Package record defines the on-disk framing and payload encoding for a
// single log entry: an 8-byte length prefix followed by a self-delimiting
// payload of (timestamp, key, optional value).
package record

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rezkam/kashk/internal/kverrors"
)

const (
	// PrefixSize is the width of the on-disk length prefix in bytes.
	PrefixSize = 8

	tombstoneFlag = byte(0)
	presentFlag   = byte(1)
)

// Record is the logical decoded form of a log entry. Value is nil for a
// tombstone; a present-but-empty value is distinct from a tombstone and is
// represented by a non-nil zero-length slice.
type Record struct {
	Timestamp uint64
	Key       []byte
	Value     []byte // nil means tombstone
}

// IsTombstone reports whether this record marks its key deleted.
func (r Record) IsTombstone() bool { return r.Value == nil }

// Encode serializes the payload (without the length prefix) for r.
func Encode(r Record) ([]byte, error) {
	flag := presentFlag
	if r.IsTombstone() {
		flag = tombstoneFlag
	}

	size := 8 /* timestamp */ + 4 + len(r.Key) + 1 /* flag */
	if !r.IsTombstone() {
		size += 4 + len(r.Value)
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], r.Timestamp)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.Key)))
	off += 4
	off += copy(buf[off:], r.Key)
	buf[off] = flag
	off++
	if !r.IsTombstone() {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.Value)))
		off += 4
		off += copy(buf[off:], r.Value)
	}

	return buf, nil
}

// Decode deserializes a payload (the bytes after the length prefix) back
// into a Record. Returns a kverrors.Corruption error if the payload is
// shorter than its own internal lengths claim.
func Decode(payload []byte) (Record, error) {
	if len(payload) < 8+4+1 {
		return Record{}, kverrors.New(kverrors.Corruption, "record: payload too short", io.ErrUnexpectedEOF)
	}

	off := 0
	ts := binary.LittleEndian.Uint64(payload[off:])
	off += 8

	keyLen := int(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	if off+keyLen+1 > len(payload) {
		return Record{}, kverrors.New(kverrors.Corruption, "record: key overruns payload", nil)
	}
	key := make([]byte, keyLen)
	copy(key, payload[off:off+keyLen])
	off += keyLen

	flag := payload[off]
	off++

	switch flag {
	case tombstoneFlag:
		if off != len(payload) {
			return Record{}, kverrors.New(kverrors.Corruption, "record: trailing bytes after tombstone", nil)
		}
		return Record{Timestamp: ts, Key: key, Value: nil}, nil
	case presentFlag:
		if off+4 > len(payload) {
			return Record{}, kverrors.New(kverrors.Corruption, "record: missing value length", nil)
		}
		valLen := int(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		if off+valLen != len(payload) {
			return Record{}, kverrors.New(kverrors.Corruption, "record: value length mismatch", nil)
		}
		// make, not append to nil: an empty value must stay non-nil so it
		// is not mistaken for a tombstone.
		value := make([]byte, valLen)
		copy(value, payload[off:off+valLen])
		return Record{Timestamp: ts, Key: key, Value: value}, nil
	default:
		return Record{}, kverrors.New(kverrors.Corruption, fmt.Sprintf("record: unknown discriminant %d", flag), nil)
	}
}

// EncodePrefix returns the 8-byte little-endian length prefix for a payload
// of the given length.
func EncodePrefix(length uint64) []byte {
	buf := make([]byte, PrefixSize)
	binary.LittleEndian.PutUint64(buf, length)
	return buf
}

// DecodePrefix parses an 8-byte little-endian length prefix.
func DecodePrefix(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}
