package kashk

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data")
}

func TestEmptyLoad(t *testing.T) {
	path := dataPath(t)

	e, err := Load(path)
	require.NoError(t, err)

	_, ok, err := e.Get([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, e.Close())

	e, err = Load(path)
	require.NoError(t, err)
	defer e.Close()

	_, ok, err = e.Get([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBasicCRUD(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Set([]byte("b"), []byte("2")))

	v, ok, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	v, ok, err = e.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))

	require.NoError(t, e.Set([]byte("a"), []byte("3")))
	v, ok, err = e.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))

	require.NoError(t, e.Delete([]byte("a")))
	_, ok, err = e.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = e.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := dataPath(t)

	e, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Set([]byte("b"), []byte("2")))
	require.NoError(t, e.Set([]byte("a"), []byte("3")))
	require.NoError(t, e.Delete([]byte("nonexistent-before-close")))
	require.NoError(t, e.Close())

	e, err = Load(path)
	require.NoError(t, err)
	defer e.Close()

	v, ok, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(v))

	v, ok, err = e.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestDeleteNonExistentKeyIsNotAnError(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Delete([]byte("never-set")))
	_, ok, err := e.Get([]byte("never-set"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyKeyIsRejected(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	require.Error(t, e.Set([]byte(""), []byte("v")))
	require.Error(t, e.Delete([]byte("")))
}

func TestEmptyValueIsAPresentRecordNotATombstone(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set([]byte("k"), []byte{}))
	v, ok, err := e.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", string(v))
}

func TestAutoCompactionKeepsSizeBounded(t *testing.T) {
	path := dataPath(t)
	e, err := LoadWithThreshold(path, 4096)
	require.NoError(t, err)
	defer e.Close()

	bigValue := make([]byte, 512)
	for i := range bigValue {
		bigValue[i] = byte(i)
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Set([]byte("k"), bigValue))
	}

	v, ok, err := e.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bigValue, v)

	info, err := statFile(path)
	require.NoError(t, err)
	assert.Less(t, info, int64(20*(8+4+1+1+4+len(bigValue))))
}

func TestManyDistinctKeysCompaction(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	value := make([]byte, 100)
	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		require.NoError(t, e.Set(key, value))
	}
	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		value2 := append(append([]byte{}, value...), byte(i))
		require.NoError(t, e.Set(key, value2))
	}

	require.NoError(t, e.Compact())

	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		want := append(append([]byte{}, value...), byte(i))
		got, ok, err := e.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestTombstoneCompaction(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Delete([]byte("a")))
	require.NoError(t, e.Compact())

	_, ok, err := e.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func statFile(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
