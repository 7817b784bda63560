package kashk

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/kashk/internal/record"
)

// P3: compact() then Get(K) returns what Get(K) returned before compaction.
func TestCompactPreservesObservableState(t *testing.T) {
	e, err := Load(dataPath(t))
	require.NoError(t, err)
	defer e.Close()

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		require.NoError(t, e.Set([]byte(k), []byte("v-"+k)))
	}
	require.NoError(t, e.Set([]byte("a"), []byte("v-a-2")))
	require.NoError(t, e.Delete([]byte("b")))

	before := map[string]string{}
	for _, k := range keys {
		v, ok, err := e.Get([]byte(k))
		require.NoError(t, err)
		if ok {
			before[k] = string(v)
		}
	}

	require.NoError(t, e.Compact())

	for _, k := range keys {
		v, ok, err := e.Get([]byte(k))
		require.NoError(t, err)
		want, wantOk := before[k]
		assert.Equal(t, wantOk, ok)
		if ok {
			assert.Equal(t, want, string(v))
		}
	}
}

// P4: after compact(), file size == sum over live keys of (8 + framed payload length).
func TestCompactFileSizeMatchesLiveRecords(t *testing.T) {
	path := dataPath(t)
	e, err := Load(path)
	require.NoError(t, err)
	defer e.Close()

	live := map[string]string{}
	for i := 0; i < 30; i++ {
		k := fmt.Sprintf("key-%d", i)
		v := fmt.Sprintf("value-%d", i)
		require.NoError(t, e.Set([]byte(k), []byte(v)))
		live[k] = v
	}
	for i := 0; i < 10; i++ {
		k := fmt.Sprintf("key-%d", i)
		require.NoError(t, e.Delete([]byte(k)))
		delete(live, k)
	}

	preCompactInfo, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, e.Compact())

	postCompactInfo, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, postCompactInfo.Size(), preCompactInfo.Size())

	var want int64
	for k, v := range live {
		payload, err := record.Encode(record.Record{Timestamp: 0, Key: []byte(k), Value: []byte(v)})
		require.NoError(t, err)
		want += record.PrefixSize + int64(len(payload))
	}
	assert.Equal(t, want, postCompactInfo.Size())
}

func TestCompactOnEmptyEngineIsANoop(t *testing.T) {
	path := dataPath(t)
	e, err := Load(path)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Compact())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}
