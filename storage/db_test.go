package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()
	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(dir, "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		level.Close()
		bolt.Close()
	})
	return map[string]Database{
		"mem":     NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseRoundTrip(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("a"), []byte("1")))
			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)

			require.NoError(t, db.Delete([]byte("a")))
			_, err = db.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDatabaseWriteAndIterate(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("p/stale"), []byte("x")))
			require.NoError(t, db.Write([]Op{
				{Key: []byte("p/2"), Value: []byte("two")},
				{Key: []byte("p/1"), Value: []byte("one")},
				{Key: []byte("q/1"), Value: []byte("other")},
				{Key: []byte("p/stale")},
			}))

			var keys []string
			require.NoError(t, db.Iterate([]byte("p/"), func(key, value []byte) error {
				keys = append(keys, string(key))
				return nil
			}))
			require.Equal(t, []string{"p/1", "p/2"}, keys)

			stop := errors.New("stop")
			err := db.Iterate([]byte("p/"), func(key, value []byte) error { return stop })
			require.ErrorIs(t, err, stop)
		})
	}
}

func TestDatabaseIterateFrom(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Write([]Op{
				{Key: []byte("o/"), Value: []byte("0")},
				{Key: []byte("p/a"), Value: []byte("1")},
				{Key: []byte("p/b"), Value: []byte("2")},
				{Key: []byte("p/c"), Value: []byte("3")},
				{Key: []byte("q/a"), Value: []byte("4")},
			}))
			collect := func(start []byte) []string {
				var keys []string
				require.NoError(t, db.IterateFrom([]byte("p/"), start, func(key, _ []byte) error {
					keys = append(keys, string(key))
					return nil
				}))
				return keys
			}
			require.Equal(t, []string{"p/a", "p/b", "p/c"}, collect(nil))
			require.Equal(t, []string{"p/a", "p/b", "p/c"}, collect([]byte("o/")))
			require.Equal(t, []string{"p/b", "p/c"}, collect([]byte("p/b")))
			require.Equal(t, []string{"p/c"}, collect([]byte("p/bb")))
			require.Empty(t, collect([]byte("p/d")))
			require.Empty(t, collect([]byte("q/")))
		})
	}
}
