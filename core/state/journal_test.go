package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"marketescrow/storage"
)

func TestJournalCommit(t *testing.T) {
	base := storage.NewMemDB()
	require.NoError(t, base.Put([]byte("k/keep"), []byte("base")))
	require.NoError(t, base.Put([]byte("k/drop"), []byte("base")))

	j := NewJournal(base)
	require.NoError(t, j.Put([]byte("k/new"), []byte("fresh")))
	require.NoError(t, j.Delete([]byte("k/drop")))

	_, err := j.Get([]byte("k/drop"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	got, err := j.Get([]byte("k/keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	// Base is untouched until commit.
	_, err = base.Get([]byte("k/new"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	var keys []string
	require.NoError(t, j.Iterate([]byte("k/"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"k/keep", "k/new"}, keys)

	require.NoError(t, j.Commit())
	require.Zero(t, j.Pending())
	got, err = base.Get([]byte("k/new"))
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), got)
	_, err = base.Get([]byte("k/drop"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournalDiscard(t *testing.T) {
	base := storage.NewMemDB()
	j := NewJournal(base)
	mgr := NewManager(j)
	var addr [20]byte
	addr[0] = 1
	require.NoError(t, mgr.SetNativeBalance(addr, 42))
	j.Discard()

	bal, err := NewManager(base).NativeBalance(addr)
	require.NoError(t, err)
	require.Zero(t, bal)
	bal, err = mgr.NativeBalance(addr)
	require.NoError(t, err)
	require.Zero(t, bal)
}

type failingDB struct {
	*storage.MemDB
}

func (f failingDB) Write([]storage.Op) error { return errors.New("disk full") }

func TestJournalCommitFailureKeepsBuffer(t *testing.T) {
	j := NewJournal(failingDB{storage.NewMemDB()})
	require.NoError(t, j.Put([]byte("a"), []byte("1")))
	require.Error(t, j.Commit())
	require.Equal(t, 1, j.Pending())
}

func TestJournalIterateFromMergesWrites(t *testing.T) {
	base := storage.NewMemDB()
	require.NoError(t, base.Put([]byte("k/a"), []byte("base")))
	require.NoError(t, base.Put([]byte("k/c"), []byte("base")))
	require.NoError(t, base.Put([]byte("k/d"), []byte("base")))
	j := NewJournal(base)
	require.NoError(t, j.Put([]byte("k/b"), []byte("new")))
	require.NoError(t, j.Put([]byte("k/e"), []byte("new")))
	require.NoError(t, j.Delete([]byte("k/d")))

	var keys []string
	require.NoError(t, j.IterateFrom([]byte("k/"), []byte("k/b"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"k/b", "k/c", "k/e"}, keys)
}
