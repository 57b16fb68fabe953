package lockchain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"main/types"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func entry(id uint64) types.ReceiptEntry {
	e := types.ReceiptEntry{
		ID:        id,
		Ticks:     id * 3,
		Lanes:     1,
		QuickHash: 0xdead<<32 | id,
		UnixMs:    1700000000000 + int64(id),
	}
	e.Span[0] = byte(id)
	e.ContentHash[0] = byte(id * 7)
	return e
}

func TestPersistAndVerify(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for i := uint64(1); i <= 25; i++ {
		s.Persist(entry(i))
	}
	n, err := s.Count()
	require.NoError(t, err)
	require.EqualValues(t, 25, n)
	require.NoError(t, s.Verify())
}

func TestChainResumesAcrossReopen(t *testing.T) {
	s, path := openTemp(t)
	s.Persist(entry(1))
	s.Persist(entry(2))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	s2.Persist(entry(3))

	n, err := s2.Count()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.NoError(t, s2.Verify())
}

func TestVerifyDetectsRewrittenPayload(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	s.Persist(entry(1))
	s.Persist(entry(2))
	s.Persist(entry(3))

	_, err := s.db.Exec(`UPDATE receipts SET ticks = 999, payload = ? WHERE seq = 2`, []byte(`{"forged":true}`))
	require.NoError(t, err)
	require.ErrorIs(t, s.Verify(), ErrChainBroken)
}

func TestVerifyDetectsDroppedRow(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	s.Persist(entry(1))
	s.Persist(entry(2))
	s.Persist(entry(3))

	_, err := s.db.Exec(`DELETE FROM receipts WHERE seq = 2`)
	require.NoError(t, err)
	require.ErrorIs(t, s.Verify(), ErrChainBroken)
}

func TestEmptyChainVerifies(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	require.NoError(t, s.Verify())
}

func TestFailedInsertIsCountedNotChained(t *testing.T) {
	s, _ := openTemp(t)
	s.Persist(entry(1))
	require.NoError(t, s.Close())

	// Inserts against a closed handle fail; the head and sequence must
	// stay where the last good row left them, with the loss counted.
	s.Persist(entry(2))
	require.Equal(t, uint64(1), s.Dropped())
	require.Equal(t, uint64(1), s.seq)
}
