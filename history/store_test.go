package history

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndLatest(t *testing.T) {
	s := openTestStore(t)
	session := uuid.NewString()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Add(&Entry{SessionID: session, Kind: KindTranscription, Text: "first", CreatedAt: base}))
	require.NoError(t, s.Add(&Entry{SessionID: session, Kind: KindTranscription, Text: "second", AudioSeconds: 4.5, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Add(&Entry{SessionID: session, Kind: KindTranslation, Language: "Spanish", Text: "segundo", Deidentified: "[REDACTED]", CreatedAt: base.Add(2 * time.Minute)}))

	e, err := s.Latest(KindTranscription)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "second", e.Text)
	assert.Equal(t, 4.5, e.AudioSeconds)
	assert.WithinDuration(t, base.Add(time.Minute), e.CreatedAt, time.Millisecond)
	_, err = uuid.Parse(e.ID)
	assert.NoError(t, err)

	tr, err := s.Latest(KindTranslation)
	require.NoError(t, err)
	assert.Equal(t, "Spanish", tr.Language)
	assert.Equal(t, "[REDACTED]", tr.Deidentified)
}

func TestLatestEmpty(t *testing.T) {
	s := openTestStore(t)
	e, err := s.Latest(KindTranscription)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	for i, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(&Entry{Kind: KindTranscription, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	entries, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Text)
	assert.Equal(t, "b", entries[1].Text)
}

func TestForSession(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	require.NoError(t, s.Add(&Entry{SessionID: "one", Kind: KindTranscription, Text: "x", CreatedAt: base}))
	require.NoError(t, s.Add(&Entry{SessionID: "two", Kind: KindTranscription, Text: "y", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.Add(&Entry{SessionID: "one", Kind: KindTranslation, Text: "z", CreatedAt: base.Add(2 * time.Second)}))

	entries, err := s.ForSession("one")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindTranscription, entries[0].Kind)
	assert.Equal(t, KindTranslation, entries[1].Kind)
}

func TestAddRejectsEmptyText(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Add(&Entry{Kind: KindTranscription}))
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Add(&Entry{Kind: KindTranscription, Text: "persisted"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	e, err := s.Latest(KindTranscription)
	require.NoError(t, err)
	assert.Equal(t, "persisted", e.Text)
}

func TestOpenCreatesOwnerOnlyFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix permission bits")
	}
	dir := filepath.Join(t.TempDir(), "clinic")
	s, err := Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for _, p := range []string{dir, filepath.Join(dir, "history.db")} {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.Zero(t, fi.Mode().Perm()&0o077, "%s mode %o", p, fi.Mode().Perm())
	}
}
