package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/robertmeta/journal-cli/codec"
	"github.com/robertmeta/journal-cli/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCodec keeps the saved journal in memory and can be told to fail.
type memCodec struct {
	saved   []model.Entry
	saves   int
	saveErr error
}

func (m *memCodec) Load() []model.Entry {
	out := make([]model.Entry, len(m.saved))
	copy(out, m.saved)
	return out
}

func (m *memCodec) Save(entries []model.Entry) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = make([]model.Entry, len(entries))
	copy(m.saved, entries)
	return nil
}

func (m *memCodec) Path() string { return "memory" }
func (m *memCodec) Close() error { return nil }

func entryOn(date, text string) model.Entry {
	return model.NewEntry(date, "", "", text, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
}

func newTestStore(t *testing.T, entries ...model.Entry) (*Store, *memCodec) {
	t.Helper()
	c := &memCodec{saved: entries}
	return Open(c, zerolog.Nop()), c
}

func TestOpen_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.List())
	assert.Empty(t, s.List())
}

func TestStore_AddKeepsOrder(t *testing.T) {
	s, c := newTestStore(t)

	entries := []model.Entry{
		entryOn("2025-01-03", "third day"),
		entryOn("2025-01-01", "first day"),
		entryOn("2025-01-02", "second day"),
	}
	for i, e := range entries {
		require.NoError(t, s.Add(e))
		assert.Equal(t, i+1, c.saves, "every add flushes")
	}

	assert.Equal(t, entries, s.List())
	assert.Equal(t, entries, c.saved)
}

func TestStore_AddFlushError(t *testing.T) {
	s, c := newTestStore(t)
	c.saveErr = errors.New("disk full")

	err := s.Add(entryOn("2025-01-01", "lost?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, c.saveErr)

	// The entry stays in memory so a later flush can still persist it.
	assert.Equal(t, 1, s.Len())

	c.saveErr = nil
	require.NoError(t, s.Flush())
	assert.Len(t, c.saved, 1)
}

func TestStore_ListIsACopy(t *testing.T) {
	s, _ := newTestStore(t, entryOn("2025-01-01", "original"))

	list := s.List()
	list[0].Text = "changed"

	assert.Equal(t, "original", s.List()[0].Text)
}

func TestStore_ListDoesNotFlush(t *testing.T) {
	s, c := newTestStore(t, entryOn("2025-01-01", "a"))

	s.List()
	s.FindByDate("2025-01-01")
	assert.Equal(t, 0, c.saves)
}

func TestStore_FindByDate(t *testing.T) {
	e1 := entryOn("2025-01-01", "one")
	e2 := entryOn("2025-01-02", "two")
	e3 := entryOn("2025-01-01", "three")
	s, _ := newTestStore(t, e1, e2, e3)

	assert.Equal(t, []model.Entry{e1, e3}, s.FindByDate("2025-01-01"))
	assert.Equal(t, []model.Entry{e2}, s.FindByDate("2025-01-02"))

	none := s.FindByDate("2025-12-31")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_DeleteAtShifts(t *testing.T) {
	e1 := entryOn("2025-01-01", "one")
	e2 := entryOn("2025-01-02", "two")
	e3 := entryOn("2025-01-03", "three")
	s, c := newTestStore(t, e1, e2, e3)

	removed, err := s.DeleteAt(2)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, e2, *removed)

	assert.Equal(t, []model.Entry{e1, e3}, s.List())
	assert.Equal(t, []model.Entry{e1, e3}, c.saved)
	assert.Equal(t, 1, c.saves)
}

func TestStore_DeleteAtEnds(t *testing.T) {
	e1 := entryOn("2025-01-01", "one")
	e2 := entryOn("2025-01-02", "two")
	e3 := entryOn("2025-01-03", "three")
	s, _ := newTestStore(t, e1, e2, e3)

	removed, err := s.DeleteAt(3)
	require.NoError(t, err)
	assert.Equal(t, e3, *removed)

	removed, err = s.DeleteAt(1)
	require.NoError(t, err)
	assert.Equal(t, e1, *removed)

	assert.Equal(t, []model.Entry{e2}, s.List())
}

func TestStore_DeleteAtCancel(t *testing.T) {
	s, c := newTestStore(t, entryOn("2025-01-01", "one"))

	removed, err := s.DeleteAt(0)
	assert.NoError(t, err)
	assert.Nil(t, removed)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, c.saves, "cancel must not flush")
}

func TestStore_DeleteAtOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		position int
	}{
		{"negative", -1},
		{"far negative", -100},
		{"one past the end", 3},
		{"far past the end", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e1 := entryOn("2025-01-01", "one")
			e2 := entryOn("2025-01-02", "two")
			s, c := newTestStore(t, e1, e2)

			removed, err := s.DeleteAt(tt.position)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOutOfRange))
			assert.Nil(t, removed)
			assert.Equal(t, []model.Entry{e1, e2}, s.List())
			assert.Equal(t, 0, c.saves)
		})
	}
}

func TestStore_DeleteAtOnEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.DeleteAt(1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestStore_DeleteAtFlushError(t *testing.T) {
	e1 := entryOn("2025-01-01", "one")
	s, c := newTestStore(t, e1)
	c.saveErr = errors.New("read-only file system")

	removed, err := s.DeleteAt(1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOutOfRange))
	require.NotNil(t, removed)
	assert.Equal(t, e1, *removed)
	assert.Equal(t, 0, s.Len())
}

func TestStore_FinalFlushSwallowsErrors(t *testing.T) {
	s, c := newTestStore(t, entryOn("2025-01-01", "one"))
	c.saveErr = errors.New("gone")

	assert.NotPanics(t, s.FinalFlush)
	assert.Equal(t, 1, c.saves)
}

func TestStore_FinalFlushRewritesUnchanged(t *testing.T) {
	s, c := newTestStore(t, entryOn("2025-01-01", "one"))

	s.FinalFlush()
	assert.Equal(t, 1, c.saves)
	assert.Len(t, c.saved, 1)
}

func TestStore_AddIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	s := Open(codec.NewFile(path), zerolog.Nop())
	e := model.NewEntry("2025-11-18", "", "", "durable", time.Now())
	require.NoError(t, s.Add(e))

	// A fresh codec simulates a new process.
	reopened := Open(codec.NewFile(path), zerolog.Nop())
	require.Equal(t, 1, reopened.Len())
	got := reopened.List()[0]
	assert.Equal(t, e, got)
	assert.Equal(t, "unspecified", got.Mood)
	assert.Equal(t, "No specific goal", got.Goal)
}

func TestStore_DeleteIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	c, err := codec.Open(path)
	require.NoError(t, err)
	defer c.Close()

	s := Open(c, zerolog.Nop())
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(entryOn("2025-01-01", text)))
	}
	_, err = s.DeleteAt(2)
	require.NoError(t, err)

	reopened := Open(c, zerolog.Nop())
	texts := []string{}
	for _, e := range reopened.List() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"a", "c"}, texts)
}
