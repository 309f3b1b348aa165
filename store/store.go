// Package store holds the journal entries for a session.
package store

import (
	"errors"
	"fmt"

	"github.com/robertmeta/journal-cli/codec"
	"github.com/robertmeta/journal-cli/model"
	"github.com/rs/zerolog"
)

// ErrOutOfRange is returned by DeleteAt for a position outside the journal.
var ErrOutOfRange = errors.New("entry position out of range")

// Store is the in-memory, insertion-ordered journal. Every mutation is
// written through the codec before the call returns.
type Store struct {
	codec   codec.Codec
	entries []model.Entry
	logger  zerolog.Logger
}

// Open loads the journal through c.
func Open(c codec.Codec, logger zerolog.Logger) *Store {
	entries := c.Load()
	if entries == nil {
		entries = []model.Entry{}
	}

	logger.Debug().Str("path", c.Path()).Int("entries", len(entries)).Msg("store opened")

	return &Store{
		codec:   c,
		entries: entries,
		logger:  logger,
	}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Add appends e and flushes.
func (s *Store) Add(e model.Entry) error {
	s.entries = append(s.entries, e)
	return s.Flush()
}

// List returns all entries in insertion order.
func (s *Store) List() []model.Entry {
	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FindByDate returns the entries recorded for date, in insertion order.
func (s *Store) FindByDate(date string) []model.Entry {
	found := []model.Entry{}
	for _, e := range s.entries {
		if e.Date == date {
			found = append(found, e)
		}
	}
	return found
}

// DeleteAt removes the entry at the 1-based position and flushes.
// Position 0 cancels: nothing is removed and both results are nil.
func (s *Store) DeleteAt(position int) (*model.Entry, error) {
	if position == 0 {
		return nil, nil
	}
	if position < 0 || position > len(s.entries) {
		return nil, fmt.Errorf("%w: %d (journal has %d entries)", ErrOutOfRange, position, len(s.entries))
	}

	removed := s.entries[position-1]
	s.entries = append(s.entries[:position-1], s.entries[position:]...)

	if err := s.Flush(); err != nil {
		return &removed, err
	}
	return &removed, nil
}

// Flush writes the whole journal through the codec.
func (s *Store) Flush() error {
	if err := s.codec.Save(s.entries); err != nil {
		return fmt.Errorf("failed to save journal: %w", err)
	}
	return nil
}

// FinalFlush is the last save before exit. Errors are dropped so that
// shutdown is never blocked.
func (s *Store) FinalFlush() {
	if err := s.Flush(); err != nil {
		s.logger.Debug().Err(err).Msg("final flush failed")
	}
}
