// Package codec persists the journal to a single file and reads it back.
//
// Three on-disk forms are supported and chosen by file extension:
//   - .json (default): an indented JSON array of entries
//   - .zst: the same JSON array, zstd-compressed
//   - .db, .sqlite, .sqlite3: a SQLite database with one entries table
//
// Every form is rewritten in full on Save. Load never fails: a missing file
// is an empty journal, an unreadable one is reported through the warning
// hook and also treated as empty.
package codec

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/robertmeta/journal-cli/model"
	"github.com/rs/zerolog"
)

// ErrCorrupt is wrapped by Read when the stored data has the wrong shape.
var ErrCorrupt = errors.New("corrupt journal data")

// Codec converts between the in-memory entry sequence and its file.
type Codec interface {
	// Load returns the stored entries, or an empty slice if the file is
	// missing or can't be decoded.
	Load() []model.Entry

	// Save overwrites the file with entries, preserving their order.
	Save(entries []model.Entry) error

	// Path returns the file the codec reads and writes.
	Path() string

	// Close releases resources held by the codec.
	Close() error
}

// WarnFunc receives the path and cause when Load falls back to an empty
// journal.
type WarnFunc func(path string, err error)

// Option configures a codec.
type Option func(*options)

type options struct {
	warn   WarnFunc
	logger zerolog.Logger
}

// WithWarning sets the hook called when stored data can't be loaded.
func WithWarning(fn WarnFunc) Option {
	return func(o *options) {
		o.warn = fn
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) report(path string, err error) {
	o.logger.Warn().Err(err).Str("path", path).Msg("falling back to empty journal")
	if o.warn != nil {
		o.warn(path, err)
	}
}

// Open returns the codec matching the extension of path.
func Open(path string, opts ...Option) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(path, opts...)
	case ".zst":
		return NewCompressedFile(path, opts...)
	default:
		return NewFile(path, opts...), nil
	}
}
