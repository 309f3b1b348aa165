package codec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/robertmeta/journal-cli/model"
)

// File stores the journal as a JSON array, optionally compressed.
type File struct {
	path       string
	compressor Compressor
	opts       options
}

// NewFile creates a codec for a plain JSON file.
func NewFile(path string, opts ...Option) *File {
	return &File{
		path: path,
		opts: newOptions(opts),
	}
}

// NewCompressedFile creates a codec for a zstd-compressed JSON file.
func NewCompressedFile(path string, opts ...Option) (*File, error) {
	compressor, err := NewZstdCompressor()
	if err != nil {
		return nil, err
	}

	f := NewFile(path, opts...)
	f.compressor = compressor
	return f, nil
}

// Path returns the journal file path.
func (f *File) Path() string {
	return f.path
}

// Close releases the compressor, if any.
func (f *File) Close() error {
	if f.compressor != nil {
		f.compressor.Close()
	}
	return nil
}

// Read decodes the journal file. Unlike Load it reports every failure,
// including a missing file.
func (f *File) Read() ([]model.Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	if f.compressor != nil {
		data, err = f.compressor.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	return decode(data)
}

// Load implements Codec.
func (f *File) Load() []model.Entry {
	entries, err := f.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.opts.report(f.path, err)
		}
		return []model.Entry{}
	}

	f.opts.logger.Debug().Str("path", f.path).Int("entries", len(entries)).Msg("journal loaded")
	return entries
}

// Save implements Codec.
func (f *File) Save(entries []model.Entry) error {
	data, err := encode(entries)
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	if f.compressor != nil {
		data, err = f.compressor.Compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress journal: %w", err)
		}
	}

	if err := writeFile(f.path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}

	f.opts.logger.Debug().Str("path", f.path).Int("entries", len(entries)).Msg("journal saved")
	return nil
}

// record mirrors model.Entry with optional fields so missing keys can be
// told apart from empty strings.
type record struct {
	Date      *string `json:"date"`
	Mood      *string `json:"mood"`
	Goal      *string `json:"goal"`
	Text      *string `json:"text"`
	CreatedAt *string `json:"created_at"`
}

func (r *record) entry() (model.Entry, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"date", r.Date},
		{"mood", r.Mood},
		{"goal", r.Goal},
		{"text", r.Text},
		{"created_at", r.CreatedAt},
	}
	for _, field := range fields {
		if field.value == nil {
			return model.Entry{}, fmt.Errorf("missing field %q", field.name)
		}
	}

	return model.Entry{
		Date:      *r.Date,
		Mood:      *r.Mood,
		Goal:      *r.Goal,
		Text:      *r.Text,
		CreatedAt: *r.CreatedAt,
	}, nil
}

func decode(data []byte) ([]model.Entry, error) {
	// The decoder stops after the first value, so trailing data is caught here.
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not a single JSON document", ErrCorrupt)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var records []*record
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: expected an array of entries", ErrCorrupt)
	}

	entries := make([]model.Entry, 0, len(records))
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrCorrupt, i)
		}
		e, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrCorrupt, i, err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func encode(entries []model.Entry) ([]byte, error) {
	if entries == nil {
		entries = []model.Entry{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile replaces path with data via a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, path)
}
