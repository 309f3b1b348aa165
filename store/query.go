package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robertmeta/journal-cli/model"
)

// QueryOptions specifies how to query entries.
type QueryOptions struct {
	Limit  int
	Offset int
	Since  string // YYYY-MM-DD; entries dated before it are skipped
}

// Match is an entry together with its 1-based position in the journal.
type Match struct {
	Position int `json:"position"`
	model.Entry
}

// durationPattern matches duration strings like "7d", "2w", "3m", "1y"
var durationPattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// ParseDuration parses a duration string like "7d", "2w", "3m", "1y".
// Returns the duration or an error if the format is invalid.
//
// Supported units:
//   - d: days
//   - w: weeks (7 days)
//   - m: months (30 days, approximation)
//   - y: years (365 days, approximation)
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration string is empty")
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s (expected format: <number><unit>, e.g., 7d, 2w, 3m, 1y)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid number in duration: %s", matches[1])
	}

	day := 24 * time.Hour
	switch matches[2] {
	case "d":
		return time.Duration(num) * day, nil
	case "w":
		return time.Duration(num) * 7 * day, nil
	case "m":
		return time.Duration(num) * 30 * day, nil
	case "y":
		return time.Duration(num) * 365 * day, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %s (expected d, w, m, or y)", matches[2])
	}
}

// SinceToDate converts a "since" duration string (e.g., "7d") to the
// YYYY-MM-DD date that lies that far before now.
func SinceToDate(since string, now time.Time) (string, error) {
	duration, err := ParseDuration(since)
	if err != nil {
		return "", err
	}

	return now.Add(-duration).Format(model.DateLayout), nil
}

// BuildQueryOptions constructs QueryOptions from CLI flags.
func BuildQueryOptions(limit, offset int, since string, now time.Time) (QueryOptions, error) {
	opts := QueryOptions{
		Limit:  limit,
		Offset: offset,
	}

	if limit < 0 || offset < 0 {
		return opts, fmt.Errorf("limit and offset must not be negative")
	}

	if since != "" {
		cutoff, err := SinceToDate(since, now)
		if err != nil {
			return opts, fmt.Errorf("failed to parse --since flag: %w", err)
		}
		opts.Since = cutoff
	}

	return opts, nil
}

// Query returns entries matching opts, in insertion order.
func (s *Store) Query(opts QueryOptions) []Match {
	matched := []Match{}
	for i, e := range s.entries {
		// YYYY-MM-DD compares correctly as a string.
		if opts.Since != "" && e.Date < opts.Since {
			continue
		}
		matched = append(matched, Match{Position: i + 1, Entry: e})
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return []Match{}
		}
		matched = matched[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	return matched
}
