// Package model defines the core data structures for journal-cli.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of Entry.Date (YYYY-MM-DD).
	DateLayout = "2006-01-02"

	// CreatedAtLayout is the layout of Entry.CreatedAt.
	CreatedAtLayout = time.RFC3339

	// DefaultMood is stored when the mood is left blank.
	DefaultMood = "unspecified"

	// DefaultGoal is stored when the goal is left blank.
	DefaultGoal = "No specific goal"
)

// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date")

// Entry represents a single journal record.
type Entry struct {
	Date      string `json:"date"`
	Mood      string `json:"mood"`
	Goal      string `json:"goal"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// NewEntry builds an entry from user input, substituting defaults for a
// blank mood or goal and stamping CreatedAt from now.
func NewEntry(date, mood, goal, text string, now time.Time) Entry {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		mood = DefaultMood
	}

	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = DefaultGoal
	}

	return Entry{
		Date:      date,
		Mood:      mood,
		Goal:      goal,
		Text:      strings.TrimSpace(text),
		CreatedAt: now.Format(CreatedAtLayout),
	}
}

// Summary returns the first non-blank line of the entry text.
func (e *Entry) Summary() string {
	for _, line := range strings.Split(e.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "(no text)"
}

// Created parses CreatedAt. The zero time is returned if it can't be parsed.
func (e *Entry) Created() time.Time {
	t, err := time.Parse(CreatedAtLayout, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseDate validates a user supplied date. Blank input means today.
func ParseDate(input string, today time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return today.Format(DateLayout), nil
	}

	t, err := time.Parse(DateLayout, input)
	if err != nil {
		return "", fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalidDate, input)
	}

	return t.Format(DateLayout), nil
}
