// Package outline exports journal entries as an OPML outline and imports
// them back. Entries are grouped under one outline per date.
package outline

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robertmeta/journal-cli/model"
)

// EntryType marks an outline element that holds a journal entry.
const EntryType = "journal"

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is either a date group or a single entry (Type == EntryType).
// The entry text travels in the conventional _note attribute.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Type     string    `xml:"type,attr,omitempty"`
	Date     string    `xml:"date,attr,omitempty"`
	Mood     string    `xml:"mood,attr,omitempty"`
	Goal     string    `xml:"goal,attr,omitempty"`
	Created  string    `xml:"created,attr,omitempty"`
	Note     string    `xml:"_note,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML outline and extracts journal entries in document
// order. Entries without their own date take it from the enclosing group.
// Blank moods and goals get the usual defaults; a missing created
// timestamp is set from now.
func Parse(r io.Reader, now time.Time) ([]model.Entry, error) {
	var doc OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return extractEntries(doc.Body.Outlines, "", now)
}

// extractEntries recursively collects entries from outlines.
func extractEntries(outlines []Outline, parentDate string, now time.Time) ([]model.Entry, error) {
	entries := []model.Entry{}

	for _, o := range outlines {
		if o.Type == EntryType {
			e, err := toEntry(o, parentDate, now)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if len(o.Outlines) > 0 {
			// A group's text is its date unless it carries an explicit one.
			groupDate := o.Date
			if groupDate == "" {
				groupDate = strings.TrimSpace(o.Text)
			}
			if groupDate == "" {
				groupDate = parentDate
			}

			children, err := extractEntries(o.Outlines, groupDate, now)
			if err != nil {
				return nil, err
			}
			entries = append(entries, children...)
		}
	}

	return entries, nil
}

func toEntry(o Outline, parentDate string, now time.Time) (model.Entry, error) {
	raw := o.Date
	if raw == "" {
		raw = parentDate
	}
	if strings.TrimSpace(raw) == "" {
		return model.Entry{}, fmt.Errorf("outline %q has no date", o.Text)
	}

	date, err := model.ParseDate(raw, now)
	if err != nil {
		return model.Entry{}, fmt.Errorf("outline %q: %w", o.Text, err)
	}

	e := model.NewEntry(date, o.Mood, o.Goal, o.Note, now)
	if o.Created != "" {
		e.CreatedAt = o.Created
	}
	return e, nil
}

// Generate writes entries as an OPML outline. Date groups appear in the
// order their first entry was recorded.
func Generate(w io.Writer, entries []model.Entry, now time.Time) error {
	var dates []string
	byDate := make(map[string][]model.Entry)

	for _, e := range entries {
		if _, seen := byDate[e.Date]; !seen {
			dates = append(dates, e.Date)
		}
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "journal-cli entries",
			DateCreated: now.Format(time.RFC1123),
		},
		Body: Body{
			Outlines: []Outline{},
		},
	}

	for _, date := range dates {
		group := Outline{
			Text:     date,
			Outlines: []Outline{},
		}

		for _, e := range byDate[date] {
			group.Outlines = append(group.Outlines, Outline{
				Text:    e.Summary(),
				Type:    EntryType,
				Date:    e.Date,
				Mood:    e.Mood,
				Goal:    e.Goal,
				Created: e.CreatedAt,
				Note:    e.Text,
			})
		}

		doc.Body.Outlines = append(doc.Body.Outlines, group)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}
