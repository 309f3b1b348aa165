// Package session runs the interactive journaling menu.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/robertmeta/journal-cli/model"
	"github.com/robertmeta/journal-cli/store"
	"github.com/rs/zerolog"
)

const menu = `Choose an option:
1. Add new entry
2. View all entries
3. Search entries by date
4. Delete an entry
5. Quit
Enter choice (1-5): `

// EndMarker ends multi-line text input.
const EndMarker = "END"

const separator = "----------------------------------------"

// Session reads menu choices from an input stream and applies them to a
// store. It is not safe for concurrent use.
type Session struct {
	store  *store.Store
	in     io.Reader
	out    io.Writer
	now    func() time.Time
	logger zerolog.Logger

	lines <-chan line
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for "today" and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session over st.
func New(st *store.Store, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		store:  st,
		in:     in,
		out:    out,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// saveError marks a failed flush; the menu reports it and carries on.
type saveError struct {
	err error
}

func (e *saveError) Error() string { return e.err.Error() }
func (e *saveError) Unwrap() error { return e.err }

// Run shows the menu until the user quits, ctx is cancelled or input ends.
// The journal is flushed one last time on the way out whatever happened.
// Run returns nil on quit or interrupt, and the cause otherwise.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.lines = readLines(ctx, s.in)

	defer s.store.FinalFlush()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error().Err(err).Msg("session aborted")
			fmt.Fprintf(s.out, "\nAn unexpected error occurred: %v\n", r)
		}
	}()

	err = s.loop(ctx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		fmt.Fprintln(s.out, "\n\nInterrupted. Your entries are saved. Take care!")
		return nil
	default:
		s.logger.Error().Err(err).Msg("session aborted")
		fmt.Fprintf(s.out, "\nAn unexpected error occurred: %v\n", err)
		return err
	}
}

func (s *Session) loop(ctx context.Context) error {
	for {
		choice, err := s.readLine(ctx, menu)
		if err != nil {
			return err
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = s.addEntry(ctx)
		case "2":
			s.viewEntries()
		case "3":
			err = s.searchByDate(ctx)
		case "4":
			err = s.deleteEntry(ctx)
		case "5":
			fmt.Fprintln(s.out, "\nThanks for journaling today.")
			fmt.Fprintln(s.out, "Remember: small steps compound. Be proud of showing up.")
			return nil
		default:
			fmt.Fprint(s.out, "Please choose a number between 1 and 5.\n\n")
		}

		var saveErr *saveError
		if errors.As(err, &saveErr) {
			s.logger.Warn().Err(saveErr.err).Msg("flush failed")
			fmt.Fprintf(s.out, "Could not save journal: %v\n\n", saveErr.err)
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) addEntry(ctx context.Context) error {
	fmt.Fprintln(s.out, "\n--- Add New Entry ---")

	date, err := s.inputDate(ctx, "Date (YYYY-MM-DD, leave empty for today): ")
	if err != nil {
		return err
	}
	mood, err := s.readLine(ctx, "Mood (e.g. happy, anxious, excited - short): ")
	if err != nil {
		return err
	}
	goal, err := s.readLine(ctx, "Today's goal (short): ")
	if err != nil {
		return err
	}
	text, err := s.inputMultiline(ctx, "Entry text (type 'END' alone on a line to finish):\n")
	if err != nil {
		return err
	}

	entry := model.NewEntry(date, mood, goal, text, s.now())
	if err := s.store.Add(entry); err != nil {
		return &saveError{err: err}
	}

	s.logger.Info().Str("date", entry.Date).Msg("entry added")
	fmt.Fprint(s.out, "Saved.\n\n")
	return nil
}

func (s *Session) viewEntries() {
	fmt.Fprintln(s.out, "\n--- All Journal Entries ---")

	entries := s.store.List()
	if len(entries) == 0 {
		fmt.Fprint(s.out, "No entries yet. Try adding one!\n\n")
		return
	}

	for i, e := range entries {
		s.displayEntry(e, i+1)
	}
	fmt.Fprintf(s.out, "Total entries: %d\n\n", len(entries))
}

func (s *Session) searchByDate(ctx context.Context) error {
	date, err := s.inputDate(ctx, "Enter date to search (YYYY-MM-DD): ")
	if err != nil {
		return err
	}

	found := s.store.FindByDate(date)
	if len(found) == 0 {
		fmt.Fprintf(s.out, "No entries found for %s.\n\n", date)
		return nil
	}

	fmt.Fprintf(s.out, "\n--- Entries on %s ---\n", date)
	for i, e := range found {
		s.displayEntry(e, i+1)
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *Session) deleteEntry(ctx context.Context) error {
	s.viewEntries()
	if s.store.Len() == 0 {
		return nil
	}

	input, err := s.readLine(ctx, "Enter entry number to delete (0 to cancel): ")
	if err != nil {
		return err
	}

	position, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		fmt.Fprint(s.out, "Cancelled (invalid number).\n\n")
		return nil
	}

	removed, err := s.store.DeleteAt(position)
	switch {
	case errors.Is(err, store.ErrOutOfRange):
		fmt.Fprint(s.out, "Invalid entry number.\n\n")
		return nil
	case err != nil:
		return &saveError{err: err}
	case removed == nil:
		fmt.Fprint(s.out, "Delete cancelled.\n\n")
		return nil
	}

	s.logger.Info().Str("date", removed.Date).Int("position", position).Msg("entry deleted")
	fmt.Fprintf(s.out, "Deleted entry from %s.\n\n", removed.Date)
	return nil
}

func (s *Session) displayEntry(e model.Entry, index int) {
	fmt.Fprintln(s.out, separator)
	fmt.Fprintf(s.out, "Entry #%d — %s\n", index, e.Date)
	fmt.Fprintf(s.out, "Recorded at: %s\n", e.CreatedAt)
	fmt.Fprintf(s.out, "Mood: %s\n", e.Mood)
	fmt.Fprintf(s.out, "Goal: %s\n", e.Goal)
	fmt.Fprintln(s.out)
	if e.Text != "" {
		fmt.Fprintln(s.out, e.Text)
	} else {
		fmt.Fprintln(s.out, "(no text)")
	}
	fmt.Fprintln(s.out, separator)
}

// inputDate prompts until a valid date (or blank, meaning today) is given.
func (s *Session) inputDate(ctx context.Context, prompt string) (string, error) {
	for {
		input, err := s.readLine(ctx, prompt)
		if err != nil {
			return "", err
		}

		date, err := model.ParseDate(input, s.now())
		if err == nil {
			return date, nil
		}
		fmt.Fprintln(s.out, "Invalid format. Please enter date as YYYY-MM-DD or leave empty for today.")
	}
}

// inputMultiline collects lines until one reads EndMarker.
func (s *Session) inputMultiline(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)

	var lines []string
	for {
		l, err := s.readLine(ctx, "")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(l) == EndMarker {
			break
		}
		lines = append(lines, l)
	}
	return strings.Join(lines, "\n"), nil
}

type line struct {
	text string
	err  error
}

// readLines feeds input lines to a channel so a blocked read can be
// abandoned when ctx is cancelled. The final value carries io.EOF or the
// scanner error.
func readLines(ctx context.Context, in io.Reader) <-chan line {
	ch := make(chan line)
	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case ch <- line{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}

		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		select {
		case ch <- line{err: err}:
		case <-ctx.Done():
		}
	}()
	return ch
}

func (s *Session) readLine(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(s.out, prompt)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}
