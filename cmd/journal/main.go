package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/robertmeta/journal-cli/codec"
	"github.com/robertmeta/journal-cli/config"
	"github.com/robertmeta/journal-cli/feed"
	"github.com/robertmeta/journal-cli/logging"
	"github.com/robertmeta/journal-cli/model"
	"github.com/robertmeta/journal-cli/outline"
	"github.com/robertmeta/journal-cli/session"
	"github.com/robertmeta/journal-cli/store"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "journal",
		Usage:     "A personal daily journal",
		Version:   "0.1.0",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Journal file (.json, .zst, .db)",
				EnvVars: []string{"JOURNAL_FILE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"JOURNAL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Diagnostic log level (debug, info, warn, error, disabled)",
				EnvVars: []string{"JOURNAL_LOG_LEVEL"},
			},
		},
		Action: runSession,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List entries",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum number of entries to return (0 for all)",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Usage:   "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Show entries dated within duration (e.g., 7d, 2w, 3m, 1y)",
					},
				},
				Action: listEntries,
			},
			{
				Name:      "search",
				Usage:     "Show entries for a date",
				ArgsUsage: "<YYYY-MM-DD>",
				Action:    searchEntries,
			},
			{
				Name:      "add",
				Usage:     "Add an entry; text comes from the arguments or stdin",
				ArgsUsage: "[text...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Entry date (YYYY-MM-DD, default today)",
					},
					&cli.StringFlag{
						Name:  "mood",
						Usage: "Mood",
					},
					&cli.StringFlag{
						Name:  "goal",
						Usage: "Goal for the day",
					},
				},
				Action: addEntry,
			},
			{
				Name:      "delete",
				Usage:     "Delete an entry by position (0 cancels)",
				ArgsUsage: "<position>",
				Action:    deleteEntry,
			},
			{
				Name:  "export",
				Usage: "Export entries to an OPML outline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportOPML,
			},
			{
				Name:      "import",
				Usage:     "Import entries from an OPML outline",
				ArgsUsage: "<opml-file>",
				Action:    importOPML,
			},
			{
				Name:      "import-feed",
				Usage:     "Import entries from an RSS/Atom feed file or URL",
				ArgsUsage: "<file-or-url>",
				Action:    importFeed,
			},
		},
	}
}

// runtime is what every command needs: settings, a logger and the codec.
type runtime struct {
	conf   *config.Config
	logger zerolog.Logger
	codec  codec.Codec
}

func (rt *runtime) Close() error {
	return rt.codec.Close()
}

// setup loads settings and opens the journal. Load warnings go to warnOut:
// stdout for the interactive session, stderr where stdout carries JSON.
func setup(c *cli.Context, warnOut io.Writer) (*runtime, error) {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("file") {
		conf.File = c.String("file")
	}
	if c.IsSet("log-level") {
		conf.LogLevel = c.String("log-level")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(c.App.ErrWriter, conf.LogLevel)
	if err != nil {
		return nil, err
	}

	cd, err := codec.Open(conf.File,
		codec.WithLogger(logger),
		codec.WithWarning(func(path string, err error) {
			fmt.Fprintf(warnOut, "Warning: failed to read %s (%v). Starting with empty journal.\n", path, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &runtime{conf: conf, logger: logger, codec: cd}, nil
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runSession(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.Exit(fmt.Sprintf("Unknown command: %s", c.Args().First()), ExitUsageError)
	}

	rt, err := setup(c, c.App.Writer)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.Open(rt.codec, rt.logger)
	s := session.New(st, c.App.Reader, c.App.Writer, session.WithLogger(rt.logger))
	if err := s.Run(ctx); err != nil {
		rt.logger.Debug().Err(err).Msg("session ended early")
	}

	return nil
}

func listEntries(c *cli.Context) error {
	opts, err := store.BuildQueryOptions(
		c.Int("limit"),
		c.Int("offset"),
		c.String("since"),
		time.Now(),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	st := store.Open(rt.codec, rt.logger)
	entries := st.Query(opts)

	return outputJSON(c.App.Writer, map[string]interface{}{
		"count":   len(entries),
		"total":   st.Len(),
		"limit":   opts.Limit,
		"offset":  opts.Offset,
		"entries": entries,
	})
}

func searchEntries(c *cli.Context) error {
	if c.NArg() < 1 || strings.TrimSpace(c.Args().First()) == "" {
		return cli.Exit("Usage: journal search <YYYY-MM-DD>", ExitUsageError)
	}

	date, err := model.ParseDate(c.Args().First(), time.Now())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	st := store.Open(rt.codec, rt.logger)
	found := st.FindByDate(date)

	return outputJSON(c.App.Writer, map[string]interface{}{
		"date":    date,
		"count":   len(found),
		"entries": found,
	})
}

func addEntry(c *cli.Context) error {
	now := time.Now()

	date, err := model.ParseDate(c.String("date"), now)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	text := strings.Join(c.Args().Slice(), " ")
	if c.NArg() == 0 {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to read entry text: %v", err), ExitDataError)
		}
		text = string(data)
	}

	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	st := store.Open(rt.codec, rt.logger)
	entry := model.NewEntry(date, c.String("mood"), c.String("goal"), text, now)
	if err := st.Add(entry); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save entry: %v", err), ExitDataError)
	}

	return outputJSON(c.App.Writer, map[string]interface{}{
		"success":  true,
		"position": st.Len(),
		"entry":    entry,
	})
}

func deleteEntry(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: journal delete <position>", ExitUsageError)
	}

	position, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return cli.Exit("Invalid entry number", ExitUsageError)
	}

	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	st := store.Open(rt.codec, rt.logger)
	removed, err := st.DeleteAt(position)
	switch {
	case errors.Is(err, store.ErrOutOfRange):
		return cli.Exit(fmt.Sprintf("Invalid entry number: %v", err), ExitUsageError)
	case err != nil:
		return cli.Exit(fmt.Sprintf("Failed to delete entry: %v", err), ExitDataError)
	case removed == nil:
		return outputJSON(c.App.Writer, map[string]interface{}{
			"success":   false,
			"cancelled": true,
		})
	}

	return outputJSON(c.App.Writer, map[string]interface{}{
		"success":  true,
		"position": position,
		"deleted":  removed,
	})
}

func exportOPML(c *cli.Context) error {
	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	entries := store.Open(rt.codec, rt.logger).List()

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = c.App.Writer
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	if err := outline.Generate(writer, entries, time.Now()); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	// If outputting to file, also return JSON status
	if outputPath != "" {
		return outputJSON(c.App.Writer, map[string]interface{}{
			"success": true,
			"file":    outputPath,
			"count":   len(entries),
		})
	}

	return nil
}

func importOPML(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: journal import <opml-file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	entries, err := outline.Parse(file, time.Now())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
	}

	return importEntries(c, entries)
}

func importFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: journal import-feed <file-or-url>", ExitUsageError)
	}

	source := c.Args().First()
	fetcher := feed.NewFetcher()

	var entries []model.Entry
	if data, err := os.ReadFile(source); err == nil {
		entries, err = fetcher.Parse(string(data))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to parse feed: %v", err), ExitDataError)
		}
	} else {
		entries, err = fetcher.Fetch(c.Context, source)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to fetch feed: %v", err), ExitDataError)
		}
	}

	return importEntries(c, entries)
}

// importEntries appends entries in order. Each Add flushes, so a failure
// part way leaves the earlier entries saved.
func importEntries(c *cli.Context, entries []model.Entry) error {
	rt, err := setup(c, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer rt.Close()

	st := store.Open(rt.codec, rt.logger)

	imported := 0
	for _, e := range entries {
		if err := st.Add(e); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to save entry %d of %d: %v", imported+1, len(entries), err), ExitDataError)
		}
		imported++
	}

	rt.logger.Info().Int("imported", imported).Str("path", rt.codec.Path()).Msg("import finished")

	return outputJSON(c.App.Writer, map[string]interface{}{
		"success":  true,
		"imported": imported,
		"total":    st.Len(),
	})
}
