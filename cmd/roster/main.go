package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/setup"
)

const defaultExportFile = "guest_list.csv"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return errors.New("missing command")
	}

	switch args[0] {
	case "help", "--help", "-h":
		printHelp(out)
		return nil
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The roster only reads, so log to stderr and keep stdout for output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()
	store, closeStore, err := setup.GuestStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return runCommand(ctx, store, args, out)
}

func runCommand(ctx context.Context, store guests.Store, args []string, out io.Writer) error {
	switch args[0] {
	case "list":
		all, err := store.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list guests: %w", err)
		}
		fmt.Fprintln(out, renderRoster(all))
		return nil
	case "search":
		if len(args) < 2 {
			return errors.New("usage: roster search <query>")
		}
		found, err := store.Search(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to search guests: %w", err)
		}
		fmt.Fprintln(out, renderRoster(found))
		return nil
	case "export":
		opts, err := parseExportArgs(args[1:])
		if err != nil {
			return err
		}
		return export(ctx, store, opts, out)
	default:
		printHelp(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type exportOptions struct {
	path  string
	query string
}

// parseExportArgs reads "[-o file] [query]". A path of "-" writes to stdout.
func parseExportArgs(args []string) (exportOptions, error) {
	opts := exportOptions{path: defaultExportFile}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 >= len(args) {
				return opts, errors.New("-o needs a file name")
			}
			opts.path = args[i+1]
			i++
		default:
			if opts.query != "" {
				return opts, fmt.Errorf("unexpected argument %q", args[i])
			}
			opts.query = args[i]
		}
	}

	return opts, nil
}

func export(ctx context.Context, store guests.Store, opts exportOptions, out io.Writer) error {
	found, err := store.Search(ctx, opts.query)
	if err != nil {
		return fmt.Errorf("failed to load guests: %w", err)
	}

	if opts.path == "-" {
		return guests.WriteCSV(out, found)
	}

	f, err := os.Create(opts.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.path, err)
	}

	if err := guests.WriteCSV(f, found); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.path, err)
	}

	fmt.Fprintf(out, "Exported %d guests to %s\n", len(found), opts.path)
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `roster - registered guests

Usage:
  roster list                    show every registered guest
  roster search <query>          guests whose name or email contains query
  roster export [-o file] [q]    write guests (matching q) as CSV, default guest_list.csv

The guest store is chosen with the same environment variables as the server
(GUEST_STORE, GUESTS_FILE, DYNAMO_TABLE_NAME, DATABASE_URL).
`)
}
