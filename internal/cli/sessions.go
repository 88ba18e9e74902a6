package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/store"
)

// SessionEntry is one stored session in listings.
type SessionEntry struct {
	FileID string      `json:"file_id"`
	Record crop.Record `json:"record"`
}

// NewSessionsCommand creates the sessions command group.
func NewSessionsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved crop sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List saved sessions, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, opts, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				entries := sortedSessions(st.Records(ctx))
				return f.Success(entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No sessions saved.")
						return
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%-6d %-32s %s\n", e.Record.Seq, e.FileID, formatTransform(e.Record.Transform()))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "show <file-id>",
		Short:         "Show one saved session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, opts, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				rec, ok := st.Record(ctx, args[0])
				if !ok {
					return f.Fail(ExitFailure, "session not found", fmt.Errorf("no session for %q", args[0]))
				}
				entry := SessionEntry{FileID: crop.NormalizeFileID(args[0]), Record: rec}
				return f.Success(entry, func(w io.Writer) {
					fmt.Fprintf(w, "%s\n", entry.FileID)
					fmt.Fprintf(w, "  %s\n", formatTransform(rec.Transform()))
					fmt.Fprintf(w, "  crop=(%g, %g) zoom=%g min_zoom=%g seq=%d\n",
						rec.Crop.X, rec.Crop.Y, rec.Zoom, rec.MinZoom, rec.Seq)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <file-id>",
		Short:         "Delete one saved session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, opts, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				if err := st.Delete(ctx, args[0]); err != nil {
					return f.Fail(ExitFailure, "delete failed", err)
				}
				return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ deleted %s\n", args[0])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Delete every saved session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, opts, func(ctx context.Context, f *OutputFormatter, st *store.Store) error {
				n := len(st.Records(ctx))
				if err := st.Clear(ctx); err != nil {
					return f.Fail(ExitFailure, "clear failed", err)
				}
				return f.Success(map[string]int{"cleared": n}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ cleared %d session(s)\n", n)
				})
			})
		},
	})

	return cmd
}

// withSessions opens the configured store around fn.
func withSessions(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *OutputFormatter, *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts)

	st, err := openSessions(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to open session store", err)
	}
	defer st.Close()

	return fn(ctx, f, st)
}

// sortedSessions orders records by seq, then file id.
func sortedSessions(records map[string]crop.Record) []SessionEntry {
	entries := make([]SessionEntry, 0, len(records))
	for id, rec := range records {
		entries = append(entries, SessionEntry{FileID: id, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.Seq != entries[j].Record.Seq {
			return entries[i].Record.Seq < entries[j].Record.Seq
		}
		return entries[i].FileID < entries[j].FileID
	})
	return entries
}
