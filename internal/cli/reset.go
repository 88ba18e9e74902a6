package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/render"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	FileID string
}

// ResetResult is the transform written by reset.
type ResetResult struct {
	FileID    string         `json:"file_id"`
	Transform crop.Transform `json:"transform"`
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset <image>",
		Short: "Reset a session to the fit scale",
		Long: `Mount an image and store the fit-scale transform with zero translation
for its session, replacing any saved crop.

Example:
  cropper reset ./photo.jpg --id photo-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FileID, "id", "", "session file id (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runReset(ctx context.Context, opts *ResetOptions, uri string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)

	// reset never captures, so the sink is never written
	s, err := mountSession(ctx, opts.Config, uri, opts.FileID, render.New(render.NewMemorySink()))
	if err != nil {
		return f.Fail(GetExitCode(err), "failed to mount image", err)
	}
	defer s.close()

	t, err := s.ctrl.Reset()
	if err != nil {
		return f.Fail(ExitFailure, "reset failed", err)
	}
	if err := s.ctrl.Flush(ctx); err != nil {
		return f.Fail(ExitFailure, "reset not saved", err)
	}

	result := ResetResult{FileID: s.ctrl.FileID(), Transform: t}
	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s reset to %s\n", result.FileID, formatTransform(t))
	})
}
