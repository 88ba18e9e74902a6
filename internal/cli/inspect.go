package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/geometry"
	"github.com/roach88/cropper/internal/transform"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	FileID string
}

// InspectResult describes an image against the crop window.
type InspectResult struct {
	URI      string         `json:"uri"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Viewport crop.Viewport  `json:"viewport"`
	FitScale float64        `json:"fit_scale"`
	FileID   string         `json:"file_id,omitempty"`
	Saved    *crop.Record   `json:"saved,omitempty"`
	Visible  *geometry.Rect `json:"visible,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Show image dimensions, fit scale and saved crop",
		Long: `Read image metadata without decoding pixels and report how it fits the
crop window. With --id, also show the saved session and the source region
it makes visible.

Examples:
  cropper inspect ./photo.jpg
  cropper inspect ./photo.jpg --id photo-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FileID, "id", "", "session file id to look up")

	return cmd
}

func runInspect(ctx context.Context, opts *InspectOptions, uri string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)
	cfg := opts.Config

	asset, err := newLoader(cfg).Probe(ctx, uri)
	if err != nil {
		return f.Fail(ExitFailure, "failed to read image metadata", crop.NewMetadataLoadError(uri, err))
	}

	vp := cfg.ViewportFor()
	result := InspectResult{
		URI:      uri,
		Width:    asset.Width,
		Height:   asset.Height,
		Viewport: vp,
		FitScale: transform.FitTransform(asset, vp).Scale,
	}

	if opts.FileID != "" {
		sessions, err := openSessions(cfg)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to open session store", err)
		}
		defer sessions.Close()

		result.FileID = crop.NormalizeFileID(opts.FileID)
		t := transform.FitTransform(asset, vp)
		if rec, ok := sessions.Record(ctx, opts.FileID); ok {
			result.Saved = &rec
			t = rec.Transform()
		}
		rect, err := geometry.VisibleRect(t, float64(asset.Width), float64(asset.Height), vp)
		if err == nil {
			result.Visible = &rect
		}
	}

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %dx%d\n", result.URI, result.Width, result.Height)
		fmt.Fprintf(w, "  viewport: %gx%g, fit scale %g\n", vp.Width, vp.Height, result.FitScale)
		if result.FileID == "" {
			return
		}
		if result.Saved != nil {
			fmt.Fprintf(w, "  session %s: %s (seq %d)\n", result.FileID, formatTransform(result.Saved.Transform()), result.Saved.Seq)
		} else {
			fmt.Fprintf(w, "  session %s: none saved\n", result.FileID)
		}
		if result.Visible != nil {
			r := result.Visible
			fmt.Fprintf(w, "  visible: x=%.1f y=%.1f w=%.1f h=%.1f\n", r.X, r.Y, r.Width, r.Height)
		}
	})
}
