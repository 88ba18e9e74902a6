package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/engine"
)

// CropOptions holds flags for the crop command.
type CropOptions struct {
	*RootOptions
	FileID   string
	Gestures string
	OutDir   string
	Width    float64
}

// CropResult is the output of a successful crop.
type CropResult struct {
	FileID    string         `json:"file_id"`
	Source    string         `json:"source"`
	Output    string         `json:"output"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Transform crop.Transform `json:"transform"`
	Applied   int            `json:"applied"`
	Rejected  int            `json:"rejected"`
}

// GestureScript is a YAML list of gesture events replayed before capture.
type GestureScript struct {
	Steps []engine.GestureEvent `yaml:"steps"`
}

// NewCropCommand creates the crop command.
func NewCropCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CropOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "crop <image>",
		Short: "Render the crop of an image",
		Long: `Mount an image, restore its saved crop (or start at the fit scale),
optionally replay a gesture script, and render the visible region.

The image may be a local path, a file:// URI or an http(s) URL.

Exit codes:
  0 - Crop written
  1 - Image load or capture failed
  2 - Command error (bad flags, unreadable script, store unavailable)

Examples:
  cropper crop ./photo.jpg --id photo-1
  cropper crop https://example.com/a.png --id a --gestures zoom.yaml --out ./crops
  cropper crop ./photo.jpg --id photo-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrop(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FileID, "id", "", "session file id (default: the image argument)")
	cmd.Flags().StringVar(&opts.Gestures, "gestures", "", "YAML gesture script to replay before capture")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "crop window width (default from config)")

	return cmd
}

func runCrop(ctx context.Context, opts *CropOptions, uri string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)

	cfg := *opts.Config
	if opts.Width > 0 {
		cfg.Viewport.Width = opts.Width
	}
	fileID := opts.FileID
	if fileID == "" {
		fileID = uri
	}

	var script *GestureScript
	if opts.Gestures != "" {
		s, err := LoadGestureScript(opts.Gestures)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to load gesture script", err)
		}
		script = s
	}

	raster, err := newRasterizer(&cfg, opts.OutDir)
	if err != nil {
		return f.Fail(ExitCommandError, "invalid output settings", err)
	}

	var completed string
	s, err := mountSession(ctx, &cfg, uri, fileID, raster,
		engine.WithOnComplete(func(id, out string) {
			completed = out
			slog.Debug("crop complete", "file_id", id, "output", out)
		}),
	)
	if err != nil {
		return f.Fail(GetExitCode(err), "failed to mount image", err)
	}
	defer s.close()

	result := CropResult{FileID: crop.NormalizeFileID(fileID), Source: uri}
	if script != nil {
		applied, rejected, err := replayGestures(ctx, s.ctrl, script.Steps, f)
		if err != nil {
			return f.Fail(ExitFailure, "gesture replay interrupted", err)
		}
		result.Applied, result.Rejected = applied, rejected
	}

	out, err := s.ctrl.Capture(ctx)
	if err != nil {
		return f.Fail(ExitFailure, "capture failed", err)
	}
	if completed == "" {
		completed = out.URI
	}

	result.Output = completed
	result.Width, result.Height = out.Width, out.Height
	result.Transform, _ = s.ctrl.Transform()

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s → %s (%dx%d)\n", result.Source, result.Output, result.Width, result.Height)
		fmt.Fprintf(w, "  %s\n", formatTransform(result.Transform))
		if script != nil {
			fmt.Fprintf(w, "  gestures: %d applied, %d rejected\n", result.Applied, result.Rejected)
		}
	})
}

// LoadGestureScript reads a gesture script, rejecting unknown fields.
func LoadGestureScript(path string) (*GestureScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gesture script: %w", err)
	}

	var script GestureScript
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("steps list is required and must be non-empty")
	}
	return &script, nil
}

// replayGestures feeds events through a dispatcher and counts outcomes.
// Events the controller fails or ignores count as rejected and are skipped.
func replayGestures(ctx context.Context, ctrl *engine.Controller, events []engine.GestureEvent, f *OutputFormatter) (applied, rejected int, err error) {
	d := engine.NewDispatcher(ctrl, engine.WithObserver(func(ev engine.GestureEvent, t crop.Transform, accepted bool, err error) {
		switch {
		case err != nil:
			rejected++
			f.VerboseLog("  %-12s rejected: %v", ev.Kind, err)
			return
		case !accepted:
			rejected++
			f.VerboseLog("  %-12s ignored: scale out of range", ev.Kind)
			return
		}
		applied++
		f.VerboseLog("  %-12s %s", ev.Kind, formatTransform(t))
	}))

	for _, ev := range events {
		d.Enqueue(ev)
	}
	d.Stop()

	if err := d.Run(ctx); err != nil {
		return applied, rejected, err
	}
	return applied, rejected, nil
}

func formatTransform(t crop.Transform) string {
	return fmt.Sprintf("scale=%g translate=(%g, %g)", t.Scale, t.TranslateX, t.TranslateY)
}
