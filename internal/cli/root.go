package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cropper/internal/config"
)

// Version is the cropper version, set at build time.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cropper CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cropper",
		Short: "Interactive image cropping sessions",
		Long: `cropper pans and zooms an image inside a fixed 3:4 crop window,
remembers each image's crop between runs and renders the visible region.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/cropper/config.yaml)")

	cmd.AddCommand(NewCropCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// load reads .env and the config file, then installs the logger.
func (o *RootOptions) load(logTo io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("ignoring .env", "error", err)
	}

	path := o.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to locate config", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(logTo, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	slog.Debug("config loaded", "path", path, "store", cfg.Store.Backend)
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// NewVersionCommand creates the version command.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cropper version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, opts)
			return f.Success(map[string]string{"version": Version}, func(w io.Writer) {
				fmt.Fprintf(w, "cropper %s\n", Version)
			})
		},
	}
}
