package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/cropper/internal/config"
	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/engine"
	"github.com/roach88/cropper/internal/render"
	"github.com/roach88/cropper/internal/source"
	"github.com/roach88/cropper/internal/store"
)

// openSessions opens the configured session store.
func openSessions(cfg *config.Config) (*store.Store, error) {
	var backend store.Backend

	switch cfg.Store.Backend {
	case config.BackendMemory:
		backend = store.NewMemoryBackend()
	case config.BackendFile:
		dir, err := cfg.StorePath()
		if err != nil {
			return nil, err
		}
		backend = store.NewFileBackend(dir)
	case config.BackendSQLite:
		path, err := cfg.StorePath()
		if err != nil {
			return nil, err
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		b, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	slog.Debug("session store opened", "backend", cfg.Store.Backend, "key", cfg.Store.Key)
	return store.New(backend,
		store.WithKey(cfg.Store.Key),
		store.WithMaxEntries(cfg.Store.MaxEntries),
	), nil
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// newLoader builds the image source from config.
func newLoader(cfg *config.Config) *source.Loader {
	return source.NewLoader(source.WithTimeout(cfg.HTTPTimeout()))
}

// newRasterizer builds a rasterizer writing to dir.
func newRasterizer(cfg *config.Config, dir string) (*render.Rasterizer, error) {
	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	interp, err := render.ParseInterpolator(cfg.Output.Interpolator)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = cfg.Output.Dir
	}
	return render.New(render.NewDirSink(dir),
		render.WithFormat(format),
		render.WithQuality(cfg.Output.Quality),
		render.WithInterpolator(interp),
	), nil
}

// session is a mounted controller with the store behind it.
type session struct {
	ctrl     *engine.Controller
	sessions *store.Store
}

// mountSession opens the store, mounts uri and waits for it to settle.
// The returned session must be closed.
func mountSession(ctx context.Context, cfg *config.Config, uri, fileID string, capturer engine.Capturer, opts ...engine.ControllerOption) (*session, error) {
	sessions, err := openSessions(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open session store", err)
	}

	opts = append([]engine.ControllerOption{engine.WithLimits(cfg.Gesture)}, opts...)
	ctrl := engine.NewController(newLoader(cfg), sessions, capturer, cfg.ViewportFor(), opts...)
	s := &session{ctrl: ctrl, sessions: sessions}

	if err := ctrl.Mount(ctx, uri, fileID); err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	state, err := ctrl.Await(ctx)
	if err != nil {
		s.close()
		if crop.IsMetadataLoadError(err) {
			return nil, WrapExitError(ExitFailure, "failed to load image", err)
		}
		return nil, WrapExitError(ExitFailure, "mount interrupted", err)
	}
	if state != engine.StateReady {
		s.close()
		return nil, NewExitError(ExitFailure, fmt.Sprintf("image not ready: %s", state))
	}
	return s, nil
}

// close drains pending saves and closes the store.
func (s *session) close() {
	if err := s.ctrl.Close(); err != nil {
		slog.Error("error closing controller", "error", err)
	}
	if err := s.sessions.Close(); err != nil {
		slog.Error("error closing session store", "error", err)
	}
}
