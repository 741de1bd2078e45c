package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/logging"
	"github.com/conneroisu/weft/internal/server"
	"github.com/conneroisu/weft/internal/watcher"
	"github.com/conneroisu/weft/internal/websocket"
)

// WatchService serves the build root and re-runs tasks as sources change.
type WatchService struct {
	config *config.Config
	fs     afero.Fs
	runner *build.Runner
	logger logging.Logger
}

// WatchOptions contains options for watch mode.
type WatchOptions struct {
	// SkipInitialBuild starts serving whatever the build root already holds.
	SkipInitialBuild bool
	// OnNotify observes every message pushed to browsers.
	OnNotify func(websocket.UpdateMessage)
}

// Binding is one active (glob, task) watch pair.
type Binding struct {
	Pattern string
	Task    string
}

// NewWatchService creates a watch service over fsys. Watching itself always
// uses the real filesystem.
func NewWatchService(cfg *config.Config, fsys afero.Fs, logger logging.Logger) (*WatchService, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	runner, err := build.NewRunner(cfg, fsys, logger)
	if err != nil {
		return nil, err
	}
	return &WatchService{
		config: cfg,
		fs:     fsys,
		runner: runner,
		logger: logger.WithComponent("watch"),
	}, nil
}

// Runner exposes the underlying task runner.
func (s *WatchService) Runner() *build.Runner { return s.runner }

// Bindings returns the watch pairs StartWatch registers, skipping empty
// globs.
func (s *WatchService) Bindings() []Binding {
	var out []Binding
	for _, b := range s.config.Bindings() {
		if strings.TrimSpace(b.Pattern) == "" {
			continue
		}
		out = append(out, Binding{Pattern: b.Pattern, Task: b.Task})
	}
	return out
}

// StartWatch builds once, starts the dev server and re-runs each bound task
// when its sources change. It blocks until ctx is cancelled.
func (s *WatchService) StartWatch(ctx context.Context, opts WatchOptions) error {
	if !opts.SkipInitialBuild {
		if _, err := s.runner.RunBuild(ctx); err != nil {
			// A broken source must not keep the server from starting.
			errors.NewErrorHandler(s.logger).Handle(ctx, err)
		}
	}

	hub := websocket.NewHub(websocket.NewAllowList(s.config.Server.AllowedOrigins), s.logger)
	srv := server.New(s.config, server.Options{
		FS:      s.fs,
		Hub:     hub,
		Report:  s.runner.Report(),
		Metrics: s.runner.Metrics(),
		Logger:  s.logger,
	})

	notify := func(msg websocket.UpdateMessage) {
		if s.config.Development.HotReload {
			hub.Broadcast(msg)
		}
		if opts.OnNotify != nil {
			opts.OnNotify(msg)
		}
	}

	fw, err := watcher.NewFileWatcher(s.config.Development.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoBackupFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			s.logger.Debug(ctx, "File changed", "path", e.Path, "type", e.Type.String())
		}
		return nil
	})

	for _, b := range s.Bindings() {
		if err := fw.WatchPattern(b.Pattern); err != nil {
			return fmt.Errorf("watching %s: %w", b.Pattern, err)
		}
		task := b.Task
		if err := fw.Subscribe(b.Pattern, func(events []watcher.ChangeEvent) error {
			s.logger.Debug(ctx, "Sources changed", "task", task, "files", len(events))
			notify(s.Trigger(ctx, task))
			return nil
		}); err != nil {
			return err
		}
		s.logger.Info(ctx, "Watching", "pattern", b.Pattern, "task", task)
	}

	if err := fw.Start(ctx); err != nil {
		return err
	}

	return srv.Start(ctx)
}

// Trigger runs one task and returns the message browsers should receive:
// build_error when the task failed, css_update for a style rebuild when CSS
// injection is on, full_reload otherwise.
func (s *WatchService) Trigger(ctx context.Context, task string) websocket.UpdateMessage {
	_, err := s.runner.RunTask(ctx, task)
	if err != nil {
		errors.NewErrorHandler(s.logger).Handle(ctx, err)
		return websocket.BuildError(task, err)
	}

	if task == build.TaskCSS && s.config.Development.CSSInjection {
		return websocket.CSSUpdate(s.stylePrefix())
	}
	return websocket.FullReload(task)
}

// stylePrefix is the URL path stylesheets are served under.
func (s *WatchService) stylePrefix() string {
	p := s.config.Paths
	rel := strings.TrimPrefix(path.Clean(p.StyleOut), path.Clean(p.BuildRoot))
	prefix := path.Clean("/" + rel)
	if prefix != "/" {
		prefix += "/"
	}
	return prefix
}
