// Package services holds the command-level workflows: one-shot builds and
// the long-running watch mode.
package services

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/logging"
)

// BuildService runs the full build or a single task to completion.
type BuildService struct {
	config *config.Config
	runner *build.Runner
	logger logging.Logger
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	// Task selects one task; empty means the full build.
	Task string
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Duration time.Duration
	Outputs  int
	Failed   []string
	Success  bool
}

// NewBuildService creates a build service over fsys.
func NewBuildService(cfg *config.Config, fsys afero.Fs, logger logging.Logger) (*BuildService, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	runner, err := build.NewRunner(cfg, fsys, logger)
	if err != nil {
		return nil, err
	}
	return &BuildService{
		config: cfg,
		runner: runner,
		logger: logger.WithComponent("build"),
	}, nil
}

// Runner exposes the underlying task runner.
func (s *BuildService) Runner() *build.Runner { return s.runner }

// Build runs the selected work. Every task failure is reported through the
// error handler; the returned error is non-nil if anything failed.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	name := opts.Task
	if name == "" {
		name = build.TaskBuild
	}

	res, err := s.runner.RunTask(ctx, name)
	if res == nil {
		return &BuildResult{}, err
	}

	result := &BuildResult{
		Duration: res.Duration,
		Failed:   res.Failed,
		Success:  err == nil,
	}
	for _, outs := range res.Outputs {
		result.Outputs += len(outs)
	}

	if err != nil {
		errors.NewErrorHandler(s.logger).Handle(ctx, err)
	}
	return result, err
}
