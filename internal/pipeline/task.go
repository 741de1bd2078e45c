package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/logging"
)

// Spec describes what a task reads, how it transforms it and where the result
// goes.
type Spec struct {
	Sources []string
	Exclude []string
	Dest    string
	Chain   []Transform
}

// Env is shared by every task of a build.
type Env struct {
	FS     afero.Fs
	Writer *Writer
	Logger logging.Logger
}

// Task is a named glob -> chain -> directory step. It implements graph.Node.
type Task struct {
	name string
	spec Spec
	env  Env

	mu      sync.Mutex
	outputs []string
}

// NewTask creates a task.
func NewTask(name string, spec Spec, env Env) *Task {
	if env.Logger == nil {
		env.Logger = logging.NewNopLogger()
	}
	return &Task{
		name: name,
		spec: spec,
		env:  env,
	}
}

func (t *Task) Name() string { return t.name }

// Spec returns the task definition.
func (t *Task) Spec() Spec { return t.spec }

// Outputs returns the paths written by the last successful run.
func (t *Task) Outputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.outputs...)
}

// Run expands sources, applies the chain and writes the results. An empty
// source set is logged and treated as success with no output.
func (t *Task) Run(ctx context.Context) error {
	logger := t.env.Logger.WithComponent("task").With("task", t.name)
	perf := logging.StartOperation(logger, t.name)

	t.setOutputs(nil)

	files, err := Expand(t.env.FS, t.spec.Sources, t.spec.Exclude)
	if err != nil {
		if errors.IsSourceReadError(err) {
			logger.Debug(ctx, "No source files matched", "patterns", t.spec.Sources)
			perf.End(ctx)
			return nil
		}
		return t.fail(ctx, perf, err)
	}

	for _, step := range t.spec.Chain {
		if err := ctx.Err(); err != nil {
			return t.fail(ctx, perf, err)
		}
		files, err = step.Apply(ctx, files)
		if err != nil {
			return t.fail(ctx, perf, asTransformError(step.Name(), err))
		}
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		target, err := t.env.Writer.Write(t.spec.Dest, f)
		if err != nil {
			return t.fail(ctx, perf, err)
		}
		written = append(written, target)
	}
	t.setOutputs(written)

	logger.Debug(ctx, "Task wrote files", "count", len(written), "dest", t.spec.Dest)
	perf.End(ctx)
	return nil
}

func (t *Task) setOutputs(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs = paths
}

func (t *Task) fail(ctx context.Context, perf *logging.PerfLogger, err error) error {
	var ae *errors.AssetError
	if stderrors.As(err, &ae) && ae.Task == "" {
		ae.WithTask(t.name)
	}
	perf.EndWithError(ctx, err)
	return err
}

// asTransformError makes sure a failing step surfaces as a TransformError.
func asTransformError(step string, err error) error {
	var ae *errors.AssetError
	if stderrors.As(err, &ae) || stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.NewTransformError(errors.ErrCodeInternalError,
		fmt.Sprintf("%s failed", step), err)
}
