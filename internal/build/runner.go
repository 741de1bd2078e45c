package build

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/errors"
	"github.com/conneroisu/weft/internal/graph"
	"github.com/conneroisu/weft/internal/logging"
	"github.com/conneroisu/weft/internal/pipeline"
)

// Runner executes the task table. One Runner can serve many runs; its report
// keeps the latest state of every task across them.
type Runner struct {
	cfg     *config.Config
	logger  logging.Logger
	table   *Table
	report  *graph.Report
	metrics *Metrics
}

// Result summarizes one run.
type Result struct {
	Duration time.Duration
	Outputs  map[string][]string
	Failed   []string
}

// Info describes a runnable name for listings.
type Info struct {
	Name    string
	Sources []string
	Dest    string
	Members []string
}

// NewRunner builds the task table for cfg over fsys.
func NewRunner(cfg *config.Config, fsys afero.Fs, logger logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	env := pipeline.Env{
		FS:     fsys,
		Writer: pipeline.NewWriter(fsys, cfg.Paths.BuildRoot),
		Logger: logger,
	}
	table, err := NewTable(cfg, env)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger.WithComponent("runner"),
		table:   table,
		report:  graph.NewReport(),
		metrics: NewMetrics(),
	}, nil
}

// Report returns the live task report.
func (r *Runner) Report() *graph.Report { return r.report }

// Metrics returns run counters across the Runner's life.
func (r *Runner) Metrics() *Metrics { return r.metrics }

// Names returns every runnable task name.
func (r *Runner) Names() []string { return r.table.Names() }

// RunBuild cleans the build root and runs every asset task in parallel. A
// failing task does not stop its siblings; every failure is returned joined.
// Two tasks writing the same path fail the build with a ConflictError.
func (r *Runner) RunBuild(ctx context.Context) (*Result, error) {
	res, err := r.run(ctx, r.table.Root())
	if cerr := r.checkConflicts(); cerr != nil {
		err = stderrors.Join(err, cerr)
	}
	return res, err
}

// RunTask runs one named task, or a composed one such as css, in isolation.
func (r *Runner) RunTask(ctx context.Context, name string) (*Result, error) {
	node, ok := r.table.Lookup(name)
	if !ok {
		return nil, errors.ErrUnknownTask(name)
	}
	if name == TaskBuild {
		return r.RunBuild(ctx)
	}
	return r.run(ctx, node)
}

func (r *Runner) run(ctx context.Context, node graph.Node) (*Result, error) {
	start := time.Now()
	perRun := graph.NewReport()

	err := graph.Execute(ctx, node, r.report.Hooks(), perRun.Hooks(), r.logHooks())

	res := &Result{
		Duration: time.Since(start),
		Outputs:  make(map[string][]string),
	}
	for _, leaf := range graph.Leaves(node) {
		if t, ok := leaf.(*pipeline.Task); ok {
			res.Outputs[t.Name()] = t.Outputs()
		}
		if perRun.Status(leaf.Name()) == graph.StatusFailed {
			res.Failed = append(res.Failed, leaf.Name())
		}
	}

	r.metrics.Record(node.Name(), res.Duration, err)

	if err != nil {
		r.logger.Error(ctx, err, "Run failed", "task", node.Name(), "failed", res.Failed)
	} else {
		r.logger.Info(ctx, "Run completed", "task", node.Name(), "duration_ms", res.Duration.Milliseconds())
	}
	return res, err
}

func (r *Runner) logHooks() graph.Hooks {
	return graph.Hooks{
		OnStart: func(ctx context.Context, e graph.Event) {
			r.logger.Debug(ctx, "Task started", "task", e.Node)
		},
		OnSkip: func(ctx context.Context, e graph.Event) {
			r.logger.Warn(ctx, e.Err, "Task skipped", "task", e.Node)
		},
	}
}

// checkConflicts reports every output path written by more than one task.
func (r *Runner) checkConflicts() error {
	owners := make(map[string][]string)
	for _, t := range r.table.Tasks() {
		for _, out := range t.Outputs() {
			owners[out] = append(owners[out], t.Name())
		}
	}

	paths := make([]string, 0, len(owners))
	for p, tasks := range owners {
		if len(tasks) > 1 {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var errs []error
	for _, p := range paths {
		errs = append(errs, errors.NewConflictError(p, owners[p]...))
	}
	return stderrors.Join(errs...)
}

// Describe lists every runnable name with its sources and destination.
func (r *Runner) Describe() []Info {
	infos := make([]Info, 0, len(r.table.order))
	for _, name := range r.table.Names() {
		node, _ := r.table.Lookup(name)
		info := Info{Name: name}
		switch n := node.(type) {
		case *pipeline.Task:
			spec := n.Spec()
			info.Sources = spec.Sources
			info.Dest = spec.Dest
		case graph.Group:
			for _, child := range n.Children() {
				info.Members = append(info.Members, child.Name())
			}
		default:
			if name == TaskClean {
				info.Dest = r.cfg.Paths.BuildRoot
			}
		}
		infos = append(infos, info)
	}
	return infos
}
