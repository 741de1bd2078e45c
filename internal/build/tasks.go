// Package build wires the configured path table into weft's fixed task set
// and runs it: a full build is clean followed by every asset task in
// parallel, and any single task can run on its own.
package build

import (
	"context"
	"path"

	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/graph"
	"github.com/conneroisu/weft/internal/pipeline"
	"github.com/conneroisu/weft/internal/transform"
)

// Task names, as accepted on the command line.
const (
	TaskBuild     = "build"
	TaskClean     = "clean"
	TaskHTML      = "html"
	TaskVendorCSS = "vendor-css"
	TaskStyles    = "styles"
	TaskCSS       = "css"
	TaskFonts     = "fonts"
	TaskJS        = "js"
	TaskJSVendor  = "js-vendor"
	TaskImage     = "image"
	TaskImages    = "images"
	TaskSprite    = "sprite"
)

// SpriteName is the file the sprite task writes into imageOut.
const SpriteName = "sprite.svg"

// Table is the constructed task set.
type Table struct {
	root  graph.Node
	nodes map[string]graph.Node
	tasks []*pipeline.Task
	order []string
}

// NewTable builds every task from cfg. The config is read here once; tasks
// never look at it again.
func NewTable(cfg *config.Config, env pipeline.Env) (*Table, error) {
	p := cfg.Paths

	target, err := transform.ParseTarget(cfg.Transform.ScriptTarget)
	if err != nil {
		return nil, err
	}
	engines, err := transform.ParseEngines(cfg.Transform.StyleTargets)
	if err != nil {
		return nil, err
	}

	vendorDir := path.Join(p.StageDir, "vendor")

	html := pipeline.NewTask(TaskHTML, pipeline.Spec{
		Sources: []string{p.MarkupSrc},
		Dest:    p.MarkupOut,
		Chain: []pipeline.Transform{
			transform.Markup(transform.MarkupOptions{FS: env.FS, Data: p.MarkupData, Partials: p.MarkupPartials}),
			pipeline.Rename(".html"),
		},
	}, env)

	vendorCSS := pipeline.NewTask(TaskVendorCSS, pipeline.Spec{
		Sources: []string{p.VendorStyleSrc},
		Dest:    vendorDir,
		Chain: []pipeline.Transform{
			transform.Stylesheet(transform.StylesheetOptions{
				FS:     env.FS,
				Strict: cfg.Transform.StrictStyles,
			}),
		},
	}, env)

	styles := pipeline.NewTask(TaskStyles, pipeline.Spec{
		Sources: []string{p.StyleSrc},
		Exclude: []string{"**/_*.css"},
		Dest:    p.StyleOut,
		Chain: []pipeline.Transform{
			transform.Stylesheet(transform.StylesheetOptions{
				FS:        env.FS,
				Engines:   engines,
				Minify:    cfg.Transform.MinifyStyles,
				VendorDir: vendorDir,
				Strict:    cfg.Transform.StrictStyles,
			}),
		},
	}, env)

	fonts := pipeline.NewTask(TaskFonts, pipeline.Spec{
		Sources: []string{p.FontSrc},
		Dest:    p.FontOut,
		Chain:   []pipeline.Transform{pipeline.Copy()},
	}, env)

	js := pipeline.NewTask(TaskJS, pipeline.Spec{
		Sources: []string{p.ScriptSrc},
		Dest:    p.ScriptOut,
		Chain:   []pipeline.Transform{transform.Script(target)},
	}, env)

	jsVendor := pipeline.NewTask(TaskJSVendor, pipeline.Spec{
		Sources: p.VendorScripts,
		Dest:    p.ScriptOut,
		Chain: []pipeline.Transform{
			transform.Concat(p.VendorScriptName),
			transform.Minify(),
		},
	}, env)

	imageOpts := transform.ImageOptions{JPEGQuality: cfg.Transform.JPEGQuality}
	image := pipeline.NewTask(TaskImage, pipeline.Spec{
		Sources: []string{p.ImageSrc},
		Dest:    p.ImageOut,
		Chain:   []pipeline.Transform{transform.OptimizeImage(imageOpts)},
	}, env)

	images := pipeline.NewTask(TaskImages, pipeline.Spec{
		Sources: []string{p.ImagesSrc},
		Dest:    p.ImagesOut,
		Chain:   []pipeline.Transform{transform.OptimizeImage(imageOpts)},
	}, env)

	sprite := pipeline.NewTask(TaskSprite, pipeline.Spec{
		Sources: []string{p.SpriteSrc},
		Dest:    p.ImageOut,
		Chain: []pipeline.Transform{
			transform.MinifySVG(),
			transform.Replace("&gt;", ">"),
			transform.Sprite(SpriteName),
		},
	}, env)

	clean := graph.Func(TaskClean, func(ctx context.Context) error {
		return pipeline.Clean(env.FS, p.BuildRoot)
	})

	css := graph.Series(TaskCSS, vendorCSS, styles)

	root := graph.Series(TaskBuild,
		clean,
		graph.Parallel("assets", html, css, fonts, sprite, jsVendor, image, images, js),
	)

	t := &Table{
		root:  root,
		nodes: make(map[string]graph.Node),
		tasks: []*pipeline.Task{html, vendorCSS, styles, fonts, js, jsVendor, image, images, sprite},
	}
	for _, n := range []graph.Node{root, clean, html, css, vendorCSS, styles, fonts, js, jsVendor, image, images, sprite} {
		t.nodes[n.Name()] = n
		t.order = append(t.order, n.Name())
	}
	return t, nil
}

// Root returns the full build graph.
func (t *Table) Root() graph.Node { return t.root }

// Lookup returns the node registered under name.
func (t *Table) Lookup(name string) (graph.Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Names returns every runnable name in table order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Tasks returns the leaf file tasks.
func (t *Table) Tasks() []*pipeline.Task {
	return append([]*pipeline.Task(nil), t.tasks...)
}
