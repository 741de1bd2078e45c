// Package graph composes named units of work into series and parallel groups.
//
// A Node is anything with a name that can run to completion. Series runs its
// members one after another and stops at the first failure; Parallel starts
// every member at once and waits for the slowest. Errors never escape a
// member: Parallel collects every failure and returns them joined, so one
// broken task cannot stop its siblings.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Node is a named unit of work.
type Node interface {
	Name() string
	Run(ctx context.Context) error
}

// Group is a Node composed of other nodes.
type Group interface {
	Node
	Children() []Node
}

// PanicError wraps a panic recovered from a node.
type PanicError struct {
	Node  string
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("graph: panic in %s: %v", e.Node, e.Value)
}

// ErrSkipped marks a series member that did not run because an earlier one failed.
var ErrSkipped = errors.New("graph: skipped after earlier failure")

type funcNode struct {
	name string
	fn   func(ctx context.Context) error
}

// Func adapts a function into a Node.
func Func(name string, fn func(ctx context.Context) error) Node {
	return &funcNode{name: name, fn: fn}
}

func (f *funcNode) Name() string { return f.name }

func (f *funcNode) Run(ctx context.Context) error { return f.fn(ctx) }

type seriesNode struct {
	name  string
	nodes []Node
}

// Series runs nodes strictly in order. Member N+1 starts only after member N
// returned. The first failure ends the series and later members are reported
// as skipped.
func Series(name string, nodes ...Node) Group {
	return &seriesNode{name: name, nodes: nodes}
}

func (s *seriesNode) Name() string { return s.name }

func (s *seriesNode) Children() []Node { return s.nodes }

func (s *seriesNode) Run(ctx context.Context) error {
	for i, n := range s.nodes {
		if err := ctx.Err(); err != nil {
			skipRemaining(ctx, s.nodes[i:])
			return err
		}
		if err := execute(ctx, n); err != nil {
			skipRemaining(ctx, s.nodes[i+1:])
			return err
		}
	}
	return nil
}

func skipRemaining(ctx context.Context, nodes []Node) {
	h := hooksFrom(ctx)
	for _, n := range nodes {
		h.fire(ctx, Event{Node: n.Name(), Status: StatusSkipped, Err: ErrSkipped})
	}
}

type parallelNode struct {
	name  string
	nodes []Node
}

// Parallel runs nodes concurrently with no ordering between them. It returns
// once every member finished, joining all member errors.
func Parallel(name string, nodes ...Node) Group {
	return &parallelNode{name: name, nodes: nodes}
}

func (p *parallelNode) Name() string { return p.name }

func (p *parallelNode) Children() []Node { return p.nodes }

func (p *parallelNode) Run(ctx context.Context) error {
	workers := pool.New()

	errs := make([]error, len(p.nodes))
	for i, n := range p.nodes {
		workers.Go(func() {
			errs[i] = execute(ctx, n)
		})
	}
	workers.Wait()

	return errors.Join(errs...)
}

// Execute runs root, firing hooks for root and every node beneath it.
func Execute(ctx context.Context, root Node, hooks ...Hooks) error {
	var merged Hooks
	for _, h := range hooks {
		merged = merged.Merge(h)
	}
	ctx = WithHooks(ctx, merged)
	return execute(ctx, root)
}

func execute(ctx context.Context, n Node) (err error) {
	h := hooksFrom(ctx)
	start := time.Now()
	h.fire(ctx, Event{Node: n.Name(), Status: StatusRunning, StartedAt: start})

	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Node: n.Name(), Value: r}
		}

		event := Event{
			Node:      n.Name(),
			StartedAt: start,
			Duration:  time.Since(start),
			Err:       err,
			Status:    StatusCompleted,
		}
		if err != nil {
			event.Status = StatusFailed
		}
		h.fire(ctx, event)
	}()

	return n.Run(ctx)
}

// Walk visits n and every node beneath it, depth first.
func Walk(n Node, visit func(Node)) {
	visit(n)
	if g, ok := n.(Group); ok {
		for _, child := range g.Children() {
			Walk(child, visit)
		}
	}
}

// Leaves returns the nodes under n that are not groups, in declaration order.
func Leaves(n Node) []Node {
	var leaves []Node
	Walk(n, func(node Node) {
		if _, ok := node.(Group); !ok {
			leaves = append(leaves, node)
		}
	})
	return leaves
}
