// Package pipeline runs a statically declared DAG of steps over one shared
// State value. Step failures never escape a step boundary: every failure is
// recorded as a status field on state and the run always produces a final
// state, however many steps report failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNilStep       = errors.New("pipeline: step function is nil")
	ErrDuplicateNode = errors.New("pipeline: duplicate node")
	ErrUnknownNode   = errors.New("pipeline: unknown node")
	ErrNoStart       = errors.New("pipeline: start node not set")
	ErrNoEnd         = errors.New("pipeline: end node not set")
	ErrCycle         = errors.New("pipeline: graph contains a cycle")
	ErrUnreachable   = errors.New("pipeline: node unreachable from start")
)

// Step transforms a state into a derived state. A step must catch its own
// internal errors and convert them into its status field; it never panics or
// returns an error to the engine.
type Step func(ctx context.Context, s State) State

// StatusFunc reads the status field owned by a node.
type StatusFunc func(State) Status

// FailFunc marks the node's status field failed. The engine uses it when a
// step panics or when a halt-on-failure edge skips the node.
type FailFunc func(State) State

// EdgePolicy decides what happens to the downstream node when the upstream
// node did not succeed.
type EdgePolicy int

const (
	// ContinueOnFailure runs the downstream node regardless of upstream
	// status; the node is expected to re-check its own inputs.
	ContinueOnFailure EdgePolicy = iota
	// HaltOnFailure skips the downstream node and marks it failed without
	// running it.
	HaltOnFailure
)

type node struct {
	name   string
	run    Step
	status StatusFunc
	fail   FailFunc
}

type edge struct {
	from, to string
	policy   EdgePolicy
}

// Builder assembles a Graph. Topology errors are reported by Build, so an
// invalid graph is rejected once at startup rather than at run time.
type Builder struct {
	nodes  []*node
	byName map[string]*node
	edges  []edge
	start  string
	end    string
	err    error
}

func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]*node)}
}

func (b *Builder) AddNode(name string, run Step, status StatusFunc, fail FailFunc) *Builder {
	if b.err != nil {
		return b
	}
	if run == nil || status == nil || fail == nil {
		b.err = fmt.Errorf("%w: %q", ErrNilStep, name)
		return b
	}
	if _, ok := b.byName[name]; ok {
		b.err = fmt.Errorf("%w: %q", ErrDuplicateNode, name)
		return b
	}
	n := &node{name: name, run: run, status: status, fail: fail}
	b.nodes = append(b.nodes, n)
	b.byName[name] = n
	return b
}

func (b *Builder) AddEdge(from, to string, policy EdgePolicy) *Builder {
	if b.err != nil {
		return b
	}
	b.edges = append(b.edges, edge{from: from, to: to, policy: policy})
	return b
}

func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

func (b *Builder) End(name string) *Builder {
	b.end = name
	return b
}

// Build validates the declared topology and fixes the execution order. The
// order is a stable topological sort: ties break on node insertion order, so
// a given graph always runs its steps in the same sequence.
func (b *Builder) Build(opts ...Option) (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.start == "" {
		return nil, ErrNoStart
	}
	if b.end == "" {
		return nil, ErrNoEnd
	}
	for _, name := range []string{b.start, b.end} {
		if _, ok := b.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
		}
	}
	for _, e := range b.edges {
		if _, ok := b.byName[e.from]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, e.from)
		}
		if _, ok := b.byName[e.to]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, e.to)
		}
	}

	order, err := b.sort()
	if err != nil {
		return nil, err
	}

	reachable := b.reachableFrom(b.start)
	for _, n := range b.nodes {
		if !reachable[n.name] {
			return nil, fmt.Errorf("%w: %q", ErrUnreachable, n.name)
		}
	}

	incoming := make(map[string][]edge)
	for _, e := range b.edges {
		incoming[e.to] = append(incoming[e.to], e)
	}

	g := &Graph{order: order, incoming: incoming, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// sort runs Kahn's algorithm, visiting ready nodes in insertion order.
func (b *Builder) sort() ([]*node, error) {
	indegree := make(map[string]int, len(b.nodes))
	for _, n := range b.nodes {
		indegree[n.name] = 0
	}
	for _, e := range b.edges {
		indegree[e.to]++
	}

	var order []*node
	done := make(map[string]bool, len(b.nodes))
	for len(order) < len(b.nodes) {
		progressed := false
		for _, n := range b.nodes {
			if done[n.name] || indegree[n.name] != 0 {
				continue
			}
			done[n.name] = true
			order = append(order, n)
			for _, e := range b.edges {
				if e.from == n.name {
					indegree[e.to]--
				}
			}
			progressed = true
		}
		if !progressed {
			return nil, ErrCycle
		}
	}
	return order, nil
}

func (b *Builder) reachableFrom(start string) map[string]bool {
	reachable := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range b.edges {
			if e.from == cur && !reachable[e.to] {
				reachable[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}
	return reachable
}

// Graph is an immutable, validated step graph. Safe for concurrent runs;
// each run carries its own State.
type Graph struct {
	order       []*node
	incoming    map[string][]edge
	stepTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Graph)

// WithStepTimeout bounds each step's context. Zero means no per-step bound.
func WithStepTimeout(d time.Duration) Option {
	return func(g *Graph) { g.stepTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// StepResult is one node's outcome within a run.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the aggregate outcome of one run. The engine itself never fails;
// callers inspect Succeeded / FailedSteps instead of an error.
type Result struct {
	State State
	Steps []StepResult
}

// Succeeded reports whether every step recorded success.
func (r Result) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// FailedSteps lists the names of steps that did not succeed, in run order.
func (r Result) FailedSteps() []string {
	var failed []string
	for _, s := range r.Steps {
		if s.Status != StatusSuccess {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

// Run executes every node in the fixed topological order and always returns
// a final state. A node whose halt-on-failure dependency did not succeed is
// skipped and marked failed via its fail function.
func (g *Graph) Run(ctx context.Context, s State) Result {
	results := make([]StepResult, 0, len(g.order))
	statuses := make(map[string]Status, len(g.order))

	for _, n := range g.order {
		if blocker := g.blockedBy(n, statuses); blocker != "" {
			g.logger.WarnContext(ctx, "skipping step, dependency failed", "step", n.name, "dependency", blocker)
			s = n.fail(s)
			statuses[n.name] = n.status(s)
			results = append(results, StepResult{Name: n.name, Status: n.status(s), Skipped: true})
			continue
		}

		start := time.Now()
		s = g.runNode(ctx, n, s)
		st := n.status(s)
		statuses[n.name] = st
		results = append(results, StepResult{Name: n.name, Status: st, Duration: time.Since(start)})
		g.logger.InfoContext(ctx, "step finished", "step", n.name, "status", string(st), "duration", time.Since(start))
	}

	return Result{State: s, Steps: results}
}

func (g *Graph) blockedBy(n *node, statuses map[string]Status) string {
	for _, e := range g.incoming[n.name] {
		if e.policy == HaltOnFailure && statuses[e.from] != StatusSuccess {
			return e.from
		}
	}
	return ""
}

func (g *Graph) runNode(ctx context.Context, n *node, s State) (out State) {
	if g.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.stepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "step panicked", "step", n.name, "panic", fmt.Sprint(r))
			out = n.fail(s)
		}
	}()

	return n.run(ctx, s)
}
