// Package layout computes grid coordinates for the tiles of a workflow
// diagram. It enumerates every execution path of the workflow, counts how
// often each tile occurs across all switch outcome combinations, derives a
// base grid from those counts, classifies each switch by the shape of its
// branches and applies row corrections before emitting MapPoints.
package layout

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/pkg/schema"
)

const (
	// DefaultMaxPaths is the default ceiling on enumerated decision sequences.
	DefaultMaxPaths = 4096
	// DefaultMaxSteps is the default ceiling on items yielded by one generator run.
	DefaultMaxSteps = 10000
)

// Definition is a workflow as seen by the layout engine: a restartable
// generator, the switch ids it may consult, and a factory per switch.
type Definition interface {
	Generate(decisions *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error]
	Switches() []string
	SwitchFactories() map[string]schema.SwitchFactory
}

// Funcs adapts plain values to Definition.
type Funcs struct {
	GenerateFunc func(decisions *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error]
	SwitchIDs    []string
	Factories    map[string]schema.SwitchFactory
}

func (f Funcs) Generate(d *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
	return f.GenerateFunc(d)
}

func (f Funcs) Switches() []string { return f.SwitchIDs }

func (f Funcs) SwitchFactories() map[string]schema.SwitchFactory { return f.Factories }

// Result is a computed layout with the intermediate data renderers and
// debugging tools use.
type Result struct {
	Points      []schema.MapPoint  `json:"points"`
	Paths       int                `json:"paths"`
	Switches    []Topology         `json:"switches"`
	Corrections []CorrectionRecord `json:"corrections"`
}

// Point returns the MapPoint for id.
func (r *Result) Point(id string) (schema.MapPoint, bool) {
	for _, p := range r.Points {
		if p.Item.ID == id {
			return p, true
		}
	}
	return schema.MapPoint{}, false
}

// Size returns the number of columns and rows the layout spans.
func (r *Result) Size() (cols, rows int) {
	for _, p := range r.Points {
		if p.X+1 > cols {
			cols = p.X + 1
		}
		if p.Y+1 > rows {
			rows = p.Y + 1
		}
	}
	return cols, rows
}

// Observer is notified after every computation, failed ones included.
// res is nil when err is set.
type Observer interface {
	ObserveLayout(res *Result, elapsed time.Duration, err error)
}

// Engine computes layouts. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	maxPaths int
	maxSteps int
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPaths sets the ceiling on enumerated decision sequences.
func WithMaxPaths(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPaths = n
		}
	}
}

// WithMaxSteps sets the ceiling on items per generator run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxPaths: DefaultMaxPaths,
		maxSteps: DefaultMaxSteps,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeLayout lays out def with default settings.
func ComputeLayout(ctx context.Context, def Definition) ([]schema.MapPoint, error) {
	res, err := NewEngine().Compute(ctx, def)
	if err != nil {
		return nil, err
	}
	return res.Points, nil
}

// Compute runs the full pipeline: enumerate, count, map, classify, correct
// and assemble. Identical input always yields identical output.
func (e *Engine) Compute(ctx context.Context, def Definition) (*Result, error) {
	start := time.Now()
	res, err := e.compute(ctx, def)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.WarnContext(ctx, "layout failed", slog.String("error", err.Error()), slog.Duration("elapsed", elapsed))
	} else {
		cols, rows := res.Size()
		e.logger.DebugContext(ctx, "layout computed",
			slog.Int("tiles", len(res.Points)),
			slog.Int("paths", res.Paths),
			slog.Int("cols", cols),
			slog.Int("rows", rows),
			slog.Duration("elapsed", elapsed))
	}
	if e.observer != nil {
		e.observer.ObserveLayout(res, elapsed, err)
	}
	return res, err
}

func (e *Engine) compute(ctx context.Context, def Definition) (*Result, error) {
	if def == nil {
		return nil, &DefinitionError{Reason: "definition is nil"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enum, err := newEnumerator(def, e.maxPaths, e.maxSteps)
	if err != nil {
		return nil, err
	}
	ps, err := enum.enumerate()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	freqs := countFrequencies(ps)
	if err := checkCoverage(ps, freqs); err != nil {
		return nil, err
	}
	base := mapBaseGrid(ps, freqs)
	g := newGrid(base)
	cls := newClassifier(ps, g)

	var corr corrector
	topologies := make(map[string]*Topology)
	var switches []Topology
	for _, p := range base {
		if p.Item.Kind != schema.KindSwitch {
			continue
		}
		t, err := cls.classify(p)
		if err != nil {
			return nil, err
		}
		e.logger.DebugContext(logging.WithSwitchID(ctx, t.SwitchID), "switch classified",
			slog.String("pattern", t.Type.String()),
			slog.String("yes", t.Yes.String()),
			slog.String("no", t.No.String()),
			slog.String("common", t.Common.String()))
		topologies[t.SwitchID] = t
		switches = append(switches, *t)
		corr.enqueue(t)
	}

	corr.apply(g)
	if err := g.checkOverlap(); err != nil {
		return nil, err
	}

	return &Result{
		Points:      assemble(ps, g, topologies, enum.factories),
		Paths:       len(ps.Paths),
		Switches:    switches,
		Corrections: corr.records,
	}, nil
}
