package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/famomatic/mediaresolve/internal/challenge"
	"github.com/famomatic/mediaresolve/internal/extractor"
	"github.com/famomatic/mediaresolve/internal/fetch"
	"github.com/famomatic/mediaresolve/internal/policy"
	"github.com/famomatic/mediaresolve/internal/selector"
	"github.com/famomatic/mediaresolve/internal/types"
)

// DefaultMaxDepth bounds nesting of indirections and playlists.
const DefaultMaxDepth = 10

// Logger receives resolution warnings and debug traces. A types.ContextLogger
// gets each resolution's request id and extractor names.
type Logger = types.Logger

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

// Config configures an Engine.
type Config struct {
	Selector policy.Selector
	Fetcher  fetch.Fetcher
	// Providers decrypt stream tokens. They are tried in order. Without
	// any, token-protected formats are dropped with a warning.
	Providers []challenge.Provider
	// MaxDepth defaults to DefaultMaxDepth.
	MaxDepth int
	// Selection, when set, is applied to every resolved entry.
	Selection *selector.Selector
	Logger    Logger
}

// Engine resolves extraction result trees into flat lists of entries.
// It keeps no state between calls.
type Engine struct {
	selector  policy.Selector
	fetcher   fetch.Fetcher
	providers []challenge.Provider
	maxDepth  int
	selection *selector.Selector
	logger    Logger
}

func NewEngine(cfg Config) *Engine {
	engine := &Engine{
		selector:  cfg.Selector,
		fetcher:   cfg.Fetcher,
		providers: cfg.Providers,
		maxDepth:  cfg.MaxDepth,
		selection: cfg.Selection,
		logger:    cfg.Logger,
	}
	if engine.maxDepth <= 0 {
		engine.maxDepth = DefaultMaxDepth
	}
	if engine.logger == nil {
		engine.logger = nopLogger{}
	}
	return engine
}

// Entry is one resolved single result.
type Entry struct {
	// Result is a single result with its final, validated formats.
	Result *types.Result
	// Selected holds the formats chosen by the configured selection.
	Selected []types.Format
	// Reference and Extractor name what produced the entry, if anything.
	Reference string
	Extractor string
	// Chain lists the playlists the entry was found in, outermost first.
	Chain []string
}

// Resolution is the outcome of resolving one root reference.
type Resolution struct {
	RequestID string
	// Metadata is the root node's metadata.
	Metadata types.Metadata
	Entries  []Entry
	Failures []Failure
	Warnings []string
}

// pathNode is one (extractor, reference) pair on the active resolution
// path. Nodes are shared between sibling tasks and never modified.
type pathNode struct {
	extractor string
	reference string
	parent    *pathNode
}

func (p *pathNode) contains(extractorName, reference string) bool {
	for n := p; n != nil; n = n.parent {
		if n.extractor == extractorName && n.reference == reference {
			return true
		}
	}
	return false
}

// group tracks the entries of one playlist or multi_video node.
type group struct {
	parent       *group
	atomic       bool
	failed       bool
	reference    string
	kind         types.ResultKind
	entryStart   int
	failureStart int
	chain        []string
}

func (g *group) dead() bool {
	for n := g; n != nil; n = n.parent {
		if n.failed {
			return true
		}
	}
	return false
}

type task struct {
	// node is set for inline results; otherwise reference is resolved.
	node      *types.Result
	reference string
	extractor string

	depth int
	path  *pathNode
	group *group
	// inherited is the metadata of the transparent indirections leading
	// here, nil when there are none.
	inherited *types.Metadata
	// root is set while the task stands in for the root node.
	root bool
}

type run struct {
	engine  *Engine
	logger  Logger
	res     *Resolution
	rootErr error
}

// Resolve resolves reference with the first matching extractor.
func (e *Engine) Resolve(ctx context.Context, reference string) (*Resolution, error) {
	return e.resolve(ctx, task{reference: reference, root: true})
}

// ResolveResult resolves a raw result that an extractor already produced.
func (e *Engine) ResolveResult(ctx context.Context, node *types.Result) (*Resolution, error) {
	if node == nil {
		return nil, errors.New("nil result")
	}
	return e.resolve(ctx, task{node: node, root: true})
}

func (e *Engine) resolve(ctx context.Context, root task) (*Resolution, error) {
	requestID, ok := types.RequestIDFromContext(ctx)
	if !ok {
		ctx = types.WithRequestID(ctx, "")
		requestID, _ = types.RequestIDFromContext(ctx)
	}
	r := &run{engine: e, logger: types.LoggerFor(ctx, e.logger), res: &Resolution{RequestID: requestID}}
	r.logger.Debugf("resolving %s", lo.CoalesceOrEmpty(root.reference, "(inline result)"))

	stack := []task{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.group.dead() {
			continue
		}

		children, err := r.step(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.fail(t.group, Failure{Reference: t.reference, Extractor: t.extractor, Err: err})
			continue
		}
		// Children are pushed in reverse so they run in declaration order.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	if r.rootErr == nil && len(r.res.Entries) == 0 && len(r.res.Failures) > 0 {
		r.rootErr = &AllEntriesFailedError{Failures: r.res.Failures}
	}
	if r.rootErr != nil {
		return r.res, r.rootErr
	}
	return r.res, nil
}

// step expands one task and returns the tasks it produced.
func (r *run) step(ctx context.Context, t task) ([]task, error) {
	if t.depth > r.engine.maxDepth {
		return nil, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Err: types.ErrDepthExceeded}
	}

	node, path := t.node, t.path
	if node == nil {
		resolved, name, err := r.invoke(ctx, t)
		if err != nil {
			return nil, err
		}
		node = resolved
		t.extractor = name
		path = &pathNode{extractor: name, reference: t.reference, parent: t.path}
	}

	meta := node.Metadata
	if t.inherited != nil {
		meta = t.inherited.Overlay(node.Metadata)
	}
	if t.root {
		r.res.Metadata = meta
	}

	switch node.Kind {
	case types.KindURL:
		if node.Reference == "" {
			return nil, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Msg: "indirection without a reference"}
		}
		child := task{
			reference: node.Reference,
			extractor: node.Extractor,
			depth:     t.depth + 1,
			path:      path,
			group:     t.group,
		}
		if node.Transparent {
			child.inherited = &meta
			child.root = t.root
		}
		r.logger.Debugf("%s: following %s indirection to %s", t.reference, lo.Ternary(node.Transparent, "transparent", "opaque"), node.Reference)
		return []task{child}, nil

	case types.KindPlaylist, types.KindMultiVideo:
		parentChain := []string(nil)
		if t.group != nil {
			parentChain = t.group.chain
		}
		g := &group{
			parent:       t.group,
			atomic:       node.Atomic,
			reference:    lo.CoalesceOrEmpty(t.reference, meta.ID, meta.Title),
			kind:         node.Kind,
			entryStart:   len(r.res.Entries),
			failureStart: len(r.res.Failures),
			chain:        append(slices.Clone(parentChain), lo.CoalesceOrEmpty(meta.Title, meta.ID, t.reference)),
		}
		children := make([]task, 0, len(node.Entries))
		for i, entry := range node.Entries {
			if entry == nil {
				r.fail(g, Failure{Reference: fmt.Sprintf("%s#%d", g.reference, i+1), Err: errors.New("empty playlist entry")})
				if g.failed {
					return nil, nil
				}
				continue
			}
			children = append(children, task{node: entry, depth: t.depth + 1, path: path, group: g})
		}
		return children, nil

	case types.KindSingle:
		entry, warnings, err := r.engine.finalize(ctx, t, node, meta)
		r.warn(warnings...)
		if err != nil {
			return nil, err
		}
		if t.group != nil {
			entry.Chain = t.group.chain
		}
		r.res.Entries = append(r.res.Entries, entry)
		return nil, nil
	}
	return nil, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Msg: fmt.Sprintf("unknown result kind %q", node.Kind)}
}

// invoke runs the extractor named by t, or the first matching one.
func (r *run) invoke(ctx context.Context, t task) (*types.Result, string, error) {
	e := r.engine
	var candidates []extractor.Extractor
	if t.extractor != "" {
		ex, ok := e.selector.Lookup(t.extractor).Get()
		if !ok {
			return nil, "", &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Msg: "unknown extractor", Err: types.ErrNoExtractor}
		}
		candidates = []extractor.Extractor{ex}
	} else {
		candidates = e.selector.Candidates(t.reference)
	}

	for _, ex := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		name := extractor.NormalizeName(ex.Name())
		if t.path.contains(name, t.reference) {
			return nil, name, &types.ExtractionError{Reference: t.reference, Extractor: name, Err: types.ErrCircularReference}
		}
		exCtx := types.WithExtractorName(ctx, name)
		node, err := ex.Resolve(exCtx, t.reference)
		if errors.Is(err, extractor.ErrNotMatched) {
			types.LoggerFor(exCtx, e.logger).Debugf("%s: passed", t.reference)
			continue
		}
		if err != nil {
			return nil, name, wrapError(t.reference, name, err)
		}
		if node == nil {
			return nil, name, &types.ExtractionError{Reference: t.reference, Extractor: name, Msg: "extractor returned no result"}
		}
		return node, name, nil
	}
	return nil, t.extractor, &types.ExtractionError{Reference: t.reference, Extractor: t.extractor, Err: types.ErrNoExtractor}
}

// fail records a failure in g. A failure inside an atomic group fails the
// group itself and rolls back what it already produced.
func (r *run) fail(g *group, f Failure) {
	if g == nil {
		if r.rootErr == nil {
			r.rootErr = f.Err
		}
		return
	}
	if g.failed {
		return
	}
	if f.Chain == nil {
		f.Chain = g.chain
	}
	r.logger.Warnf("%v", f)
	if !g.atomic {
		r.res.Failures = append(r.res.Failures, f)
		return
	}

	g.failed = true
	r.res.Entries = r.res.Entries[:g.entryStart]
	r.res.Failures = r.res.Failures[:g.failureStart]
	r.fail(g.parent, Failure{
		Reference: g.reference,
		Err:       fmt.Errorf("atomic %s entry %s failed: %w", g.kind, lo.CoalesceOrEmpty(f.Reference, "(inline)"), f.Err),
	})
}

func (r *run) warn(msgs ...string) {
	for _, msg := range msgs {
		r.logger.Warnf("%s", msg)
		r.res.Warnings = append(r.res.Warnings, msg)
	}
}

func wrapError(reference, name string, err error) error {
	if extractionErr, ok := err.(*types.ExtractionError); ok {
		out := *extractionErr
		out.Reference = lo.CoalesceOrEmpty(out.Reference, reference)
		out.Extractor = lo.CoalesceOrEmpty(out.Extractor, name)
		return &out
	}
	return &types.ExtractionError{Reference: reference, Extractor: name, Expected: types.IsExpected(err), Err: err}
}
