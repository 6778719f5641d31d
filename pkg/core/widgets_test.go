package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/retain/pkg/errors"
)

type counterState struct {
	count int
}

// provider is an inherited widget exposing a counterState.
type provider struct {
	InheritedBase
	start    int
	children []Widget
}

func (p provider) CreateState() counterState { return counterState{count: p.start} }

func (p provider) Facade() Facade { return StateFacade[counterState](p) }

func (p provider) Build(ctx *BuildContext[counterState]) []Widget { return p.children }

// otherProvider is a second inherited kind sharing provider's state type.
type otherProvider struct {
	InheritedBase
	children []Widget
}

func (p otherProvider) CreateState() counterState { return counterState{} }

func (p otherProvider) Facade() Facade { return StateFacade[counterState](p) }

func (p otherProvider) Build(ctx *BuildContext[counterState]) []Widget { return p.children }

// reader registers with the nearest provider when built and records what it saw.
type reader struct {
	StatelessBase
	name string
	seen *[]int
}

func (r reader) Build(ctx *BuildContext[NoState]) []Widget {
	if h, ok := DependOnInherited[counterState, provider](ctx); ok {
		h.Read(func(s *counterState) {
			if r.seen != nil {
				*r.seen = append(*r.seen, s.count)
			}
		})
	}
	return nil
}

// label is a plain stateless widget with no glue.
type label struct {
	StatelessBase
	text string
}

// keyed is a stateless widget carrying a key.
type keyed struct {
	key  any
	text string
}

func (k keyed) Key() any { return k.key }

type probeState struct {
	value int
}

// probe is a stateful widget whose hooks are supplied by the test.
type probe struct {
	StatefulBase
	id      string
	mount   func(ctx *BuildContext[probeState])
	unmount func(ctx *BuildContext[probeState])
	build   func(ctx *BuildContext[probeState]) []Widget
}

func (p probe) CreateState() probeState { return probeState{} }

func (p probe) Facade() Facade { return StateFacade[probeState](p) }

func (p probe) Mount(ctx *BuildContext[probeState]) {
	if p.mount != nil {
		p.mount(ctx)
	}
}

func (p probe) Unmount(ctx *BuildContext[probeState]) {
	if p.unmount != nil {
		p.unmount(ctx)
	}
}

func (p probe) Build(ctx *BuildContext[probeState]) []Widget {
	if p.build != nil {
		return p.build(ctx)
	}
	return nil
}

// recordingHandler captures reports instead of logging them.
type recordingHandler struct {
	invariants []*errors.InvariantError
	equality   []*errors.EqualityError
	panics     []*errors.PanicError
	builds     []*errors.BuildError
}

func (h *recordingHandler) HandleInvariant(err *errors.InvariantError) {
	h.invariants = append(h.invariants, err)
}

func (h *recordingHandler) HandleEquality(err *errors.EqualityError) {
	h.equality = append(h.equality, err)
}

func (h *recordingHandler) HandlePanic(err *errors.PanicError) {
	h.panics = append(h.panics, err)
}

func (h *recordingHandler) HandleBuildError(err *errors.BuildError) {
	h.builds = append(h.builds, err)
}

// recordErrors installs a recordingHandler for the duration of the test.
func recordErrors(t *testing.T) *recordingHandler {
	t.Helper()
	h := &recordingHandler{}
	errors.SetHandler(h)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return h
}

// requireInvariant asserts that fn panics with an InvariantError wrapping cause.
func requireInvariant(t *testing.T, cause error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected an invariant violation")
		err, ok := r.(*errors.InvariantError)
		require.True(t, ok, "panic value is %T, want *errors.InvariantError", r)
		assert.ErrorIs(t, err, cause)
	}()
	fn()
}

// clean clears the dirty flag of every given node.
func clean(tree *Tree, ids ...NodeID) {
	for _, id := range ids {
		tree.ClearDirty(id)
	}
}
