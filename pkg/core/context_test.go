package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/retain/pkg/errors"
)

func TestContextFor_ChecksStateType(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	id := tree.MountRoot(provider{})

	ctx := ContextFor[counterState](tree, id)
	assert.Equal(t, id, ctx.Node())
	assert.Same(t, tree, ctx.Tree())
	assert.Equal(t, provider{}, ctx.Widget())

	requireInvariant(t, errors.ErrStateType, func() {
		ContextFor[probeState](tree, id)
	})
}

func TestStateMut_MarksDirtyImmediately(t *testing.T) {
	tree := NewTree()
	id := tree.MountRoot(provider{})
	clean(tree, id)

	guard := ContextFor[counterState](tree, id).StateMut()
	assert.True(t, tree.IsDirty(id), "dirty before any write or release")
	guard.Get().count = 5
	guard.Release()

	ContextFor[counterState](tree, id).ReadState(func(s *counterState) {
		assert.Equal(t, 5, s.count)
	})
}

func TestState_HasNoSideEffects(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(provider{})
	child := tree.Mount(root, label{})
	clean(tree, root, child)

	ref := ContextFor[counterState](tree, root).State()
	assert.Equal(t, 0, ref.Get().count)
	ref.Release()

	assert.False(t, tree.IsDirty(root))
	assert.False(t, tree.IsDirty(child))
	assert.Empty(t, tree.Dependents(root))
}

func TestSharedBorrows_MayOverlap(t *testing.T) {
	tree := NewTree()
	id := tree.MountRoot(provider{start: 3})
	ctx := ContextFor[counterState](tree, id)

	a := ctx.State()
	b := ctx.State()
	assert.Same(t, a.Get(), b.Get())
	a.Release()
	b.Release()

	ctx.SetState(func(s *counterState) { s.count++ })
}

func TestBorrowConflicts_AreFatal(t *testing.T) {
	recordErrors(t)

	tests := []struct {
		name   string
		first  func(ctx *BuildContext[counterState]) func()
		second func(ctx *BuildContext[counterState])
	}{
		{
			name:   "read while writing",
			first:  func(ctx *BuildContext[counterState]) func() { return ctx.StateMut().Release },
			second: func(ctx *BuildContext[counterState]) { ctx.State() },
		},
		{
			name:   "write while reading",
			first:  func(ctx *BuildContext[counterState]) func() { return ctx.State().Release },
			second: func(ctx *BuildContext[counterState]) { ctx.StateMut() },
		},
		{
			name:   "write while writing",
			first:  func(ctx *BuildContext[counterState]) func() { return ctx.StateMut().Release },
			second: func(ctx *BuildContext[counterState]) { ctx.StateMut() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree()
			ctx := ContextFor[counterState](tree, tree.MountRoot(provider{}))
			release := tt.first(ctx)
			requireInvariant(t, errors.ErrBorrowConflict, func() { tt.second(ctx) })

			release()
			assert.NotPanics(t, func() { ctx.SetState(nil) }, "released borrow frees the state")
		})
	}
}

func TestBorrowConflict_ReportedBeforePanic(t *testing.T) {
	h := recordErrors(t)
	tree := NewTree()
	id := tree.MountRoot(provider{})
	ctx := ContextFor[counterState](tree, id)

	guard := ctx.StateMut()
	defer guard.Release()
	requireInvariant(t, errors.ErrBorrowConflict, func() { ctx.State() })

	require.Len(t, h.invariants, 1)
	assert.Equal(t, errors.KindBorrow, h.invariants[0].Kind)
	assert.Equal(t, id.String(), h.invariants[0].Node)
	assert.Equal(t, tree.ID().String(), h.invariants[0].Tree)
}

func TestReleasedGuard_IsFatal(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	ctx := ContextFor[counterState](tree, tree.MountRoot(provider{}))

	ref := ctx.State()
	ref.Release()
	ref.Release()
	requireInvariant(t, errors.ErrReleasedGuard, func() { ref.Get() })

	mut := ctx.StateMut()
	mut.Release()
	requireInvariant(t, errors.ErrReleasedGuard, func() { mut.Get() })
}

func TestSetState_ReleasesOnPanic(t *testing.T) {
	tree := NewTree()
	ctx := ContextFor[counterState](tree, tree.MountRoot(provider{}))

	assert.Panics(t, func() {
		ctx.SetState(func(*counterState) { panic("callback failed") })
	})
	assert.NotPanics(t, func() { ctx.State().Release() })
}
