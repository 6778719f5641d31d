package core

import "github.com/go-drift/retain/pkg/errors"

// StateRef is a shared borrow of a node's state. Any number of StateRefs may
// be live for a node at once, but none while a [StateMut] is live.
//
// Release must be called when done, usually with defer:
//
//	ref := ctx.State()
//	defer ref.Release()
//	label := ref.Get().label
type StateRef[S any] struct {
	tree     *Tree
	node     *node
	value    *S
	released bool
}

func newStateRef[S any](t *Tree, n *node, op string) *StateRef[S] {
	value := downcast[S](t, n, op)
	t.borrowShared(n, op)
	return &StateRef[S]{tree: t, node: n, value: value}
}

// Get returns the borrowed state. It must not be modified.
func (g *StateRef[S]) Get() *S {
	if g.released {
		g.tree.fatal("core.StateRef.Get", errors.KindReleased, errors.ErrReleasedGuard, g.node.id, "")
	}
	return g.value
}

// Release ends the borrow. Calling it more than once is a no-op.
func (g *StateRef[S]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.node.releaseShared()
}

// StateMut is an exclusive borrow of a node's state. Acquiring one marks the
// owning node dirty immediately, unless the tree is inside a mount or
// unmount hook.
type StateMut[S any] struct {
	tree     *Tree
	node     *node
	value    *S
	released bool
}

func newStateMut[S any](t *Tree, n *node, op string) *StateMut[S] {
	value := downcast[S](t, n, op)
	t.borrowExclusive(n, op)
	return &StateMut[S]{tree: t, node: n, value: value}
}

// Get returns the borrowed state for reading or writing.
func (g *StateMut[S]) Get() *S {
	if g.released {
		g.tree.fatal("core.StateMut.Get", errors.KindReleased, errors.ErrReleasedGuard, g.node.id, "")
	}
	return g.value
}

// Release ends the borrow. Calling it more than once is a no-op.
func (g *StateMut[S]) Release() {
	if g.released {
		return
	}
	g.released = true
	g.node.releaseExclusive()
}
