package core

import (
	"fmt"
	"reflect"

	"github.com/go-drift/retain/pkg/errors"
)

// Context is the type-erased form of a build context: a tree and the node
// being visited. [BuildContext] implements it.
type Context interface {
	Tree() *Tree
	Node() NodeID
}

// BuildContext is the capability handed to a widget for one lifecycle or
// build call. It is the only way widget code reaches its node's state and
// its inherited ancestors. Do not keep a BuildContext past the call it was
// passed to.
type BuildContext[S any] struct {
	tree *Tree
	id   NodeID
}

// ContextFor returns a build context for id whose state type is S. It panics
// with an invariant violation if the node's state is of another type.
//
// Drivers use ContextFor to run widget code outside the facade, such as
// event callbacks.
func ContextFor[S any](t *Tree, id NodeID) *BuildContext[S] {
	return contextFor[S](nodeRef{tree: t, id: id}, "core.ContextFor")
}

func contextFor[S any](ctx Context, op string) *BuildContext[S] {
	t, id := ctx.Tree(), ctx.Node()
	n := t.lookup(id, op)
	if want := reflect.TypeFor[*S](); n.stateType != want {
		t.fatal(op, errors.KindStateType, errors.ErrStateType, id,
			fmt.Sprintf("want %v, node holds %v", want, n.stateType))
	}
	return &BuildContext[S]{tree: t, id: id}
}

// Tree returns the tree the node belongs to.
func (c *BuildContext[S]) Tree() *Tree {
	return c.tree
}

// Node returns the node this context is bound to.
func (c *BuildContext[S]) Node() NodeID {
	return c.id
}

// Widget returns the node's current configuration.
func (c *BuildContext[S]) Widget() Widget {
	return c.tree.Widget(c.id)
}

// State returns a shared borrow of the node's state. It has no side
// effects. It panics if the state is exclusively borrowed.
func (c *BuildContext[S]) State() *StateRef[S] {
	const op = "core.BuildContext.State"
	return newStateRef[S](c.tree, c.tree.lookup(c.id, op), op)
}

// StateMut returns an exclusive borrow of the node's state and marks the
// node dirty right away, unless called from a mount or unmount hook. It
// panics if the state is already borrowed.
func (c *BuildContext[S]) StateMut() *StateMut[S] {
	const op = "core.BuildContext.StateMut"
	n := c.tree.lookup(c.id, op)
	guard := newStateMut[S](c.tree, n, op)
	if !c.tree.suppressed {
		c.tree.markDirty(n)
	}
	return guard
}

// ReadState calls fn with a shared borrow of the state and releases it
// afterwards.
func (c *BuildContext[S]) ReadState(fn func(s *S)) {
	guard := c.State()
	defer guard.Release()
	fn(guard.Get())
}

// SetState calls fn with an exclusive borrow of the state and releases it
// afterwards. The node is marked dirty as with [BuildContext.StateMut].
//
//	ctx.SetState(func(s *counterState) { s.count++ })
func (c *BuildContext[S]) SetState(fn func(s *S)) {
	guard := c.StateMut()
	defer guard.Release()
	if fn != nil {
		fn(guard.Get())
	}
}
