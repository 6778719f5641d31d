package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-drift/retain/pkg/errors"
)

// DependencyPolicy decides how long a dependent stays registered with an
// inherited ancestor.
type DependencyPolicy int

const (
	// ResetOnRebuild drops a node's registrations when the tree begins
	// rebuilding it, so only reads made during the latest build count.
	// A widget that stops reading an ancestor stops being notified.
	ResetOnRebuild DependencyPolicy = iota
	// Accumulate keeps registrations until the dependent is unmounted.
	Accumulate
)

func (p DependencyPolicy) String() string {
	switch p {
	case ResetOnRebuild:
		return "reset-on-rebuild"
	case Accumulate:
		return "accumulate"
	default:
		return fmt.Sprintf("DependencyPolicy(%d)", int(p))
	}
}

// ParseDependencyPolicy parses the String form of a policy.
// The empty string selects ResetOnRebuild.
func ParseDependencyPolicy(s string) (DependencyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reset-on-rebuild":
		return ResetOnRebuild, nil
	case "accumulate":
		return Accumulate, nil
	default:
		return 0, fmt.Errorf("unknown dependency policy %q", s)
	}
}

// InheritedState is a dependent's handle on an inherited ancestor's state,
// returned by [DependOnInherited].
type InheritedState[S any] struct {
	tree *Tree
	id   NodeID
}

// DependOnInherited finds the nearest strict ancestor of ctx's node whose
// widget has type W, registers ctx's node as one of its dependents, and
// returns a handle on its state. If there is no such ancestor it returns
// false and registers nothing.
//
//	theme, ok := core.DependOnInherited[themeState, Theme](ctx)
func DependOnInherited[S any, W interface {
	Inherited
	Stateful[S]
}](ctx Context) (*InheritedState[S], bool) {
	const op = "core.DependOnInherited"
	t := ctx.Tree()
	n := t.lookup(ctx.Node(), op)
	kind := reflect.TypeFor[W]()
	ancestor := t.findAncestor(n, func(a *node) bool {
		return a.inherited && reflect.TypeOf(a.widget) == kind
	})
	if ancestor == nil {
		return nil, false
	}
	if want := reflect.TypeFor[*S](); ancestor.stateType != want {
		t.fatal(op, errors.KindStateType, errors.ErrStateType, ancestor.id,
			fmt.Sprintf("want %v, %v holds %v", want, kind, ancestor.stateType))
	}
	t.registerDependent(ancestor, n)
	return &InheritedState[S]{tree: t, id: ancestor.id}, true
}

// Node returns the ancestor this handle refers to.
func (h *InheritedState[S]) Node() NodeID {
	return h.id
}

// Ref returns a shared borrow of the ancestor's state with no side effects.
func (h *InheritedState[S]) Ref() *StateRef[S] {
	const op = "core.InheritedState.Ref"
	return newStateRef[S](h.tree, h.tree.lookup(h.id, op), op)
}

// Mut returns an exclusive borrow of the ancestor's state. Unless called from
// a mount or unmount hook, it marks the ancestor and each of its direct
// dependents dirty. Dependents of those dependents are not notified.
func (h *InheritedState[S]) Mut() *StateMut[S] {
	const op = "core.InheritedState.Mut"
	n := h.tree.lookup(h.id, op)
	guard := newStateMut[S](h.tree, n, op)
	if !h.tree.suppressed {
		h.tree.markDirty(n)
		h.tree.notifyDependents(n)
	}
	return guard
}

// Read calls fn with a shared borrow of the ancestor's state.
func (h *InheritedState[S]) Read(fn func(s *S)) {
	guard := h.Ref()
	defer guard.Release()
	fn(guard.Get())
}

// Update calls fn with an exclusive borrow of the ancestor's state, with the
// same notifications as [InheritedState.Mut].
func (h *InheritedState[S]) Update(fn func(s *S)) {
	guard := h.Mut()
	defer guard.Release()
	if fn != nil {
		fn(guard.Get())
	}
}

// Dependents returns the nodes registered as readers of id, ordered by ID.
func (t *Tree) Dependents(id NodeID) []NodeID {
	return sortedIDs(t.lookup(id, "core.Tree.Dependents").dependents)
}

// Dependencies returns the inherited ancestors id is registered with,
// ordered by ID.
func (t *Tree) Dependencies(id NodeID) []NodeID {
	return sortedIDs(t.lookup(id, "core.Tree.Dependencies").dependencies)
}

// BeginBuild prepares id for a rebuild: it clears the dirty flag and, under
// [ResetOnRebuild], drops the node's registrations so the build re-registers
// only what it reads.
func (t *Tree) BeginBuild(id NodeID) {
	n := t.lookup(id, "core.Tree.BeginBuild")
	n.dirty = false
	if t.policy == ResetOnRebuild {
		t.dropDependencies(n)
	}
}

func (t *Tree) registerDependent(ancestor, dependent *node) {
	if ancestor.dependents == nil {
		ancestor.dependents = make(map[NodeID]struct{})
	}
	ancestor.dependents[dependent.id] = struct{}{}
	if dependent.dependencies == nil {
		dependent.dependencies = make(map[NodeID]struct{})
	}
	dependent.dependencies[ancestor.id] = struct{}{}
}

// dropDependencies removes n from the dependents of every ancestor it
// registered with.
func (t *Tree) dropDependencies(n *node) {
	for id := range n.dependencies {
		if a := t.get(id); a != nil {
			delete(a.dependents, n.id)
		}
	}
	clear(n.dependencies)
}

// notifyDependents marks every direct dependent of n dirty.
func (t *Tree) notifyDependents(n *node) {
	for id := range n.dependents {
		if d := t.get(id); d != nil {
			t.markDirty(d)
		}
	}
}

func sortedIDs(set map[NodeID]struct{}) []NodeID {
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, NodeID.Compare)
	return ids
}
