package core

import (
	"cmp"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/google/uuid"

	"github.com/go-drift/retain/pkg/errors"
)

// NodeID addresses a node in a [Tree]. IDs are arena indices tagged with a
// generation, so an ID kept after its node is unmounted never aliases a
// newer node. The zero NodeID refers to no node.
type NodeID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether id refers to no node.
func (id NodeID) IsZero() bool {
	return id.gen == 0
}

func (id NodeID) String() string {
	if id.IsZero() {
		return "node#-"
	}
	return fmt.Sprintf("node#%d.%d", id.index, id.gen)
}

// Compare orders IDs by arena index, then generation.
func (id NodeID) Compare(other NodeID) int {
	if c := cmp.Compare(id.index, other.index); c != 0 {
		return c
	}
	return cmp.Compare(id.gen, other.gen)
}

// node is one mounted widget instance.
type node struct {
	id        NodeID
	widget    Widget
	facade    Facade
	state     any
	stateType reflect.Type
	borrow    borrowFlag
	dirty     bool
	mounted   bool
	inherited bool
	parent    NodeID
	children  []NodeID
	depth     int

	// dependents are nodes reading this node's state (inherited nodes only).
	dependents map[NodeID]struct{}
	// dependencies are the inherited ancestors this node registered with.
	dependencies map[NodeID]struct{}
}

type slot struct {
	node *node
	gen  uint32
}

// Tree owns every node of one retained widget tree.
//
// A Tree is not safe for concurrent use. All mounting, building and state
// access must happen on the goroutine driving the tree.
type Tree struct {
	id         uuid.UUID
	slots      []slot
	free       []uint32
	live       int
	root       NodeID
	suppressed bool
	owner      *BuildOwner
	policy     DependencyPolicy
	logger     *slog.Logger
}

// Option configures a Tree created by NewTree.
type Option func(*Tree)

// WithBuildOwner sets the owner that queues dirty nodes for rebuild.
func WithBuildOwner(owner *BuildOwner) Option {
	return func(t *Tree) {
		if owner != nil {
			t.owner = owner
		}
	}
}

// WithDependencyPolicy selects how inherited-state registrations age.
func WithDependencyPolicy(policy DependencyPolicy) Option {
	return func(t *Tree) {
		t.policy = policy
	}
}

// WithLogger sets the logger for lifecycle debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTree creates an empty tree.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		id:     uuid.New(),
		owner:  NewBuildOwner(),
		policy: ResetOnRebuild,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the tree's diagnostic identity.
func (t *Tree) ID() uuid.UUID {
	return t.id
}

// Owner returns the build owner tracking dirty nodes.
func (t *Tree) Owner() *BuildOwner {
	return t.owner
}

// Policy returns the dependency registration policy.
func (t *Tree) Policy() DependencyPolicy {
	return t.policy
}

// Suppressed reports whether mutable state access currently skips dirty
// marking. It is true only while a mount or unmount hook runs.
func (t *Tree) Suppressed() bool {
	return t.suppressed
}

// suppress disables dirty marking and returns the function restoring the
// previous setting. Use as: defer t.suppress()()
func (t *Tree) suppress() (restore func()) {
	prev := t.suppressed
	t.suppressed = true
	return func() {
		t.suppressed = prev
	}
}

// Root returns the root node, or the zero NodeID if nothing is mounted.
func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	return t.live
}

// Contains reports whether id refers to a live node.
func (t *Tree) Contains(id NodeID) bool {
	return t.get(id) != nil
}

// get returns the live node for id, or nil.
func (t *Tree) get(id NodeID) *node {
	if id.IsZero() || int(id.index) >= len(t.slots) {
		return nil
	}
	s := t.slots[id.index]
	if s.gen != id.gen {
		return nil
	}
	return s.node
}

// lookup returns the live node for id and treats a stale ID as an invariant
// violation.
func (t *Tree) lookup(id NodeID, op string) *node {
	if n := t.get(id); n != nil {
		return n
	}
	t.fatal(op, errors.KindStaleNode, errors.ErrStaleNode, id, "")
	return nil
}

func (t *Tree) fatal(op string, kind errors.ErrorKind, cause error, id NodeID, detail string) {
	errors.Fatal(&errors.InvariantError{
		Op:     op,
		Kind:   kind,
		Err:    cause,
		Tree:   t.id.String(),
		Node:   id.String(),
		Detail: detail,
	})
}

func (t *Tree) alloc(n *node) NodeID {
	var index uint32
	if k := len(t.free); k > 0 {
		index = t.free[k-1]
		t.free = t.free[:k-1]
	} else {
		t.slots = append(t.slots, slot{})
		index = uint32(len(t.slots) - 1)
	}
	s := &t.slots[index]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.node = n
	t.live++
	n.id = NodeID{index: index, gen: s.gen}
	return n.id
}

func (t *Tree) release(id NodeID) {
	t.slots[id.index].node = nil
	t.free = append(t.free, id.index)
	t.live--
}

// MountRoot mounts w as the root of the tree, unmounting any previous root.
func (t *Tree) MountRoot(w Widget) NodeID {
	if !t.root.IsZero() {
		t.Unmount(t.root)
	}
	id := t.insert(NodeID{}, 0, w)
	t.root = id
	t.mountNode(id)
	return id
}

// Mount creates a node for w as the last child of parent. The node's state is
// created by the widget's facade and its Mount hook runs with dirty marking
// suppressed. The new node starts dirty.
func (t *Tree) Mount(parent NodeID, w Widget) NodeID {
	p := t.lookup(parent, "core.Tree.Mount")
	id := t.insert(parent, p.depth+1, w)
	p.children = append(p.children, id)
	t.mountNode(id)
	return id
}

func (t *Tree) insert(parent NodeID, depth int, w Widget) NodeID {
	if w == nil {
		panic("core: cannot mount a nil widget")
	}
	facade := FacadeOf(w)
	n := &node{
		widget:    w,
		facade:    facade,
		stateType: facade.StateType(),
		parent:    parent,
		depth:     depth,
	}
	_, n.inherited = w.(Inherited)
	n.state = facade.CreateState()
	id := t.alloc(n)
	if got := reflect.TypeOf(n.state); got != n.stateType {
		t.release(id)
		t.fatal("core.Tree.Mount", errors.KindStateType, errors.ErrStateType, id,
			fmt.Sprintf("facade of %s declared %v but created %v", typeName(w), n.stateType, got))
	}
	return id
}

// mountNode runs the Mount hook of a freshly inserted node. If the hook
// panics the node is detached from its parent and reclaimed before the panic
// continues, so no half-mounted node stays in the tree.
func (t *Tree) mountNode(id NodeID) {
	n := t.slots[id.index].node
	n.mounted = true
	completed := false
	defer func() {
		if !completed {
			t.detach(id, n)
			t.reclaim(id, n)
		}
	}()
	t.runHook(id, "mount", n.facade.Mount)
	completed = true
	t.markDirty(n)
	t.logger.Debug("retain: mounted", "tree", t.id, "node", id, "widget", typeName(n.widget))
}

// runHook invokes a lifecycle hook with dirty marking suppressed. The
// previous suppression setting is restored even if the hook panics. A
// panic other than an invariant violation is reported as an
// [errors.BuildError] for phase before it propagates.
func (t *Tree) runHook(id NodeID, phase string, hook func(Context)) {
	defer t.suppress()()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if n := t.get(id); n != nil && !errors.IsInvariant(r) {
			errors.ReportBuildError(buildError(id, n, phase, r))
		}
		panic(r)
	}()
	hook(nodeRef{tree: t, id: id})
}

// Unmount removes id and its subtree. Children are unmounted first; each
// node's Unmount hook runs with dirty marking suppressed, its dependency
// edges are removed in both directions, and its slot is reclaimed.
func (t *Tree) Unmount(id NodeID) {
	n := t.lookup(id, "core.Tree.Unmount")
	t.detach(id, n)
	t.unmountNode(id, n)
}

// unmountNode unmounts the children of n, runs n's Unmount hook and
// reclaims n. If a hook panics, whatever is left of the subtree is reclaimed
// without running further hooks and the panic propagates.
func (t *Tree) unmountNode(id NodeID, n *node) {
	defer t.reclaim(id, n)
	for len(n.children) > 0 {
		child := n.children[0]
		n.children = n.children[1:]
		if c := t.get(child); c != nil {
			t.unmountNode(child, c)
		}
	}
	t.runHook(id, "unmount", n.facade.Unmount)
}

// detach removes id from its parent's children, or clears the root.
func (t *Tree) detach(id NodeID, n *node) {
	if p := t.get(n.parent); p != nil {
		p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	}
	if t.root == id {
		t.root = NodeID{}
	}
}

// reclaim removes n and any still-live descendants from the dependency graph
// and frees their slots. No hooks run.
func (t *Tree) reclaim(id NodeID, n *node) {
	for _, child := range n.children {
		if c := t.get(child); c != nil {
			t.reclaim(child, c)
		}
	}
	n.children = nil
	n.mounted = false
	n.dirty = false
	t.dropDependencies(n)
	for dependent := range n.dependents {
		if d := t.get(dependent); d != nil {
			delete(d.dependencies, id)
		}
	}
	n.dependents = nil
	t.release(id)
	t.logger.Debug("retain: unmounted", "tree", t.id, "node", id, "widget", typeName(n.widget))
}

// Update replaces the configuration of id with w unless the two are
// structurally equal. It returns true when the configuration was replaced,
// in which case the node is marked dirty. The node's state is kept.
//
// When an inherited widget's configuration is replaced, its dependents are
// marked dirty too, unless w implements [InheritedNotifier] and declines.
func (t *Tree) Update(id NodeID, w Widget) bool {
	n := t.lookup(id, "core.Tree.Update")
	if n.facade.Equal(w) {
		return false
	}
	old := n.widget
	t.replaceConfig(id, n, w, "core.Tree.Update")
	t.markDirty(n)
	if n.inherited && shouldNotify(w, old) {
		t.notifyDependents(n)
	}
	return true
}

// Remount runs the Unmount hook, installs w, and runs the Mount hook, all
// without replacing the node's state. The node is marked dirty, even if a
// hook panics. As with [Tree.Update], replacing an inherited widget's
// configuration marks its dependents dirty unless w declines through
// [InheritedNotifier].
func (t *Tree) Remount(id NodeID, w Widget) {
	n := t.lookup(id, "core.Tree.Remount")
	defer t.markDirty(n)
	t.runHook(id, "unmount", n.facade.Unmount)
	old := n.widget
	t.replaceConfig(id, n, w, "core.Tree.Remount")
	if n.inherited && shouldNotify(w, old) {
		t.notifyDependents(n)
	}
	t.runHook(id, "mount", n.facade.Mount)
}

func (t *Tree) replaceConfig(id NodeID, n *node, w Widget, op string) {
	if w == nil {
		panic("core: cannot update to a nil widget")
	}
	facade := FacadeOf(w)
	if st := facade.StateType(); st != n.stateType {
		t.fatal(op, errors.KindStateType, errors.ErrStateType, id,
			fmt.Sprintf("node holds %v, %s declares %v", n.stateType, typeName(w), st))
	}
	n.widget = w
	n.facade = facade
	_, n.inherited = w.(Inherited)
	if !n.inherited {
		for dependent := range n.dependents {
			if d := t.get(dependent); d != nil {
				delete(d.dependencies, id)
			}
		}
		n.dependents = nil
	}
}

func shouldNotify(w, old Widget) bool {
	if notifier, ok := w.(InheritedNotifier); ok {
		return notifier.UpdateShouldNotify(old)
	}
	return true
}

// markDirty flags n and queues it with the build owner. Already-dirty nodes
// are left alone.
func (t *Tree) markDirty(n *node) {
	if n.dirty {
		return
	}
	n.dirty = true
	t.owner.ScheduleBuild(n.id)
}

// MarkDirty flags id as needing a rebuild.
func (t *Tree) MarkDirty(id NodeID) {
	t.markDirty(t.lookup(id, "core.Tree.MarkDirty"))
}

// ClearDirty clears the dirty flag of id, as a driver does after rebuilding
// it. Registrations are not touched; see [Tree.BeginBuild].
func (t *Tree) ClearDirty(id NodeID) {
	t.lookup(id, "core.Tree.ClearDirty").dirty = false
}

// IsDirty reports whether id needs a rebuild.
func (t *Tree) IsDirty(id NodeID) bool {
	return t.lookup(id, "core.Tree.IsDirty").dirty
}

// Widget returns the current configuration of id.
func (t *Tree) Widget(id NodeID) Widget {
	return t.lookup(id, "core.Tree.Widget").widget
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	n := t.lookup(id, "core.Tree.Parent")
	return n.parent, !n.parent.IsZero()
}

// Children returns a copy of id's children in order.
func (t *Tree) Children(id NodeID) []NodeID {
	return slices.Clone(t.lookup(id, "core.Tree.Children").children)
}

// Depth returns the distance from the root; the root has depth 0.
func (t *Tree) Depth(id NodeID) int {
	return t.lookup(id, "core.Tree.Depth").depth
}

// VisitChildren calls visitor for each child of id until it returns false.
func (t *Tree) VisitChildren(id NodeID, visitor func(NodeID) bool) {
	for _, child := range t.Children(id) {
		if !visitor(child) {
			return
		}
	}
}

// FindAncestor walks the strict ancestors of id, nearest first, and returns
// the first one for which predicate returns true.
func (t *Tree) FindAncestor(id NodeID, predicate func(NodeID, Widget) bool) (NodeID, bool) {
	n := t.lookup(id, "core.Tree.FindAncestor")
	a := t.findAncestor(n, func(a *node) bool { return predicate(a.id, a.widget) })
	if a == nil {
		return NodeID{}, false
	}
	return a.id, true
}

func (t *Tree) findAncestor(n *node, predicate func(*node) bool) *node {
	for current := t.get(n.parent); current != nil; current = t.get(current.parent) {
		if predicate(current) {
			return current
		}
	}
	return nil
}

// nodeRef is the erased Context handed to facades.
type nodeRef struct {
	tree *Tree
	id   NodeID
}

func (r nodeRef) Tree() *Tree  { return r.tree }
func (r nodeRef) Node() NodeID { return r.id }
