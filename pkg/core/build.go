package core

import (
	"reflect"
	"slices"
	"time"

	"github.com/go-drift/retain/pkg/errors"
)

// Rebuild runs the build of id if it is dirty, then reconciles its children
// against the returned configurations.
//
// A build that panics is reported as an [errors.BuildError] and leaves the
// existing children and the node's registrations in place. Invariant
// violations are not recovered.
func (t *Tree) Rebuild(id NodeID) {
	n := t.lookup(id, "core.Tree.Rebuild")
	if !n.dirty || !n.mounted {
		return
	}
	previous := sortedIDs(n.dependencies)
	t.BeginBuild(id)
	built, ok := t.safeBuild(id, n)
	if !ok {
		t.restoreDependencies(n, previous)
		return
	}
	t.updateChildren(id, built)
}

// restoreDependencies re-registers n with the ancestors it depended on
// before a failed build. Ancestors unmounted meanwhile are skipped.
func (t *Tree) restoreDependencies(n *node, ancestors []NodeID) {
	if t.get(n.id) != n {
		return
	}
	for _, id := range ancestors {
		if a := t.get(id); a != nil && a.inherited {
			t.registerDependent(a, n)
		}
	}
}

// FlushBuild rebuilds all dirty nodes, shallowest first. Nodes dirtied by a
// parent's rebuild are handled in the same flush. A node is rebuilt at most
// once per flush; if it is dirtied again afterwards it stays queued for the
// next one.
func (t *Tree) FlushBuild() {
	rebuilt := make(map[NodeID]struct{})
	var again []NodeID
	for {
		dirty := slices.DeleteFunc(t.owner.drain(), func(id NodeID) bool {
			return t.get(id) == nil
		})
		if len(dirty) == 0 {
			break
		}
		slices.SortStableFunc(dirty, func(a, b NodeID) int {
			return t.get(a).depth - t.get(b).depth
		})
		for _, id := range dirty {
			n := t.get(id)
			if n == nil || !n.dirty {
				continue
			}
			if _, done := rebuilt[id]; done {
				again = append(again, id)
				continue
			}
			rebuilt[id] = struct{}{}
			t.Rebuild(id)
		}
	}
	for _, id := range again {
		if n := t.get(id); n != nil && n.dirty {
			t.owner.ScheduleBuild(id)
		}
	}
}

// safeBuild executes the facade's build with panic recovery.
func (t *Tree) safeBuild(id NodeID, n *node) (built []Widget, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsInvariant(r) {
				panic(r)
			}
			errors.ReportBuildError(buildError(id, n, "build", r))
			built, ok = nil, false
		}
	}()
	return n.facade.Build(nodeRef{tree: t, id: id}), true
}

// buildError describes a panic recovered from phase of n.
func buildError(id NodeID, n *node, phase string, r any) *errors.BuildError {
	err := &errors.BuildError{
		Widget:    typeName(n.widget),
		Node:      id.String(),
		Phase:     phase,
		Recovered: r,
		Timestamp: time.Now(),
	}
	if cause, ok := r.(error); ok {
		err.Err = cause
	}
	if DebugMode {
		err.StackTrace = errors.CaptureStack()
	}
	return err
}

// updateChildren reconciles the children of id positionally: a child whose
// widget can be updated to the new configuration keeps its node (and
// state); otherwise it is unmounted and a new node mounted.
func (t *Tree) updateChildren(id NodeID, widgets []Widget) {
	n := t.lookup(id, "core.Tree.Rebuild")
	old := n.children
	updated := make([]NodeID, 0, len(widgets))
	completed := false
	defer func() {
		// A panicking hook stops reconciliation part-way; old children that
		// are still mounted stay attached.
		if !completed {
			for _, c := range old {
				if t.get(c) != nil && !slices.Contains(updated, c) {
					updated = append(updated, c)
				}
			}
		}
		n.children = updated
	}()
	for index, w := range widgets {
		var existing NodeID
		if index < len(old) {
			existing = old[index]
		}
		if child := t.updateChild(n, existing, w); !child.IsZero() {
			updated = append(updated, child)
		}
	}
	for i := len(widgets); i < len(old); i++ {
		if c := t.get(old[i]); c != nil {
			t.unmountNode(old[i], c)
		}
	}
	completed = true
}

func (t *Tree) updateChild(parent *node, existing NodeID, w Widget) NodeID {
	current := t.get(existing)
	if w == nil {
		if current != nil {
			t.unmountNode(existing, current)
		}
		return NodeID{}
	}
	if current != nil && canUpdateWidget(current.widget, w) {
		t.Update(existing, w)
		return existing
	}
	if current != nil {
		t.unmountNode(existing, current)
	}
	id := t.insert(parent.id, parent.depth+1, w)
	t.mountNode(id)
	return id
}

// canUpdateWidget reports whether a node configured by existing may be
// reconfigured with next instead of being replaced.
func canUpdateWidget(existing Widget, next Widget) bool {
	if existing == nil || next == nil {
		return false
	}
	if reflect.TypeOf(existing) != reflect.TypeOf(next) {
		return false
	}
	return reflect.DeepEqual(existing.Key(), next.Key())
}
