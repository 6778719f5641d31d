package core

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/retain/pkg/errors"
)

func TestNewTree_Defaults(t *testing.T) {
	tree := NewTree()
	assert.NotEqual(t, uuid.Nil, tree.ID())
	assert.Equal(t, ResetOnRebuild, tree.Policy())
	assert.NotNil(t, tree.Owner())
	assert.True(t, tree.Root().IsZero())
	assert.Equal(t, 0, tree.Len())
	assert.False(t, tree.Suppressed())
}

func TestNewTree_Options(t *testing.T) {
	owner := NewBuildOwner()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tree := NewTree(WithBuildOwner(owner), WithDependencyPolicy(Accumulate), WithLogger(logger))
	assert.Same(t, owner, tree.Owner())
	assert.Equal(t, Accumulate, tree.Policy())

	tree.MountRoot(label{text: "root"})
	assert.Contains(t, buf.String(), "retain: mounted")
}

func TestNodeID(t *testing.T) {
	var zero NodeID
	assert.True(t, zero.IsZero())
	assert.Equal(t, "node#-", zero.String())

	a := NodeID{index: 1, gen: 1}
	b := NodeID{index: 1, gen: 2}
	c := NodeID{index: 2, gen: 1}
	assert.Equal(t, "node#1.1", a.String())
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, 0, c.Compare(c))
}

func TestMount_BuildsStrictTree(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(label{text: "root"})
	a := tree.Mount(root, label{text: "a"})
	b := tree.Mount(root, label{text: "b"})
	aa := tree.Mount(a, label{text: "aa"})

	assert.Equal(t, root, tree.Root())
	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, []NodeID{a, b}, tree.Children(root))
	assert.Equal(t, []NodeID{aa}, tree.Children(a))
	assert.Equal(t, 0, tree.Depth(root))
	assert.Equal(t, 2, tree.Depth(aa))

	parent, ok := tree.Parent(aa)
	assert.True(t, ok)
	assert.Equal(t, a, parent)
	_, ok = tree.Parent(root)
	assert.False(t, ok)

	assert.Equal(t, label{text: "aa"}, tree.Widget(aa))
	for _, id := range []NodeID{root, a, b, aa} {
		assert.True(t, tree.IsDirty(id), "new nodes start dirty")
	}
}

func TestMountRoot_ReplacesPreviousRoot(t *testing.T) {
	tree := NewTree()
	first := tree.MountRoot(label{text: "one"})
	tree.Mount(first, label{text: "child"})

	second := tree.MountRoot(label{text: "two"})
	assert.False(t, tree.Contains(first))
	assert.Equal(t, second, tree.Root())
	assert.Equal(t, 1, tree.Len())
}

func TestVisitChildrenAndFindAncestor(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(label{text: "root"})
	mid := tree.Mount(root, label{text: "mid"})
	leaf := tree.Mount(mid, label{text: "leaf"})
	tree.Mount(root, label{text: "other"})

	var visited []NodeID
	tree.VisitChildren(root, func(id NodeID) bool {
		visited = append(visited, id)
		return false
	})
	assert.Equal(t, []NodeID{mid}, visited)

	found, ok := tree.FindAncestor(leaf, func(_ NodeID, w Widget) bool {
		return w.(label).text == "root"
	})
	require.True(t, ok)
	assert.Equal(t, root, found)

	_, ok = tree.FindAncestor(leaf, func(id NodeID, _ Widget) bool { return id == leaf })
	assert.False(t, ok, "search excludes the starting node")
}

func TestUnmount_ReclaimsSubtreeChildrenFirst(t *testing.T) {
	tree := NewTree()
	var order []string
	hook := func(name string) func(*BuildContext[probeState]) {
		return func(*BuildContext[probeState]) { order = append(order, name) }
	}
	root := tree.MountRoot(label{text: "root"})
	parent := tree.Mount(root, probe{id: "parent", unmount: hook("parent")})
	child := tree.Mount(parent, probe{id: "child", unmount: hook("child")})
	sibling := tree.Mount(root, label{text: "sibling"})

	tree.Unmount(parent)

	assert.Equal(t, []string{"child", "parent"}, order)
	assert.False(t, tree.Contains(parent))
	assert.False(t, tree.Contains(child))
	assert.Equal(t, []NodeID{sibling}, tree.Children(root))
	assert.Equal(t, 2, tree.Len())
}

func TestStaleNodeID_IsFatal(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	root := tree.MountRoot(label{})
	stale := tree.Mount(root, label{})
	tree.Unmount(stale)

	reused := tree.Mount(root, label{})
	assert.NotEqual(t, stale, reused, "generation distinguishes reused slots")
	assert.Equal(t, stale.index, reused.index)

	requireInvariant(t, errors.ErrStaleNode, func() { tree.Widget(stale) })
	requireInvariant(t, errors.ErrStaleNode, func() { ContextFor[NoState](tree, stale) })
	requireInvariant(t, errors.ErrStaleNode, func() { tree.IsDirty(NodeID{}) })
}

func TestMarkAndClearDirty(t *testing.T) {
	tree := NewTree()
	id := tree.MountRoot(label{})
	tree.ClearDirty(id)
	assert.False(t, tree.IsDirty(id))

	tree.MarkDirty(id)
	tree.MarkDirty(id)
	assert.True(t, tree.IsDirty(id))
	assert.Equal(t, []NodeID{id}, tree.Owner().Pending())
}

func TestUpdate_EqualConfigurationIsKept(t *testing.T) {
	tree := NewTree()
	id := tree.MountRoot(label{text: "same"})
	clean(tree, id)

	assert.False(t, tree.Update(id, label{text: "same"}))
	assert.False(t, tree.IsDirty(id))

	assert.True(t, tree.Update(id, label{text: "changed"}))
	assert.True(t, tree.IsDirty(id))
	assert.Equal(t, label{text: "changed"}, tree.Widget(id))
}

func TestUpdate_DifferentStateTypeIsFatal(t *testing.T) {
	h := recordErrors(t)
	tree := NewTree()
	id := tree.MountRoot(provider{})

	requireInvariant(t, errors.ErrStateType, func() {
		tree.Update(id, probe{})
	})
	assert.Len(t, h.equality, 1, "the mismatch is also reported by the equality check")
}

func TestStateIdentity_StableAcrossLifecycle(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(provider{start: 1})
	original := ContextFor[counterState](tree, root).State()
	ptr := original.Get()
	original.Release()

	same := func() {
		ref := ContextFor[counterState](tree, root).State()
		defer ref.Release()
		assert.Same(t, ptr, ref.Get())
	}

	tree.Rebuild(root)
	same()
	tree.Update(root, provider{start: 2})
	same()
	tree.Rebuild(root)
	same()
	tree.Remount(root, provider{start: 3})
	same()

	ContextFor[counterState](tree, root).ReadState(func(s *counterState) {
		assert.Equal(t, 1, s.count, "updates replace the configuration, not the state")
	})
}

func TestRemount_RunsHooksAndKeepsState(t *testing.T) {
	tree := NewTree()
	var events []string
	mk := func(tag string) probe {
		return probe{
			id: tag,
			mount: func(ctx *BuildContext[probeState]) {
				events = append(events, "mount "+tag)
				ctx.SetState(func(s *probeState) { s.value++ })
			},
			unmount: func(ctx *BuildContext[probeState]) {
				events = append(events, "unmount "+tag)
			},
		}
	}
	id := tree.MountRoot(mk("v1"))
	clean(tree, id)

	tree.Remount(id, mk("v2"))

	assert.Equal(t, []string{"mount v1", "unmount v1", "mount v2"}, events)
	assert.Equal(t, "v2", tree.Widget(id).(probe).id)
	assert.True(t, tree.IsDirty(id))
	ContextFor[probeState](tree, id).ReadState(func(s *probeState) {
		assert.Equal(t, 2, s.value)
	})
}

func TestSuppression_MountAndUnmountDoNotMarkDirty(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(label{})
	clean(tree, root)

	var dirtyInMount, dirtyInUnmount, suppressedInMount bool
	id := tree.Mount(root, probe{
		mount: func(ctx *BuildContext[probeState]) {
			suppressedInMount = ctx.Tree().Suppressed()
			ctx.SetState(func(s *probeState) { s.value = 1 })
			dirtyInMount = ctx.Tree().IsDirty(ctx.Node())
		},
		unmount: func(ctx *BuildContext[probeState]) {
			ctx.SetState(func(s *probeState) { s.value = 2 })
			dirtyInUnmount = ctx.Tree().IsDirty(ctx.Node())
		},
	})
	assert.True(t, suppressedInMount)
	assert.False(t, dirtyInMount)
	assert.False(t, tree.Suppressed())

	clean(tree, id)
	tree.Unmount(id)
	assert.False(t, dirtyInUnmount)
	assert.False(t, tree.IsDirty(root))
	assert.False(t, tree.Suppressed())
}

func TestSuppression_RestoredAfterPanickingHook(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	root := tree.MountRoot(label{})

	assert.PanicsWithValue(t, "hook failed", func() {
		tree.Mount(root, probe{
			mount: func(*BuildContext[probeState]) { panic("hook failed") },
		})
	})
	assert.False(t, tree.Suppressed())

	clean(tree, root)
	ContextFor[NoState](tree, root).SetState(nil)
	assert.True(t, tree.IsDirty(root), "later mutations are not suppressed")
}

func TestSuppression_NestedHooksRestorePriorValue(t *testing.T) {
	tree := NewTree()
	root := tree.MountRoot(label{})

	var inner, afterInner bool
	tree.Mount(root, probe{
		mount: func(ctx *BuildContext[probeState]) {
			ctx.Tree().Mount(ctx.Node(), probe{
				mount: func(inCtx *BuildContext[probeState]) {
					inner = inCtx.Tree().Suppressed()
				},
			})
			afterInner = ctx.Tree().Suppressed()
		},
	})

	assert.True(t, inner)
	assert.True(t, afterInner, "inner hook restores the outer suppressed state")
	assert.False(t, tree.Suppressed())
}

func TestMount_PanickingHookLeavesNoNode(t *testing.T) {
	h := recordErrors(t)
	tree := NewTree()
	root := tree.MountRoot(provider{})

	var failed NodeID
	assert.PanicsWithValue(t, "mount failed", func() {
		tree.Mount(root, probe{
			id: "failing",
			mount: func(ctx *BuildContext[probeState]) {
				failed = ctx.Node()
				ctx.Tree().Mount(ctx.Node(), label{})
				DependOnInherited[counterState, provider](ctx)
				panic("mount failed")
			},
		})
	})

	assert.False(t, tree.Contains(failed))
	assert.Empty(t, tree.Children(root))
	assert.Empty(t, tree.Dependents(root))
	assert.Equal(t, 1, tree.Len(), "the hook's own child is reclaimed too")
	assert.False(t, tree.Suppressed())

	require.Len(t, h.builds, 1)
	assert.Equal(t, "mount", h.builds[0].Phase)
	assert.Equal(t, "core.probe", h.builds[0].Widget)
	assert.Equal(t, failed.String(), h.builds[0].Node)
	assert.Equal(t, "mount failed", h.builds[0].Recovered)
}

func TestMountRoot_PanickingHookClearsRoot(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	tree.MountRoot(label{})

	assert.Panics(t, func() {
		tree.MountRoot(probe{mount: func(*BuildContext[probeState]) { panic("root failed") }})
	})
	assert.True(t, tree.Root().IsZero())
	assert.Equal(t, 0, tree.Len())
}

func TestUnmount_PanickingHookStillReclaimsNode(t *testing.T) {
	h := recordErrors(t)
	tree := NewTree()
	root := tree.MountRoot(provider{})
	failing := tree.Mount(root, probe{
		id:      "failing",
		unmount: func(*BuildContext[probeState]) { panic("unmount failed") },
	})
	child := tree.Mount(failing, label{})
	handle, ok := DependOnInherited[counterState, provider](ContextFor[probeState](tree, failing))
	require.True(t, ok)
	require.Equal(t, []NodeID{failing}, tree.Dependents(root))

	assert.PanicsWithValue(t, "unmount failed", func() { tree.Unmount(failing) })

	assert.False(t, tree.Contains(failing))
	assert.False(t, tree.Contains(child))
	assert.Empty(t, tree.Children(root))
	assert.Empty(t, tree.Dependents(root))
	assert.Equal(t, 1, tree.Len())
	assert.False(t, tree.Suppressed())

	clean(tree, root)
	tree.Owner().drain()
	handle.Update(func(s *counterState) { s.count++ })
	assert.Equal(t, []NodeID{root}, tree.Owner().Pending(), "no detached node is queued")

	require.Len(t, h.builds, 1)
	assert.Equal(t, "unmount", h.builds[0].Phase)
	assert.Equal(t, failing.String(), h.builds[0].Node)
}

func TestUnmount_PanickingChildReclaimsRestOfSubtree(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	root := tree.MountRoot(label{})

	var ran []string
	hook := func(name string, fail bool) func(*BuildContext[probeState]) {
		return func(*BuildContext[probeState]) {
			ran = append(ran, name)
			if fail {
				panic(name + " failed")
			}
		}
	}
	group := tree.Mount(root, probe{id: "group", unmount: hook("group", false)})
	tree.Mount(group, probe{id: "first", unmount: hook("first", true)})
	tree.Mount(group, probe{id: "second", unmount: hook("second", false)})

	assert.PanicsWithValue(t, "first failed", func() { tree.Unmount(group) })

	assert.Equal(t, []string{"first"}, ran, "later hooks are skipped")
	assert.Equal(t, 1, tree.Len())
	assert.Empty(t, tree.Children(root))
}

func TestRemount_MarksDirtyWhenHookPanics(t *testing.T) {
	recordErrors(t)
	tree := NewTree()
	id := tree.MountRoot(probe{})
	clean(tree, id)

	assert.Panics(t, func() {
		tree.Remount(id, probe{mount: func(*BuildContext[probeState]) { panic("remount failed") }})
	})
	assert.True(t, tree.Contains(id))
	assert.True(t, tree.IsDirty(id))
	assert.False(t, tree.Suppressed())
}
