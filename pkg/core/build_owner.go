package core

import "slices"

// BuildOwner tracks dirty nodes that need rebuilding.
type BuildOwner struct {
	dirty    []NodeID
	dirtySet map[NodeID]bool

	// OnNeedsFrame is called when a new node is scheduled for rebuild,
	// signalling the driver that a build pass should run. This is
	// necessary for on-demand scheduling where the driver idles until
	// explicitly requested.
	OnNeedsFrame func()
}

// NewBuildOwner creates a new BuildOwner.
func NewBuildOwner() *BuildOwner {
	return &BuildOwner{}
}

// ScheduleBuild queues a node for rebuild. Queuing a node twice between
// drains is a no-op.
func (b *BuildOwner) ScheduleBuild(id NodeID) {
	if b.dirtySet[id] {
		return
	}
	if b.dirtySet == nil {
		b.dirtySet = make(map[NodeID]bool)
	}
	b.dirtySet[id] = true
	b.dirty = append(b.dirty, id)

	if b.OnNeedsFrame != nil {
		b.OnNeedsFrame()
	}
}

// NeedsWork returns true if any node is queued.
func (b *BuildOwner) NeedsWork() bool {
	return len(b.dirty) > 0
}

// Pending returns a copy of the queued nodes in scheduling order.
func (b *BuildOwner) Pending() []NodeID {
	return slices.Clone(b.dirty)
}

// drain empties the queue and returns what it held.
func (b *BuildOwner) drain() []NodeID {
	dirty := b.dirty
	b.dirty = nil
	clear(b.dirtySet)
	return dirty
}
