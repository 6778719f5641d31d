package core

// Widget is an immutable description of one node's configuration for a
// single build cycle. The tree replaces it wholesale when a rebuild produces
// a configuration that is not structurally equal to the current one.
type Widget interface {
	// Key distinguishes siblings of the same type during reconciliation.
	Key() any
}

// Stateful is implemented by widgets that own per-node state of type S.
// CreateState is called once, when the node is first mounted.
type Stateful[S any] interface {
	Widget
	CreateState() S
}

// Mounter is implemented by widgets that want a callback when their node is
// mounted, before the first build.
//
// Mutable state access inside Mount does not mark the node dirty.
type Mounter[S any] interface {
	Mount(ctx *BuildContext[S])
}

// Unmounter is implemented by widgets that want a callback when their node
// leaves the tree. The node may be reclaimed afterwards or remounted with an
// updated configuration.
//
// Mutable state access inside Unmount does not mark the node dirty.
type Unmounter[S any] interface {
	Unmount(ctx *BuildContext[S])
}

// Builder is implemented by widgets that produce child configurations.
type Builder[S any] interface {
	Build(ctx *BuildContext[S]) []Widget
}

// StructuralEq compares a configuration against another of the same type.
// Implementations must compare every field that could be observed by a
// rebuild; an incorrect "equal" verdict keeps a stale configuration alive.
type StructuralEq[W any] interface {
	StructuralEq(other W) bool
}

// FacadeProvider is implemented by widgets that supply their own type-erased
// glue, usually via [StateFacade] or [StatelessFacade]:
//
//	func (c Counter) Facade() core.Facade { return core.StateFacade[counterState](c) }
type FacadeProvider interface {
	Facade() Facade
}

// Inherited marks a widget kind whose state can be read by descendants via
// [DependOnInherited]. Embed [InheritedBase] to implement it.
type Inherited interface {
	Widget
	inheritedWidget()
}

// InheritedNotifier lets an inherited widget decide whether replacing its
// configuration should mark dependents dirty. Without it, any configuration
// that is not structurally equal notifies.
type InheritedNotifier interface {
	UpdateShouldNotify(old Widget) bool
}

// StatelessBase provides a default Key implementation for widgets without
// state. Embed it in your widget struct:
//
//	type Label struct {
//	    core.StatelessBase
//	    Text string
//	}
type StatelessBase struct{}

// Key returns nil (no key).
func (StatelessBase) Key() any { return nil }

// StatefulBase provides a default Key implementation for stateful widgets.
// Pair it with a Facade method returning [StateFacade]:
//
//	type Counter struct {
//	    core.StatefulBase
//	    Initial int
//	}
//
//	func (c Counter) CreateState() counterState { return counterState{count: c.Initial} }
//
//	func (c Counter) Facade() core.Facade { return core.StateFacade[counterState](c) }
type StatefulBase struct{}

// Key returns nil (no key).
func (StatefulBase) Key() any { return nil }

// InheritedBase makes the embedding widget an inheritance provider:
//
//	type Session struct {
//	    core.InheritedBase
//	    Child core.Widget
//	}
//
//	func (s Session) CreateState() sessionState { return sessionState{} }
//
//	func (s Session) Facade() core.Facade { return core.StateFacade[sessionState](s) }
type InheritedBase struct{}

// Key returns nil (no key).
func (InheritedBase) Key() any { return nil }

func (InheritedBase) inheritedWidget() {}

// NoState is the state type of widgets that declare none.
type NoState struct{}
