// Package core provides the state substrate of a retained widget tree.
//
// A [Tree] owns one node per mounted [Widget]. Each node holds the widget's
// current configuration, a private state value created once by the widget's
// [Facade], a dirty flag, and, for inherited widgets, the set of descendant
// nodes that read its state. Widget code reaches state only through a
// [BuildContext], whose guards mark nodes dirty as state is borrowed for
// writing.
//
// # Stateful Widgets
//
// A widget declares state by implementing [Stateful] and returning
// [StateFacade] from its Facade method:
//
//	type Counter struct {
//	    core.StatefulBase
//	    Start int
//	}
//
//	type counterState struct{ count int }
//
//	func (c Counter) CreateState() counterState { return counterState{count: c.Start} }
//
//	func (c Counter) Facade() core.Facade { return core.StateFacade[counterState](c) }
//
//	func (c Counter) Build(ctx *core.BuildContext[counterState]) []core.Widget {
//	    var label string
//	    ctx.ReadState(func(s *counterState) { label = strconv.Itoa(s.count) })
//	    return []core.Widget{Label{Text: label}}
//	}
//
// Widgets without a Facade method get a stateless default.
//
// # State Access
//
// [BuildContext.State] and [BuildContext.StateMut] return guards that borrow
// the node's state. Shared and exclusive borrows are checked at runtime;
// overlapping an exclusive borrow with any other is an invariant violation
// and panics with an *errors.InvariantError. Acquiring a StateMut marks the
// node dirty immediately, except inside Mount and Unmount hooks.
//
// # Inherited State
//
// Widgets embedding [InheritedBase] expose their state to descendants.
// [DependOnInherited] finds the nearest such ancestor, registers the caller
// as a dependent and returns an [InheritedState]. Mutating through
// [InheritedState.Mut] marks the ancestor and its direct dependents dirty.
//
// # Driving the Tree
//
// The driver reads dirty flags and decides when to rebuild. [Tree.Rebuild]
// and [Tree.FlushBuild] provide a reference implementation that runs
// [Builder] widgets and reconciles their children.
package core
