package core

import (
	"reflect"

	"github.com/go-drift/retain/pkg/errors"
)

// Facade is the type-erased view of a widget that the tree works through.
// It creates per-node state, routes lifecycle hooks to the concrete widget,
// and compares configurations, without the tree knowing the widget type.
//
// The erased state returned by CreateState is always a pointer *S, and
// StateType reports reflect.TypeFor[*S]().
type Facade interface {
	StateType() reflect.Type
	CreateState() any
	Mount(ctx Context)
	Unmount(ctx Context)
	Build(ctx Context) []Widget
	Equal(other Widget) bool
}

// StateFacade returns the glue for a widget that owns state of type S.
// S is given explicitly; the widget type is inferred.
func StateFacade[S any, W Stateful[S]](w W) Facade {
	return &typedFacade[S, W]{
		widget: w,
		create: func(w W) S { return w.CreateState() },
	}
}

// StatelessFacade returns typed glue for a widget without state. Widgets that
// implement neither this nor [StateFacade] get an equivalent default, but
// StatelessFacade lets [StructuralEq] be checked statically.
func StatelessFacade[W Widget](w W) Facade {
	return &typedFacade[NoState, W]{
		widget: w,
		create: func(W) NoState { return NoState{} },
	}
}

// FacadeOf returns the facade for a widget: its own glue if it provides one,
// otherwise the stateless default.
func FacadeOf(w Widget) Facade {
	if provider, ok := w.(FacadeProvider); ok {
		if f := provider.Facade(); f != nil {
			return f
		}
	}
	return defaultFacade{widget: w}
}

type typedFacade[S any, W Widget] struct {
	widget W
	create func(W) S
}

func (f *typedFacade[S, W]) StateType() reflect.Type {
	return reflect.TypeFor[*S]()
}

func (f *typedFacade[S, W]) CreateState() any {
	state := f.create(f.widget)
	return &state
}

func (f *typedFacade[S, W]) Mount(ctx Context) {
	if m, ok := any(f.widget).(Mounter[S]); ok {
		m.Mount(contextFor[S](ctx, "core.Facade.Mount"))
	}
}

func (f *typedFacade[S, W]) Unmount(ctx Context) {
	if u, ok := any(f.widget).(Unmounter[S]); ok {
		u.Unmount(contextFor[S](ctx, "core.Facade.Unmount"))
	}
}

func (f *typedFacade[S, W]) Build(ctx Context) []Widget {
	if b, ok := any(f.widget).(Builder[S]); ok {
		return b.Build(contextFor[S](ctx, "core.Facade.Build"))
	}
	return nil
}

func (f *typedFacade[S, W]) Equal(other Widget) bool {
	o, ok := other.(W)
	if !ok {
		reportMismatch(f.widget, other)
		return false
	}
	if eq, ok := any(f.widget).(StructuralEq[W]); ok {
		return eq.StructuralEq(o)
	}
	return reflect.DeepEqual(f.widget, o)
}

// defaultFacade serves widgets that provide no glue.
type defaultFacade struct {
	widget Widget
}

func (f defaultFacade) StateType() reflect.Type {
	return reflect.TypeFor[*NoState]()
}

func (f defaultFacade) CreateState() any {
	return &NoState{}
}

func (f defaultFacade) Mount(ctx Context) {
	if m, ok := f.widget.(Mounter[NoState]); ok {
		m.Mount(contextFor[NoState](ctx, "core.Facade.Mount"))
	}
}

func (f defaultFacade) Unmount(ctx Context) {
	if u, ok := f.widget.(Unmounter[NoState]); ok {
		u.Unmount(contextFor[NoState](ctx, "core.Facade.Unmount"))
	}
}

func (f defaultFacade) Build(ctx Context) []Widget {
	if b, ok := f.widget.(Builder[NoState]); ok {
		return b.Build(contextFor[NoState](ctx, "core.Facade.Build"))
	}
	return nil
}

func (f defaultFacade) Equal(other Widget) bool {
	if reflect.TypeOf(f.widget) != reflect.TypeOf(other) {
		reportMismatch(f.widget, other)
		return false
	}
	return reflect.DeepEqual(f.widget, other)
}

// reportMismatch records a comparison the tree should never have made.
// Callers must resolve it as "not equal".
func reportMismatch(left, right Widget) {
	errors.ReportEquality(&errors.EqualityError{
		Left:  typeName(left),
		Right: typeName(right),
	})
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
