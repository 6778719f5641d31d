package testbed

import (
	"github.com/go-drift/retain/pkg/core"
)

// ScopeState is the value a Scope shares with its descendants.
type ScopeState struct {
	Label string
}

// Scope is an inherited widget exposing a label to its subtree.
type Scope struct {
	core.InheritedBase
	Label    string
	Children []core.Widget
}

func (s Scope) CreateState() ScopeState { return ScopeState{Label: s.Label} }

func (s Scope) Facade() core.Facade { return core.StateFacade[ScopeState](s) }

func (s Scope) Build(ctx *core.BuildContext[ScopeState]) []core.Widget {
	return s.Children
}

// ScopeLabel reads the nearest Scope and displays its label.
type ScopeLabel struct {
	Tag string
}

func (l ScopeLabel) Key() any { return l.Tag }

func (l ScopeLabel) Build(ctx *core.BuildContext[core.NoState]) []core.Widget {
	label := "<none>"
	if scope, ok := core.DependOnInherited[ScopeState, Scope](ctx); ok {
		scope.Read(func(s *ScopeState) { label = s.Label })
	}
	return []core.Widget{Text{Content: label}}
}
