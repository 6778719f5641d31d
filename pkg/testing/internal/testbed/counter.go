// Package testbed provides internal test widgets for the testing framework.
package testbed

import (
	"strconv"

	"github.com/go-drift/retain/pkg/core"
)

// Text is a leaf widget displaying fixed content.
type Text struct {
	core.StatelessBase
	Content string
}

// TextContent returns the displayed content.
func (t Text) TextContent() string { return t.Content }

// CounterState is the state held by a Counter.
type CounterState struct {
	Count int
}

// Counter is a stateful widget that displays its count.
type Counter struct {
	core.StatefulBase
	Initial int
}

func (c Counter) CreateState() CounterState { return CounterState{Count: c.Initial} }

func (c Counter) Facade() core.Facade { return core.StateFacade[CounterState](c) }

func (c Counter) Build(ctx *core.BuildContext[CounterState]) []core.Widget {
	var count int
	ctx.ReadState(func(s *CounterState) { count = s.Count })
	return []core.Widget{Text{Content: strconv.Itoa(count)}}
}

// Ticker increments its own count on every build until it reaches Limit,
// so it keeps requesting frames until then.
type Ticker struct {
	core.StatefulBase
	Limit int
}

func (t Ticker) CreateState() CounterState { return CounterState{} }

func (t Ticker) Facade() core.Facade { return core.StateFacade[CounterState](t) }

func (t Ticker) Build(ctx *core.BuildContext[CounterState]) []core.Widget {
	var count int
	ctx.ReadState(func(s *CounterState) { count = s.Count })
	if t.Limit <= 0 || count < t.Limit {
		ctx.SetState(func(s *CounterState) { s.Count++ })
	}
	return nil
}
