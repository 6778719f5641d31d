package testing

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/go-drift/retain/pkg/core"
)

// DefaultMaxFrames bounds PumpAndSettle when no frame budget is given.
const DefaultMaxFrames = 100

// frameDuration is how far the fake clock advances per settled frame.
const frameDuration = 16 * time.Millisecond

// ErrSettleTimeout is returned when PumpAndSettle exceeds its frame budget.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: tree did not settle")

// WidgetTester drives a [core.Tree] frame by frame without a real host.
// Each frame drains queued dispatches and then flushes the build owner.
type WidgetTester struct {
	tree       *core.Tree
	owner      *core.BuildOwner
	root       core.NodeID
	clock      *FakeClock
	frames     int
	dispatches []func()
	opts       []core.Option
}

// NewWidgetTester creates a tester with a fresh tree. Options are passed to
// [core.NewTree]; the tester always supplies its own build owner.
// Call Cleanup() when done, or use NewWidgetTesterWithT() instead.
func NewWidgetTester(opts ...core.Option) *WidgetTester {
	t := &WidgetTester{
		owner: core.NewBuildOwner(),
		clock: NewFakeClock(),
		opts:  opts,
	}
	t.tree = t.newTree()
	return t
}

// NewWidgetTesterWithT creates a tester that auto-cleans up via t.Cleanup().
// This is the recommended constructor for tests. Lifecycle records are
// routed to t.Log.
func NewWidgetTesterWithT(t *testing.T, opts ...core.Option) *WidgetTester {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tester := NewWidgetTester(append([]core.Option{core.WithLogger(logger)}, opts...)...)
	t.Cleanup(tester.Cleanup)
	return tester
}

func (t *WidgetTester) newTree() *core.Tree {
	return core.NewTree(append(t.opts, core.WithBuildOwner(t.owner))...)
}

// Cleanup unmounts the tree, running every Unmount hook.
func (t *WidgetTester) Cleanup() {
	if !t.root.IsZero() && t.tree.Contains(t.root) {
		t.tree.Unmount(t.root)
	}
	t.root = core.NodeID{}
}

// Clock returns the fake clock advanced by PumpAndSettle.
func (t *WidgetTester) Clock() *FakeClock {
	return t.clock
}

// Tree returns the tree under test.
func (t *WidgetTester) Tree() *core.Tree {
	return t.tree
}

// Root returns the root node, or the zero ID before PumpWidget.
func (t *WidgetTester) Root() core.NodeID {
	return t.root
}

// Frames returns the number of frames pumped so far.
func (t *WidgetTester) Frames() int {
	return t.frames
}

// PumpWidget mounts (or replaces) the root widget and runs one frame.
func (t *WidgetTester) PumpWidget(widget core.Widget) error {
	if widget == nil {
		return errors.New("PumpWidget: nil widget")
	}
	t.root = t.tree.MountRoot(widget)
	return t.Pump()
}

// Pump runs a single frame: queued dispatches, then the build flush.
func (t *WidgetTester) Pump() error {
	dispatches := t.dispatches
	t.dispatches = nil
	for _, fn := range dispatches {
		fn()
	}
	t.tree.FlushBuild()
	t.frames++
	return nil
}

// PumpAndSettle runs frames until nothing is dirty and no dispatch is
// queued, advancing the fake clock by 16ms per frame. Returns
// ErrSettleTimeout if the tree does not settle within maxFrames frames.
// A non-positive maxFrames selects DefaultMaxFrames.
func (t *WidgetTester) PumpAndSettle(maxFrames int) error {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	for range maxFrames {
		if err := t.Pump(); err != nil {
			return err
		}
		if !t.needsWork() {
			return nil
		}
		t.clock.Advance(frameDuration)
	}
	return fmt.Errorf("%w after %d frames", ErrSettleTimeout, maxFrames)
}

func (t *WidgetTester) needsWork() bool {
	return t.owner.NeedsWork() || len(t.dispatches) > 0
}

// Dispatch queues a callback for the next frame.
func (t *WidgetTester) Dispatch(fn func()) {
	t.dispatches = append(t.dispatches, fn)
}

// Find evaluates a finder against the current tree.
func (t *WidgetTester) Find(finder Finder) FinderResult {
	if t.root.IsZero() || !t.tree.Contains(t.root) {
		return FinderResult{tree: t.tree, finder: finder}
	}
	return FinderResult{
		tree:   t.tree,
		nodes:  finder.Evaluate(t.tree, t.root),
		finder: finder,
	}
}

// ReadState calls fn with the state of the first node matched by finder.
// It panics if nothing matches or the node's state is not an S.
func ReadState[S any](t *WidgetTester, finder Finder, fn func(s *S)) {
	core.ContextFor[S](t.tree, t.Find(finder).First()).ReadState(fn)
}

// SetState mutates the state of the first node matched by finder, marking
// it dirty. Call Pump to rebuild.
func SetState[S any](t *WidgetTester, finder Finder, fn func(s *S)) {
	core.ContextFor[S](t.tree, t.Find(finder).First()).SetState(fn)
}

// testWriter forwards slog output to the test log.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
