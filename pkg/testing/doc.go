// Package testing provides a frame-driven harness for widget trees.
//
// # Quick Start
//
// Create a tester, pump a widget, and make assertions:
//
//	func TestCounter(t *testing.T) {
//	    tester := retaintest.NewWidgetTesterWithT(t)
//	    tester.PumpWidget(Counter{Initial: 1})
//
//	    // Find nodes
//	    label := tester.Find(retaintest.ByText("1"))
//
//	    // Mutate state and run a frame
//	    retaintest.SetState(tester, retaintest.ByType[Counter](), func(s *counterState) {
//	        s.count++
//	    })
//	    tester.Pump()
//
//	    if !tester.Find(retaintest.ByText("2")).Exists() {
//	        t.Error("expected '2'")
//	    }
//	}
//
// # Settling
//
// PumpAndSettle pumps until no node is dirty, failing with ErrSettleTimeout
// when a widget keeps dirtying itself:
//
//	if err := tester.PumpAndSettle(10); err != nil {
//	    t.Fatal(err)
//	}
//
// # Snapshot Testing
//
// Capture and compare tree snapshots, including dirty flags and inherited
// dependents:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/counter.snapshot.json")
//
// Update snapshots with:
//
//	RETAIN_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import retaintest "github.com/go-drift/retain/pkg/testing"
package testing
