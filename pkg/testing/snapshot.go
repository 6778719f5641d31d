package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/go-drift/retain/pkg/core"
)

// UpdateSnapshotsEnv names the environment variable that switches
// MatchesFile into update mode when set to "1".
const UpdateSnapshotsEnv = "RETAIN_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the structure of a tree: configurations, dirty flags
// and inherited dependency edges.
type Snapshot struct {
	Tree *SnapshotNode `json:"tree"`
}

// SnapshotNode represents a node in the serialized tree. IDs are stable
// across runs ("core.label#0", "core.label#1") rather than arena IDs.
type SnapshotNode struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key,omitempty"`
	Dirty      bool            `json:"dirty,omitempty"`
	Inherited  bool            `json:"inherited,omitempty"`
	Dependents []string        `json:"dependents,omitempty"`
	Children   []*SnapshotNode `json:"children,omitempty"`
}

// CaptureSnapshot captures the current tree. The result is empty before
// PumpWidget.
func (t *WidgetTester) CaptureSnapshot() *Snapshot {
	snap := &Snapshot{}
	if t.root.IsZero() || !t.tree.Contains(t.root) {
		return snap
	}
	names := make(map[core.NodeID]string)
	counter := &typeCounter{}
	walkTree(t.tree, t.root, func(id core.NodeID) bool {
		names[id] = counter.next(widgetTypeName(t.tree.Widget(id)))
		return true
	})
	snap.Tree = captureNode(t.tree, t.root, names)
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When RETAIN_UPDATE_SNAPSHOTS=1
// is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a unified diff between other (expected) and this snapshot.
// Returns empty string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(s)
	b, _ := marshalSnapshot(other)
	if bytes.Equal(a, b) {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(b)),
		B:        difflib.SplitLines(string(a)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		return fmt.Sprintf("snapshots differ (diff failed: %v)", err)
	}
	return diff
}

// --- Internal ---

// typeCounter assigns stable IDs like "core.label#0", "core.label#1".
type typeCounter struct {
	counts map[string]int
}

func (c *typeCounter) next(typeName string) string {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	n := c.counts[typeName]
	c.counts[typeName] = n + 1
	return fmt.Sprintf("%s#%d", typeName, n)
}

func captureNode(tree *core.Tree, id core.NodeID, names map[core.NodeID]string) *SnapshotNode {
	w := tree.Widget(id)
	_, inherited := w.(core.Inherited)
	node := &SnapshotNode{
		ID:        names[id],
		Type:      widgetTypeName(w),
		Dirty:     tree.IsDirty(id),
		Inherited: inherited,
	}
	if k := w.Key(); k != nil {
		node.Key = fmt.Sprintf("%v", k)
	}
	for _, dep := range tree.Dependents(id) {
		if name, ok := names[dep]; ok {
			node.Dependents = append(node.Dependents, name)
		}
	}
	for _, child := range tree.Children(id) {
		node.Children = append(node.Children, captureNode(tree, child, names))
	}
	return node
}

func widgetTypeName(w core.Widget) string {
	t := reflect.TypeOf(w)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
