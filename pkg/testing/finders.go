package testing

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-drift/retain/pkg/core"
)

// Finder locates nodes in the tree.
type Finder interface {
	// Evaluate returns all matching nodes under root (depth-first pre-order).
	Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	tree   *core.Tree
	nodes  []core.NodeID
	finder Finder
}

func (r FinderResult) description() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() core.NodeID {
	if len(r.nodes) == 0 {
		panic(fmt.Sprintf("Finder found no nodes: %s", r.description()))
	}
	return r.nodes[0]
}

// FirstOrZero returns the first match, or the zero ID if none.
func (r FinderResult) FirstOrZero() core.NodeID {
	if len(r.nodes) == 0 {
		return core.NodeID{}
	}
	return r.nodes[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) core.NodeID {
	if index < 0 || index >= len(r.nodes) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.nodes), r.description()))
	}
	return r.nodes[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []core.NodeID {
	return r.nodes
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.nodes)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.nodes) > 0
}

// Widget returns the widget of the first match. Panics if no matches.
func (r FinderResult) Widget() core.Widget {
	return r.tree.Widget(r.First())
}

// IsDirty reports whether the first match is dirty. Panics if no matches.
func (r FinderResult) IsDirty() bool {
	return r.tree.IsDirty(r.First())
}

// --- Concrete finders ---

// typeFinder matches nodes whose widget is of the specified type.
type typeFinder struct {
	widgetType reflect.Type
}

func (f *typeFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	return collectMatches(tree, root, func(_ core.NodeID, w core.Widget) bool {
		return reflect.TypeOf(w) == f.widgetType
	})
}

func (f *typeFinder) Description() string {
	return fmt.Sprintf("ByType(%s)", f.widgetType)
}

// ByType returns a finder that matches nodes whose widget is type T.
func ByType[T core.Widget]() Finder {
	return &typeFinder{widgetType: reflect.TypeFor[T]()}
}

// keyFinder matches nodes whose widget key equals the given key.
type keyFinder struct {
	key any
}

func (f *keyFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	return collectMatches(tree, root, func(_ core.NodeID, w core.Widget) bool {
		k := w.Key()
		if k == nil || f.key == nil {
			return k == nil && f.key == nil
		}
		// Guard against non-comparable types (slices, maps, funcs).
		if !reflect.TypeOf(k).Comparable() || !reflect.TypeOf(f.key).Comparable() {
			return reflect.DeepEqual(k, f.key)
		}
		return k == f.key
	})
}

func (f *keyFinder) Description() string {
	return fmt.Sprintf("ByKey(%v)", f.key)
}

// ByKey returns a finder that matches nodes whose widget key equals key.
func ByKey(key any) Finder {
	return &keyFinder{key: key}
}

// TextWidget is implemented by widgets that display plain text.
type TextWidget interface {
	core.Widget
	TextContent() string
}

// textFinder matches TextWidget nodes by content.
type textFinder struct {
	text     string
	contains bool
}

func (f *textFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	return collectMatches(tree, root, func(_ core.NodeID, w core.Widget) bool {
		t, ok := w.(TextWidget)
		if !ok {
			return false
		}
		if f.contains {
			return strings.Contains(t.TextContent(), f.text)
		}
		return t.TextContent() == f.text
	})
}

func (f *textFinder) Description() string {
	if f.contains {
		return fmt.Sprintf("ByTextContaining(%q)", f.text)
	}
	return fmt.Sprintf("ByText(%q)", f.text)
}

// ByText returns a finder that matches [TextWidget] nodes with exact content.
func ByText(text string) Finder {
	return &textFinder{text: text}
}

// ByTextContaining returns a finder that matches [TextWidget] nodes
// containing the given substring.
func ByTextContaining(substring string) Finder {
	return &textFinder{text: substring, contains: true}
}

// dirtyFinder matches nodes with a pending rebuild.
type dirtyFinder struct{}

func (dirtyFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	return collectMatches(tree, root, func(id core.NodeID, _ core.Widget) bool {
		return tree.IsDirty(id)
	})
}

func (dirtyFinder) Description() string {
	return "Dirty()"
}

// Dirty returns a finder that matches every dirty node.
func Dirty() Finder {
	return dirtyFinder{}
}

// predicateFinder matches nodes satisfying a predicate.
type predicateFinder struct {
	fn   func(core.NodeID, core.Widget) bool
	desc string
}

func (f *predicateFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	return collectMatches(tree, root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate returns a finder that matches nodes satisfying fn.
func ByPredicate(fn func(id core.NodeID, w core.Widget) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// descendantFinder finds nodes matching 'matching' that are descendants
// of nodes matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	var results []core.NodeID
	seen := make(map[core.NodeID]bool)
	for _, ancestor := range f.of.Evaluate(tree, root) {
		// Search within each ancestor's subtree (skip the ancestor itself)
		tree.VisitChildren(ancestor, func(child core.NodeID) bool {
			for _, match := range f.matching.Evaluate(tree, child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
			return true
		})
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches nodes satisfying 'matching'
// that are descendants of nodes matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// ancestorFinder finds nodes matching 'matching' that are strict ancestors
// of nodes matching 'of'.
type ancestorFinder struct {
	of       Finder
	matching Finder
}

func (f *ancestorFinder) Evaluate(tree *core.Tree, root core.NodeID) []core.NodeID {
	candidates := make(map[core.NodeID]bool)
	for _, id := range f.matching.Evaluate(tree, root) {
		candidates[id] = true
	}
	if len(candidates) == 0 {
		return nil
	}
	seen := make(map[core.NodeID]bool)
	for _, desc := range f.of.Evaluate(tree, root) {
		for id, ok := tree.Parent(desc); ok; id, ok = tree.Parent(id) {
			if candidates[id] {
				seen[id] = true
			}
		}
	}
	// Report in traversal order.
	return collectMatches(tree, root, func(id core.NodeID, _ core.Widget) bool {
		return seen[id]
	})
}

func (f *ancestorFinder) Description() string {
	return fmt.Sprintf("Ancestor(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Ancestor returns a finder that matches nodes satisfying 'matching'
// that are ancestors of nodes matching 'of'.
func Ancestor(of, matching Finder) Finder {
	return &ancestorFinder{of: of, matching: matching}
}

// collectMatches performs depth-first pre-order traversal, collecting
// nodes that satisfy the predicate.
func collectMatches(tree *core.Tree, root core.NodeID, predicate func(core.NodeID, core.Widget) bool) []core.NodeID {
	var results []core.NodeID
	walkTree(tree, root, func(id core.NodeID) bool {
		if predicate(id, tree.Widget(id)) {
			results = append(results, id)
		}
		return true
	})
	return results
}

// walkTree performs a depth-first pre-order traversal of the tree.
// The visitor returns false to skip a node's subtree.
func walkTree(tree *core.Tree, root core.NodeID, visitor func(core.NodeID) bool) {
	if !visitor(root) {
		return
	}
	for _, child := range tree.Children(root) {
		walkTree(tree, child, visitor)
	}
}
