package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-drift/retain/pkg/core"
)

type counterState struct {
	count int
}

// counterScope shares a counter with its subtree.
type counterScope struct {
	core.InheritedBase
	children []core.Widget
}

func (s counterScope) CreateState() counterState { return counterState{} }

func (s counterScope) Facade() core.Facade { return core.StateFacade[counterState](s) }

func (s counterScope) Build(*core.BuildContext[counterState]) []core.Widget {
	return s.children
}

// countLabel reads the nearest counterScope and reports what it saw.
type countLabel struct {
	name string
	out  io.Writer
}

func (l countLabel) Key() any { return l.name }

func (l countLabel) Build(ctx *core.BuildContext[core.NoState]) []core.Widget {
	if scope, ok := core.DependOnInherited[counterState, counterScope](ctx); ok {
		scope.Read(func(s *counterState) {
			fmt.Fprintf(l.out, "  build %s: count=%d\n", l.name, s.count)
		})
	}
	return nil
}

// staticLabel never reads the scope.
type staticLabel struct {
	core.StatelessBase
	name string
}

func newDemoCommand(a *app) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the inherited counter scenario",
		Long: `Mount a counter scope with one dependent and one bystander, then
increment the shared counter and flush the tree after each step. Every dirty
transition is logged, so the dependent can be seen rebuilding while the
bystander stays clean.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 0 {
				return fmt.Errorf("--steps must not be negative, got %d", steps)
			}
			return a.runDemo(cmd.OutOrStdout(), steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 2, "number of increments to apply")
	return cmd
}

func (a *app) runDemo(out io.Writer, steps int) error {
	owner := core.NewBuildOwner()
	tree := a.newTree(core.WithBuildOwner(owner))
	owner.OnNeedsFrame = func() {
		a.logger.Debug("frame requested", "tree", tree.ID(), "pending", len(owner.Pending()))
	}

	root := tree.MountRoot(counterScope{children: []core.Widget{
		countLabel{name: "dependent", out: out},
		staticLabel{name: "bystander"},
	}})
	fmt.Fprintf(out, "tree %s (policy %s)\n", tree.ID(), tree.Policy())
	fmt.Fprintln(out, "mount:")
	tree.FlushBuild()

	children := tree.Children(root)
	dependent, bystander := children[0], children[1]
	scope, ok := core.DependOnInherited[counterState, counterScope](core.ContextFor[core.NoState](tree, dependent))
	if !ok {
		return fmt.Errorf("dependent has no counter scope above it")
	}

	names := map[core.NodeID]string{root: "scope", dependent: "dependent", bystander: "bystander"}
	for step := 1; step <= steps; step++ {
		scope.Update(func(s *counterState) { s.count++ })
		fmt.Fprintf(out, "step %d:\n", step)
		for _, id := range []core.NodeID{root, dependent, bystander} {
			dirty := tree.IsDirty(id)
			a.logger.Info("dirty transition", "node", names[id], "id", id, "dirty", dirty)
			fmt.Fprintf(out, "  %s dirty=%t\n", names[id], dirty)
		}
		tree.FlushBuild()
	}

	tree.Unmount(root)
	return nil
}
