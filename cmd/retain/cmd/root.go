// Package cmd implements the retain CLI commands.
//
// The root command loads retain.yaml from the project directory before any
// subcommand runs and installs the configured logger and error handler.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drift/retain/cmd/retain/internal/config"
	"github.com/go-drift/retain/pkg/core"
	"github.com/go-drift/retain/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// app carries the state shared by subcommands for one invocation.
type app struct {
	dir      string
	resolved *config.Resolved
	logger   *slog.Logger
}

// NewRootCommand builds the command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "retain",
		Short: "retain - state substrate for retained widget trees",
		Long: `retain inspects the retain.yaml of a project and runs reference
scenarios against a live widget tree.

Use "retain <command> --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "project directory (default: nearest go.mod above the working directory)")

	root.AddCommand(newVersionCommand())
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newDemoCommand(a))
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand(os.Stdout).Execute()
}

// load resolves configuration and applies it to the process-wide logger,
// error handler and debug mode.
func (a *app) load(logOut io.Writer) error {
	dir := a.dir
	if dir == "" {
		root, err := config.FindProjectRoot()
		if err != nil {
			if dir, err = os.Getwd(); err != nil {
				return err
			}
		} else {
			dir = root
		}
	}

	resolved, err := config.Resolve(dir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.resolved = resolved
	a.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: resolved.LogLevel}))

	errors.SetHandler(&errors.LogHandler{Verbose: resolved.Verbose, Logger: a.logger})
	core.SetDebugMode(resolved.Debug)
	return nil
}

// newTree creates a tree configured from retain.yaml.
func (a *app) newTree(opts ...core.Option) *core.Tree {
	base := []core.Option{
		core.WithDependencyPolicy(a.resolved.Policy),
		core.WithLogger(a.logger),
	}
	return core.NewTree(append(base, opts...)...)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "retain version %s (built %s)\n", Version, BuildTime)
		},
	}
}
