package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration that applies to the project as YAML, with
defaults filled in for every setting retain.yaml leaves out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			r := a.resolved
			fmt.Fprintf(out, "# root: %s\n", r.Root)
			if r.ModulePath != "" {
				fmt.Fprintf(out, "# module: %s\n", r.ModulePath)
			}
			fmt.Fprintf(out, "# project: %s\n", r.Project)

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(r.Config()); err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			return enc.Close()
		},
	}
}
