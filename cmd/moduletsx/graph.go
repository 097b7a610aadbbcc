package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <url-or-path>",
		Short: "Print the dependency graph of an entry module",
		Long: `Transform an entry module and print every dependency edge discovered on the
way, followed by a load order with dependencies first. Each module in the
order shows how many modules import it and the depth of its import chain.
Modules on an import cycle cannot be ordered and are listed separately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.transformEntry(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := s.Transformer()
			for _, e := range t.Edges() {
				fmt.Fprintf(out, "%s -> %s\n", e.From, e.To)
			}

			order, cyclic := t.TopologicalOrder()
			fmt.Fprintln(out, "\norder:")
			for i, u := range order {
				fmt.Fprintf(out, "  %d. %s (imported by %d, depth %d)\n", i+1, u, t.ImportCount(u), t.DependencyDepth(u))
			}
			if len(cyclic) > 0 {
				fmt.Fprintln(out, "\ncycles:")
				for _, u := range cyclic {
					fmt.Fprintf(out, "  %s\n", u)
				}
			}
			return nil
		},
	}
}
