package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"moduletsx/pkg/driver"
	merrors "moduletsx/pkg/errors"
)

func newBootstrapCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "bootstrap <index.html>",
		Short: "Load a page and import every module-tsx script it declares",
		Long: `Load an HTML page, install the import maps it declares and import each of
its module-tsx scripts. Every script is reported; the command fails when any
of them could not be imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docURL, err := entryURL(args[0])
			if err != nil {
				return &ExitError{Code: exitUsage, Err: err}
			}
			s, err := a.newSession(sessionOptions{})
			if err != nil {
				return failure(err)
			}

			ctx := cmd.Context()
			page, err := s.Transformer().Fetch(ctx, docURL)
			if err != nil {
				return failure(err)
			}
			doc, err := s.LoadDocument(ctx, strings.NewReader(page), docURL)
			if err != nil {
				return failure(err)
			}

			results := s.Bootstrap(ctx, doc)
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(out, "FAIL %s\n", r.Script.String())
					continue
				}
				fmt.Fprintf(out, "ok   %s -> %s\n", r.Script.String(), r.Unit.ID)
			}
			if all {
				printUnits(out, s)
			}

			err = driver.Failed(results)
			if err != nil {
				var errs []error
				for _, r := range results {
					if r.Err != nil {
						errs = append(errs, r.Err)
					}
				}
				merrors.DisplayErrors(a.stderr, errs)
			}
			return failure(err)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print the code of every generated unit")
	return cmd
}
