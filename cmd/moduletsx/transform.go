package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"moduletsx/pkg/driver"
	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/modules"
)

func newTransformCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "transform <url-or-path>",
		Short: "Transform an entry module and print its unit identifier",
		Long: `Transform an entry module and everything it imports.

The entry's unit identifier is printed. With --all, the generated code of
every unit is printed as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, unit, err := a.transformEntry(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, unit.ID)
			if all {
				printUnits(out, s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print the code of every generated unit")
	return cmd
}

// transformEntry runs the pipeline for the entry named by arg
func (a *app) transformEntry(cmd *cobra.Command, arg string) (*driver.Session, *modules.Unit, error) {
	entry, err := entryURL(arg)
	if err != nil {
		return nil, nil, &ExitError{Code: exitUsage, Err: err}
	}
	s, err := a.newSession(sessionOptions{})
	if err != nil {
		return nil, nil, failure(err)
	}

	unit, err := s.ImportByIdentifier(cmd.Context(), entry, entry)
	if err != nil {
		merrors.DisplayErrors(a.stderr, []error{err})
		return s, nil, failure(fmt.Errorf("transform %s failed", entry))
	}

	t := s.Transformer()
	stats := t.Stats()
	a.logger.Info("transformed", "entry", entry, "units", stats.Registry.TotalUnits,
		"stylesheets", len(t.UnitsOfKind(modules.KindStylesheet))+len(t.UnitsOfKind(modules.KindStylesheetModule)),
		"fetches", stats.Fetches, "duration", stats.TotalTime)
	return s, unit, nil
}

// printUnits prints every cached unit in source URL order
func printUnits(w io.Writer, s *driver.Session) {
	for _, record := range s.Transformer().Units() {
		u, ok := s.Store().Lookup(record.ID)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n// %s <- %s (%s)\n%s", u.ID, record.SourceURL, record.Kind, u.Code)
	}
}
