package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migration scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := c.source()
			scripts, err := src.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tPATH")
			for _, s := range scripts {
				fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, src.Path(s))
			}
			return w.Flush()
		},
	}
}
