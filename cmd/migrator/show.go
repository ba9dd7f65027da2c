package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd(c *cli) *cobra.Command {
	var instructions bool
	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a migration script for manual application",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := c.source()
			script, err := src.LoadScript(scriptName(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, script.Body)
			if instructions {
				fmt.Fprintln(out)
				fmt.Fprintln(out, src.ManualInstructions(script))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "also print manual apply steps")
	return cmd
}
