package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"botsupport/internal/db"
	"botsupport/internal/migrate"
	"botsupport/internal/secret"
)

func newApplyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [name]",
		Short: "Apply a migration script and list the resulting tables",
		Long: `Apply a migration script and list the resulting tables.

The bundled 001_create_tables script uses PostgreSQL types (SERIAL,
TIMESTAMPTZ) and only runs against PostgreSQL. For a mysql:// target pass
--dir with scripts written for MySQL.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := c.source().LoadScript(scriptName(args))
			if err != nil {
				return err
			}
			descriptor, from := c.descriptor()
			out := cmd.OutOrStdout()
			if descriptor == "" {
				fmt.Fprintln(out, "No database connection string configured.")
				fmt.Fprintln(out, c.source().ManualInstructions(script))
			} else {
				fmt.Fprintf(out, "Applying %s to %s (from %s)\n", script.Name, secret.Redact(descriptor), from)
			}

			timeout := c.cfg.ApplyTimeout
			if d := c.v.GetDuration("timeout"); d > 0 {
				timeout = d
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			applier := migrate.New(db.Open, c.logger, migrate.Options{
				Schema: c.cfg.Schema,
				Prefix: c.cfg.TablePrefix,
			})
			result, err := applier.Apply(ctx, descriptor, script)
			if err != nil {
				var failure *migrate.Error
				if errors.As(err, &failure) && failure.Recoverable() {
					fmt.Fprintf(out, "Objects already exist: %s\n", failure.Message)
					fmt.Fprintln(out, failure.Remediation())
					printTables(out, failure.Tables)
					return nil
				}
				return err
			}
			fmt.Fprintf(out, "Migration applied, %d tables present:\n", result.Count)
			printTables(out, result.Tables)
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 0, "overall apply timeout (default: BOTSUPPORT_APPLY_TIMEOUT)")
	_ = c.v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func printTables(out io.Writer, tables []string) {
	for _, name := range tables {
		fmt.Fprintf(out, "  - %s\n", name)
	}
}
