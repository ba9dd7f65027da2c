package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"botsupport/internal/db"
	"botsupport/internal/migrate"
)

func newTablesCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Show the prefixed tables, their columns and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor, _ := c.descriptor()
			if descriptor == "" {
				return &migrate.Error{Kind: migrate.KindConfigMissing, Message: "no database connection string configured"}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			conn, err := db.Open(ctx, descriptor)
			if err != nil {
				return &migrate.Error{Kind: migrate.KindConnection, Message: err.Error(), Err: err}
			}
			defer func() { _ = conn.Close() }()

			schema, err := conn.FetchSchema(ctx, c.cfg.Schema, c.cfg.TablePrefix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(schema.SortedTables())
			}
			printSchema(out, schema)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func printSchema(out io.Writer, schema db.Schema) {
	tables := schema.SortedTables()
	fmt.Fprintf(out, "%d tables in %s\n", len(tables), schema.Name)
	for _, t := range tables {
		fmt.Fprintf(out, "\n%s (%d rows)\n", t.Name, t.RowCount)
		if len(t.PrimaryKey) > 0 {
			fmt.Fprintf(out, "  primary key: %s\n", strings.Join(t.PrimaryKey, ", "))
		}
		for _, col := range t.Columns {
			null := "NOT NULL"
			if col.IsNullable {
				null = "NULL"
			}
			fmt.Fprintf(out, "  %-24s %-28s %s\n", col.Name, col.DataType, null)
		}
	}
}
