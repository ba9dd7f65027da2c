package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"botsupport/internal/db"
	"botsupport/internal/migrate"
	"botsupport/internal/secret"
)

func newCheckURLCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check-url",
		Short: "Validate the configured connection string without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor, from := c.descriptor()
			raw := c.rawDescriptor()
			if descriptor == "" {
				return &migrate.Error{Kind: migrate.KindConfigMissing, Message: "no database connection string configured"}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:   %s\n", from)
			fmt.Fprintf(out, "url:      %s\n", secret.Redact(raw))
			if descriptor != raw {
				fmt.Fprintf(out, "migrate:  %s\n", secret.Redact(descriptor))
			}
			fmt.Fprintf(out, "provider: %s\n", db.ProviderFor(descriptor))

			issues := secret.Inspect(raw)
			if len(issues) == 0 {
				fmt.Fprintln(out, "ok")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return fmt.Errorf("connection string has %d issue(s)", len(issues))
		},
	}
}
