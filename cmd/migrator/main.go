package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"botsupport/internal/config"
	"botsupport/internal/logging"
	"botsupport/internal/migrate"
	"botsupport/internal/secret"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "migrator",
		Short:         "Inspect and apply the bot database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("url", "", "database connection string (overrides SUPABASE_DB_URL and friends)")
	flags.String("dir", "", "directory with NNN_name.sql scripts (default: embedded scripts)")
	flags.String("schema", "", "catalog schema to inspect (default: public)")
	flags.String("prefix", "", "table name prefix (default: telegram_)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = c.v.BindPFlag("url", flags.Lookup("url"))
	_ = c.v.BindPFlag("dir", flags.Lookup("dir"))
	_ = c.v.BindPFlag("schema", flags.Lookup("schema"))
	_ = c.v.BindPFlag("prefix", flags.Lookup("prefix"))
	_ = c.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newApplyCmd(c),
		newShowCmd(c),
		newListCmd(c),
		newTablesCmd(c),
		newCheckURLCmd(c),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(c.v.GetString("dir")); s != "" {
		cfg.MigrationsDir = s
	}
	if s := strings.TrimSpace(c.v.GetString("schema")); s != "" {
		cfg.Schema = s
	}
	if s := strings.TrimSpace(c.v.GetString("prefix")); s != "" {
		cfg.TablePrefix = s
	}
	if s := strings.TrimSpace(c.v.GetString("log_level")); s != "" {
		cfg.LogLevel = s
	}
	c.cfg = cfg
	c.logger = logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// descriptor returns the --url flag or the configured migration URL, and
// where it came from.
func (c *cli) descriptor() (string, string) {
	if s := strings.TrimSpace(c.v.GetString("url")); s != "" {
		return secret.EncodePassword(secret.StripPooler(s)), "--url"
	}
	if c.cfg.NonPoolingURL != "" {
		return c.cfg.MigrationURL(), "POSTGRES_URL_NON_POOLING"
	}
	return c.cfg.MigrationURL(), config.DescriptorSource()
}

// rawDescriptor is the connection string as configured, before pooler
// stripping and password encoding.
func (c *cli) rawDescriptor() string {
	if s := strings.TrimSpace(c.v.GetString("url")); s != "" {
		return s
	}
	if c.cfg.NonPoolingURL != "" {
		return c.cfg.NonPoolingURL
	}
	return c.cfg.DatabaseURL
}

func (c *cli) source() *migrate.Source {
	return migrate.SourceFor(c.cfg.MigrationsDir)
}

func scriptName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return migrate.DefaultScript
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var failure *migrate.Error
		if errors.As(err, &failure) {
			if hint := failure.Remediation(); hint != "" {
				fmt.Fprintln(os.Stderr, hint)
			}
		}
		os.Exit(1)
	}
}
