package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikepea/extids/pkg/extids/app"
	"github.com/mikepea/extids/pkg/extids/auth"
	"github.com/mikepea/extids/pkg/extids/config"
	"github.com/mikepea/extids/pkg/extids/database"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/policy"
)

const (
	configName = "extidsctl"
	configType = "yaml"

	cfgKeyDB       = "db"
	cfgKeyDriver   = "driver"
	cfgKeyCatalog  = "catalog"
	cfgKeyOutput   = "output"
	cfgKeyLogLevel = "log_level"

	outputJSON = "json"
	outputText = "text"
)

// cli holds state shared by every subcommand of one invocation
type cli struct {
	v          *viper.Viper
	configFile string
	app        *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "extidsctl",
		Short: "Manage external systems, URL templates and external IDs",
		Long: `extidsctl administers an extids database directly.

Record types are registered from the catalog file (--catalog), so commands
that address records need it. Every command runs unrestricted.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.loadConfig,
		PersistentPostRunE: func(*cobra.Command, []string) error { return c.close() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default: ./extidsctl.yaml if present)")
	flags.String(cfgKeyDB, "extids.db", "database path")
	flags.String(cfgKeyDriver, database.DriverCGO, "database driver: sqlite3 or sqlite")
	flags.String(cfgKeyCatalog, "", "catalog file whose record types are registered")
	flags.StringP(cfgKeyOutput, "o", outputText, "output format: json or text")
	for _, key := range []string{cfgKeyDB, cfgKeyDriver, cfgKeyCatalog, cfgKeyOutput} {
		_ = c.v.BindPFlag(key, flags.Lookup(key))
	}
	c.v.SetDefault(cfgKeyLogLevel, "error")
	c.v.SetEnvPrefix("EXTIDS")
	c.v.AutomaticEnv()

	root.AddCommand(
		c.systemsCmd(),
		c.urlsCmd(),
		c.idsCmd(),
		c.catalogCmd(),
		c.clientsCmd(),
		c.migrateCmd(),
	)
	return root
}

// loadConfig reads the optional config file. Flags win over EXTIDS_*
// variables, which win over the file.
func (c *cli) loadConfig(*cobra.Command, []string) error {
	if c.configFile != "" {
		c.v.SetConfigFile(c.configFile)
	} else {
		c.v.SetConfigName(configName)
		c.v.SetConfigType(configType)
		c.v.AddConfigPath(".")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	switch out := c.v.GetString(cfgKeyOutput); out {
	case outputJSON, outputText:
		return nil
	default:
		return fmt.Errorf("--output: %q is not one of json, text", out)
	}
}

// open wires the app on first use
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	log, err := logger.New(c.v.GetString(cfgKeyLogLevel), true)
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{
		DBDriver:    c.v.GetString(cfgKeyDriver),
		DBPath:      c.v.GetString(cfgKeyDB),
		CatalogFile: c.v.GetString(cfgKeyCatalog),
		TokenTTL:    auth.DefaultTTL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// scoped returns the command context with unrestricted visibility
func scoped(cmd *cobra.Command) context.Context {
	return policy.WithScope(cmd.Context(), policy.All)
}
