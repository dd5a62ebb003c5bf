package migrate

import (
	"flag"
	"fmt"

	"github.com/hashicorp-forge/hermes-import/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-import/internal/config"
	"github.com/hashicorp-forge/hermes-import/internal/migrate"
	"github.com/hashicorp-forge/hermes-import/pkg/database"
)

type Command struct {
	*base.Command

	flagConfig   string
	flagRollback bool
	flagStatus   bool
}

func (c *Command) Synopsis() string {
	return "Apply database schema migrations"
}

func (c *Command) Help() string {
	return `Usage: hermes-import migrate [options]

  Applies pending schema migrations to the configured database. With
  -status the current version is printed and nothing is changed.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("migrate", flag.ContinueOnError))

	f.StringVar(&c.flagConfig, "config", "",
		"Path to the HCL `file` holding configuration. Defaults apply when unset.")
	f.BoolVar(&c.flagStatus, "status", false,
		"Print the current schema version and exit.")
	f.BoolVar(&c.flagRollback, "rollback", false,
		"Revert every applied migration.")

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagStatus && c.flagRollback {
		ui.Error("status and rollback flags are mutually exclusive")
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}

	db, err := database.Connect(cfg.DatabaseConfig(), logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}
	sqlDB, err := db.DB()
	if err != nil {
		ui.Error(fmt.Sprintf("error getting database handle: %v", err))
		return 1
	}
	defer sqlDB.Close()

	driver := cfg.Database.Driver
	switch {
	case c.flagRollback:
		if err := migrate.RollbackMigrations(sqlDB, driver); err != nil {
			ui.Error(fmt.Sprintf("error rolling back migrations: %v", err))
			return 1
		}
	case !c.flagStatus:
		if err := migrate.RunMigrations(sqlDB, driver); err != nil {
			ui.Error(fmt.Sprintf("error running migrations: %v", err))
			return 1
		}
	}

	version, dirty, err := migrate.GetMigrationVersion(sqlDB, driver)
	if err != nil {
		ui.Error(fmt.Sprintf("error reading schema version: %v", err))
		return 1
	}
	msg := fmt.Sprintf("Schema version: %d", version)
	if dirty {
		ui.Warn(msg + " (dirty)")
		return 1
	}
	ui.Info(msg)
	return 0
}
