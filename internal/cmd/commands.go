package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/hermes-import/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-import/internal/cmd/commands/ingest"
	"github.com/hashicorp-forge/hermes-import/internal/cmd/commands/migrate"
	"github.com/hashicorp-forge/hermes-import/internal/cmd/commands/search"
	"github.com/hashicorp-forge/hermes-import/internal/cmd/commands/version"
)

// Commands is the mapping of all available hermes-import commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"import": func() (cli.Command, error) {
			return &ingest.Command{Command: b}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migrate.Command{Command: b}, nil
		},
		"search": func() (cli.Command, error) {
			return &search.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
