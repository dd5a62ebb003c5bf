package version

import (
	"github.com/hashicorp-forge/hermes-import/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-import/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: hermes-import version

  Prints the hermes-import version.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
