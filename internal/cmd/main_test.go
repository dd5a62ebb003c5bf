package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitCommands(t *testing.T) {
	initCommands(nil, nil)

	for _, name := range []string{"import", "migrate", "search", "version"} {
		factory, ok := Commands[name]
		if assert.True(t, ok, "missing command %s", name) {
			c, err := factory()
			assert.NoError(t, err)
			assert.NotEmpty(t, c.Synopsis())
			assert.NotEmpty(t, c.Help())
		}
	}
}
