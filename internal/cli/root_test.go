package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["listen"])
	assert.True(t, names["dial"])
}

func TestNewRootCommand_ConfigFlagDefaultsEmpty(t *testing.T) {
	root := NewRootCommand()

	flag := root.PersistentFlags().Lookup("config")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "", flag.DefValue)
	}
}
