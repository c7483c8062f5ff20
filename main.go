/*
Portal demo: a room with a linked portal pair rendered by the engine.
*/
package main

import (
	"os"

	"github.com/spaghettifunk/portalis/engine"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/testbed"
)

func main() {
	if err := engine.RunApplication(testbed.NewPortalGame().Game, core.DefaultConfigPath); err != nil {
		core.LogError("%s", err)
		os.Exit(1)
	}
}
