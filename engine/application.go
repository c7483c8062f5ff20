package engine

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/portalis/engine/core"
)

// RunApplication loads the configuration, runs the game until its window
// closes or the process is signaled, and shuts everything down.
func RunApplication(g *Game, configPath string) error {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	e, err := New(g, cfg)
	if err != nil {
		return err
	}
	core.LogInfo("Starting %s, session %s.", cfg.Application.Name, core.SessionID())

	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %s", err)
		_ = e.Shutdown()
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			// Ask the loop to stop, the window thread does the teardown.
			e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
