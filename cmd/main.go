package main

import (
	"os"
	"os/signal"
	"syscall"

	"riskstrat/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Start(); err != nil {
		c.Log.Errorw("Failed to start", "error", err)
		c.Shutdown()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		c.Log.Infow("Received shutdown signal", "signal", s.String())
	case <-c.Context.Done():
		c.Log.Warn("Context cancelled, shutting down")
	}

	c.Shutdown()
	c.Log.Info("Shutdown complete")
}
