package console

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Hard-stop signals. SIGINT is left to the application.
var stopSignals = []os.Signal{syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM}

func (c *Console) watchSignals() {
	c.signals = make(chan os.Signal, 1)
	signal.Notify(c.signals, stopSignals...)
	go func() {
		for {
			select {
			case sig := <-c.signals:
				c.logger.Info("Received signal", zap.Stringer("signal", sig))
				c.terminate(sig.String())
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *Console) stopSignals() {
	if c.signals != nil {
		signal.Stop(c.signals)
	}
}
