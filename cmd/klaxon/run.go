package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bsid.es/klaxon/config"
	"bsid.es/klaxon/desktop"
	"bsid.es/klaxon/mem"
	"github.com/urfave/cli"
)

func (a *app) run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, closeNotifier := a.notifier()
	defer closeNotifier()

	player := desktop.NewCommandPlayer(a.cfg.Sound.Command...)
	firer := desktop.NewFirer(notifier, player)
	firer.RingLimit = time.Duration(a.cfg.Sound.RingLimit)
	firer.Logger = a.logger

	clock := mem.NewClock()
	clock.Period = time.Duration(a.cfg.Period)
	clock.SyncPeriod = time.Duration(a.cfg.SyncPeriod)
	clock.FireMissed = a.cfg.FireMissed
	clock.Logger = a.logger
	clock.Store = store

	logger := mem.NewClockLogger(clock, a.logger)

	// Subscribers first, so the first tick reaches them.
	firer.Run(ctx, clock)
	defer firer.Interrupt()
	logger.Run(ctx)
	defer logger.Interrupt()
	clock.Run(ctx)
	defer clock.Interrupt()

	a.logger.Info("klaxon running", "database", a.cfg.Database, "notify", a.cfg.Notify.Backend)
	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

// notifier builds the configured notifier. Without a session bus it falls
// back to printing notifications.
func (a *app) notifier() (desktop.Notifier, func()) {
	switch a.cfg.Notify.Backend {
	case config.BackendNone:
		return desktop.NopNotifier{}, func() {}
	case config.BackendDBus:
		n, err := desktop.NewDBusNotifier(a.cfg.Notify.AppName)
		if err == nil {
			return n, func() { n.Close() }
		}
		a.logger.Warn("desktop notifications unavailable, using the terminal", "err", err)
	}
	return desktop.NewTerminalNotifier(a.stderr), func() {}
}
