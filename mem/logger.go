package mem

import (
	"context"
	"log/slog"

	"bsid.es/klaxon"
)

// ClockLogger logs every alarm a clock fires.
type ClockLogger struct {
	clock  klaxon.Clock
	logger *slog.Logger

	sub    klaxon.ClockSubscription
	cancel context.CancelFunc
}

func NewClockLogger(clock klaxon.Clock, logger *slog.Logger) *ClockLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClockLogger{
		clock:  clock,
		logger: logger,
		cancel: func() {},
	}
}

func (l *ClockLogger) Run(ctx context.Context) error {
	l.sub = l.clock.Subscribe(ctx)
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
	return nil
}

func (l *ClockLogger) Interrupt() error {
	l.cancel()
	return nil
}

func (l *ClockLogger) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.sub.Close()
			return

		case alarm, ok := <-l.sub.C():
			if !ok {
				l.sub = l.clock.Subscribe(ctx)
				continue
			}
			def := alarm.Definition
			l.logger.Info("alarm",
				"name", def.Name,
				"type", def.Type,
				"at", alarm.At.Format("15:04"),
				"sound", def.Action.PlaySound,
				"exec", def.Action.ExecProgram,
				"window", def.Action.ShowWindow,
			)
		}
	}
}
