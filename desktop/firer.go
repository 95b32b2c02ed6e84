// Package desktop performs alarm actions on the user's desktop: it plays a
// sound, runs a program and shows a notification.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bsid.es/klaxon"
	"github.com/hashicorp/go-multierror"
)

const notifyTimeLayout = "15:04"

// Firer fires alarms on the desktop. Every firing runs in its own goroutine,
// so Fire returns at once.
type Firer struct {
	Notifier Notifier
	Player   Player

	// Launch starts a program without waiting for it.
	Launch func(name, params string) error

	// RingLimit bounds how long a sound loops. Zero loops until the
	// notification is dismissed.
	RingLimit time.Duration

	Logger *slog.Logger

	// mu orders Fire against Interrupt, so no action starts once Wait runs.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sub klaxon.ClockSubscription
}

var _ klaxon.Firer = (*Firer)(nil)

func NewFirer(notifier Notifier, player Player) *Firer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Firer{
		Notifier: notifier,
		Player:   player,
		Launch:   Launch,
		Logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Fire starts the actions of def. Errors are logged. Alarms fired after
// Interrupt are dropped.
func (f *Firer) Fire(def *klaxon.Definition, at time.Time) {
	d := *def
	f.mu.Lock()
	if f.ctx.Err() != nil {
		f.mu.Unlock()
		f.Logger.Warn("alarm dropped while stopping", "alarm", d.Name)
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()
	go func() {
		defer f.wg.Done()
		if err := f.fire(f.ctx, d, at); err != nil {
			f.Logger.Error("alarm action failed", "alarm", d.Name, "err", err)
		}
	}()
}

// Run fires the alarms published by clock until Interrupt is called.
func (f *Firer) Run(ctx context.Context, clock klaxon.Clock) error {
	f.sub = clock.Subscribe(ctx)
	go f.run(ctx, clock)
	return nil
}

// Interrupt stops ringing sounds and waits for running actions to return.
func (f *Firer) Interrupt() error {
	f.mu.Lock()
	f.cancel()
	f.mu.Unlock()
	f.Wait()
	return nil
}

// Wait waits for the actions started so far to finish.
func (f *Firer) Wait() {
	f.wg.Wait()
}

func (f *Firer) run(ctx context.Context, clock klaxon.Clock) {
	for {
		select {
		case <-ctx.Done():
			f.sub.Close()
			return

		case <-f.ctx.Done():
			f.sub.Close()
			return

		case alarm, ok := <-f.sub.C():
			if !ok {
				f.sub = clock.Subscribe(ctx)
				continue
			}
			f.Fire(&alarm.Definition, alarm.At)
		}
	}
}

func (f *Firer) fire(ctx context.Context, def klaxon.Definition, at time.Time) error {
	var errs *multierror.Error
	a := def.Action

	if a.ExecProgram {
		if err := f.Launch(a.ExecName, a.ExecParams); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("run %s: %w", a.ExecName, err))
		}
	}

	var closed <-chan struct{}
	shown := false
	if a.ShowWindow {
		c, err := f.Notifier.Notify(ctx, at.Format(notifyTimeLayout), def.Name)
		switch {
		case errors.Is(err, ErrNotShown):
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("notify: %w", err))
		default:
			closed, shown = c, true
		}
	}

	if a.PlaySound {
		if err := f.ring(ctx, a.SoundFile, shown, closed); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("play %s: %w", a.SoundFile, err))
		}
	}
	return errs.ErrorOrNil()
}

// ring plays file once, or keeps playing it while a notification is shown.
// A notification whose dismissal can't be observed (closed is nil) rings for
// RingLimit, or once without a limit.
func (f *Firer) ring(ctx context.Context, file string, shown bool, closed <-chan struct{}) error {
	loop := shown && (closed != nil || f.RingLimit > 0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if loop && f.RingLimit > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.RingLimit)
		defer cancel()
	}
	if closed != nil {
		go func() {
			select {
			case <-closed:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	for {
		err := f.Player.Play(ctx, file)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil || !loop {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(loopGap):
		}
	}
}

const loopGap = 200 * time.Millisecond
