package main

import (
	"context"
	"fmt"
	"strings"

	"bsid.es/klaxon"
	"bsid.es/klaxon/sqlite"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli"
)

func definitionFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "name, n",
			Usage: "alarm name, shown in the notification",
		},
		cli.StringFlag{
			Name:  "at, t",
			Usage: "start time as HH:MM",
		},
		cli.DurationFlag{
			Name:  "every, e",
			Usage: "repeat interval from the start time, e.g. 1h30m (0 makes a one-time alarm, or a weekly one with --days)",
		},
		cli.StringFlag{
			Name:  "days",
			Usage: "ring weekly on these days, e.g. mon,wed,fri",
		},
		cli.StringFlag{
			Name:  "sound, s",
			Usage: "sound file to play (empty for silence)",
		},
		cli.BoolFlag{
			Name:  "no-window",
			Usage: "don't show a notification",
		},
		cli.StringFlag{
			Name:  "exec, x",
			Usage: "program to run (empty for none)",
		},
		cli.StringFlag{
			Name:  "args",
			Usage: "command line parameters for --exec",
		},
	}
}

var disabledFlag = cli.BoolFlag{
	Name:  "disabled",
	Usage: "create the alarm switched off",
}

func (a *app) add(c *cli.Context) error {
	if !c.IsSet("at") {
		return klaxon.Errorf(klaxon.ErrInvalid, "--at is required")
	}
	def := &klaxon.Definition{
		ID:      uuid.NewString(),
		Type:    klaxon.SingleShot,
		Enabled: !c.Bool("disabled"),
		Action:  klaxon.Action{ShowWindow: true},
	}
	if err := applyFlags(c, def); err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(context.Background(), def); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "added %s %q %s\n", shortID(def.ID), def.Name, def.Schedule())
	return nil
}

func (a *app) modify(c *cli.Context) error {
	if c.NArg() != 1 {
		return klaxon.Errorf(klaxon.ErrInvalid, "expected one alarm id")
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id, err := a.resolveID(ctx, store, c.Args().First())
	if err != nil {
		return err
	}
	def, err := store.Definition(ctx, id)
	if err != nil {
		return err
	}
	if err := applyFlags(c, def); err != nil {
		return err
	}
	if err := store.Put(ctx, def); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "modified %s %q %s\n", shortID(def.ID), def.Name, def.Schedule())
	return nil
}

func (a *app) remove(c *cli.Context) error {
	return a.eachAlarm(c, "removed", func(ctx context.Context, store *sqlite.Store, id string) error {
		return store.Delete(ctx, id)
	})
}

func (a *app) setEnabled(enabled bool) func(*cli.Context) error {
	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return func(c *cli.Context) error {
		return a.eachAlarm(c, verb, func(ctx context.Context, store *sqlite.Store, id string) error {
			return store.SetEnabled(ctx, id, enabled)
		})
	}
}

// eachAlarm applies fn to every alarm named on the command line. Failures
// don't stop the remaining alarms.
func (a *app) eachAlarm(c *cli.Context, verb string, fn func(context.Context, *sqlite.Store, string) error) error {
	if c.NArg() == 0 {
		return klaxon.Errorf(klaxon.ErrInvalid, "expected at least one alarm id")
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var errs *multierror.Error
	for _, arg := range c.Args() {
		id, err := a.resolveID(ctx, store, arg)
		if err == nil {
			err = fn(ctx, store, id)
		}
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s %s\n", verb, shortID(id))
	}
	return errs.ErrorOrNil()
}

// applyFlags copies the flags given on the command line into def, then
// normalizes and validates it.
func applyFlags(c *cli.Context, def *klaxon.Definition) error {
	if c.IsSet("name") {
		def.Name = c.String("name")
	}
	if c.IsSet("at") {
		start, err := klaxon.ParseTimeOfDay(c.String("at"))
		if err != nil {
			return err
		}
		def.Start = start
	}
	if c.IsSet("every") {
		if every := c.Duration("every"); every > 0 {
			def.Type, def.Interval = klaxon.Interval, every
		} else {
			def.Type, def.Interval = klaxon.SingleShot, 0
			if !c.IsSet("days") {
				def.Days = 0
			}
		}
	}
	if c.IsSet("days") {
		days, err := klaxon.ParseWeekdays(c.String("days"))
		if err != nil {
			return err
		}
		def.Days = days
		if !c.IsSet("every") || c.Duration("every") <= 0 {
			def.Type = klaxon.Weekly
		}
	}
	if c.IsSet("sound") {
		def.Action.SoundFile = c.String("sound")
		def.Action.PlaySound = def.Action.SoundFile != ""
	}
	if c.IsSet("no-window") {
		def.Action.ShowWindow = !c.Bool("no-window")
	}
	if c.IsSet("exec") {
		def.Action.ExecName = c.String("exec")
		def.Action.ExecProgram = def.Action.ExecName != ""
	}
	if c.IsSet("args") {
		def.Action.ExecParams = c.String("args")
	}
	def.Normalize()
	return def.Validate()
}

// resolveID accepts a full alarm id or an unambiguous prefix of one. An id
// matching no readable alarm is passed on as is, so the store decides.
func (a *app) resolveID(ctx context.Context, store *sqlite.Store, arg string) (string, error) {
	defs, err := a.definitions(ctx, store)
	if err != nil {
		return "", err
	}
	var found []string
	for _, def := range defs {
		if def.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(def.ID, arg) {
			found = append(found, def.ID)
		}
	}
	switch len(found) {
	case 0:
		return arg, nil
	case 1:
		return found[0], nil
	}
	return "", klaxon.Errorf(klaxon.ErrInvalid, "id %q matches %d alarms", arg, len(found))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
