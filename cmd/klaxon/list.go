package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bsid.es/klaxon"
	"bsid.es/klaxon/mem"
	"bsid.es/klaxon/sqlite"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
)

const dueLayout = "Mon 15:04"

// schedule places defs on a scheduler the way the daemon does at startup.
func (a *app) schedule(defs []*klaxon.Definition) *mem.Scheduler {
	sched := mem.NewScheduler(klaxon.FirerFunc(func(*klaxon.Definition, time.Time) {}))
	sched.Now = a.now
	sched.Logger = a.logger
	for _, def := range defs {
		sched.Add(def)
	}
	return sched
}

func (a *app) loadDefinitions() ([]*klaxon.Definition, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return a.definitions(context.Background(), store)
}

// definitions lists the saved alarms, warning about rows that can't be read.
func (a *app) definitions(ctx context.Context, store *sqlite.Store) ([]*klaxon.Definition, error) {
	defs, err := store.Definitions(ctx)
	if err != nil && klaxon.ErrorCode(err) == klaxon.ErrInvalid {
		a.logger.Warn("skipping unreadable alarms", "err", err)
		err = nil
	}
	return defs, err
}

type listItem struct {
	*klaxon.Definition
	Next *time.Time `json:"next,omitempty"`
}

func (a *app) list(c *cli.Context) error {
	defs, err := a.loadDefinitions()
	if err != nil {
		return err
	}
	sched := a.schedule(defs)

	if c.Bool("json") {
		items := make([]listItem, 0, len(defs))
		for _, def := range defs {
			item := listItem{Definition: def}
			if at, ok := a.upcoming(sched, def); ok {
				item.Next = &at
			}
			items = append(items, item)
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(defs) == 0 {
		fmt.Fprintln(a.stdout, "no alarms")
		return nil
	}

	rows := make([][]string, 0, len(defs))
	for _, def := range defs {
		next := "-"
		if at, ok := a.upcoming(sched, def); ok {
			next = a.describeDue(at)
		}
		rows = append(rows, []string{
			shortID(def.ID),
			def.Name,
			def.Schedule(),
			strconv.FormatBool(def.Enabled),
			actions(def.Action),
			next,
		})
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	off := cell.Faint(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "NAME", "SCHEDULE", "ENABLED", "ACTIONS", "NEXT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case row >= 0 && row < len(defs) && !defs[row].Enabled:
				return off
			}
			return cell
		})
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func (a *app) next(c *cli.Context) error {
	defs, err := a.loadDefinitions()
	if err != nil {
		return err
	}
	sched := a.schedule(defs)
	for _, e := range sched.Entries() {
		if at, ok := a.upcoming(sched, e.Definition); ok {
			fmt.Fprintf(a.stdout, "%s %q %s\n", shortID(e.Definition.ID), e.Definition.Name, a.describeDue(at))
			return nil
		}
	}
	fmt.Fprintln(a.stdout, "no alarm is due")
	return nil
}

// upcoming returns when def rings next. Disabled alarms and single-shot alarms
// whose time already passed today never ring.
func (a *app) upcoming(sched *mem.Scheduler, def *klaxon.Definition) (time.Time, bool) {
	if !def.Enabled {
		return time.Time{}, false
	}
	at, ok := sched.Due(def)
	if !ok || at.Before(klaxon.TruncateMinute(a.now())) {
		return time.Time{}, false
	}
	return at, true
}

func (a *app) describeDue(at time.Time) string {
	return at.Format(dueLayout) + " (" + humanize.RelTime(at, a.now(), "ago", "from now") + ")"
}

func actions(act klaxon.Action) string {
	var s string
	add := func(v string) {
		if s != "" {
			s += ","
		}
		s += v
	}
	if act.PlaySound {
		add("sound")
	}
	if act.ShowWindow {
		add("window")
	}
	if act.ExecProgram {
		add("exec")
	}
	if s == "" {
		return "-"
	}
	return s
}
