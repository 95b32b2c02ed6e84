package mem

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"bsid.es/klaxon"
)

// Entry is a tracked definition and the minute it is due at.
type Entry struct {
	Definition *klaxon.Definition
	At         time.Time
}

// Outcome reports what a tick did with one due entry.
type Outcome struct {
	Definition *klaxon.Definition
	At         time.Time

	// Fired is set when the firer was invoked.
	Fired bool

	// Missed is set when the due minute passed between two ticks.
	Missed bool

	// Consumed is set when a single-shot entry was removed and disabled.
	Consumed bool
}

// Scheduler maps tracked definitions to their next due minute and fires them
// when a tick reaches it.
//
// Scheduler isn't safe for concurrent use. Definitions are tracked by
// pointer; callers must not mutate a tracked definition while a tick runs.
type Scheduler struct {
	Now    func() time.Time
	Logger *slog.Logger

	// FireMissed fires occurrences skipped while the process was suspended.
	// They are dropped otherwise.
	FireMissed bool

	firer   klaxon.Firer
	entries map[*klaxon.Definition]time.Time
	last    time.Time
}

func NewScheduler(firer klaxon.Firer) *Scheduler {
	return &Scheduler{
		Now:     time.Now,
		Logger:  slog.Default(),
		firer:   firer,
		entries: make(map[*klaxon.Definition]time.Time),
	}
}

// Add schedules def from today's start time, accepting a start time that is
// still ahead. A definition the calculator rejects is left untracked.
func (s *Scheduler) Add(def *klaxon.Definition) {
	now := s.Now()
	at, err := klaxon.NextDue(def, def.StartAt(now), now, true)
	if err != nil {
		delete(s.entries, def)
		s.Logger.Warn("alarm not scheduled", "alarm", def.Name, "err", err)
		return
	}
	s.entries[def] = at
}

func (s *Scheduler) Remove(def *klaxon.Definition) {
	delete(s.entries, def)
}

// Update reschedules def from now, after its configuration changed or it was
// enabled again.
func (s *Scheduler) Update(def *klaxon.Definition) {
	s.Remove(def)
	s.Add(def)
}

func (s *Scheduler) Due(def *klaxon.Definition) (time.Time, bool) {
	at, ok := s.entries[def]
	return at, ok
}

func (s *Scheduler) Len() int {
	return len(s.entries)
}

// Entries returns the schedule sorted by due time.
func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for def, at := range s.entries {
		out = append(out, Entry{def, at})
	}
	sortEntries(out)
	return out
}

type dueEntry struct {
	Entry
	missed bool
}

// Tick fires and advances every entry due at now's minute.
//
// Due entries are collected before any of them is fired, so firing and
// rescheduling can't change which entries this tick handles. Entries whose
// minute fell between the previous tick and this one count as missed.
func (s *Scheduler) Tick(now time.Time) []Outcome {
	now = klaxon.TruncateMinute(now)

	var due []dueEntry
	for def, at := range s.entries {
		switch {
		case at.Equal(now):
			due = append(due, dueEntry{Entry{def, at}, false})
		case s.missed(at, now):
			due = append(due, dueEntry{Entry{def, at}, true})
		}
	}
	s.last = now
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		return entryLess(due[i].Entry, due[j].Entry)
	})

	out := make([]Outcome, 0, len(due))
	for _, e := range due {
		out = append(out, s.advance(e, now))
	}
	return out
}

func (s *Scheduler) missed(at, now time.Time) bool {
	return !s.last.IsZero() && at.After(s.last) && at.Before(now)
}

func (s *Scheduler) advance(e dueEntry, now time.Time) Outcome {
	def := e.Definition
	o := Outcome{Definition: def, At: e.At, Missed: e.missed}

	if def.Enabled && (!e.missed || s.FireMissed) {
		o.Fired = s.fire(def, e.At)
	}
	if e.missed {
		s.Logger.Warn("alarm missed", "alarm", def.Name, "due", e.At, "fired", o.Fired)
	}

	if def.Type == klaxon.SingleShot {
		delete(s.entries, def)
		def.Enabled = false
		o.Consumed = true
		return o
	}

	next, err := klaxon.NextDue(def, e.At, now, false)
	if err != nil {
		delete(s.entries, def)
		s.Logger.Warn("alarm dropped from schedule", "alarm", def.Name, "err", err)
		return o
	}
	if !next.After(now) {
		// A weekly alarm can't catch up more than a week in one step, and
		// this tick no longer handles now's minute.
		next, err = klaxon.NextDue(def, def.StartAt(now), now.Add(time.Minute), true)
		if err != nil {
			delete(s.entries, def)
			return o
		}
	}
	s.entries[def] = next
	return o
}

// fire calls the firer, containing any panic to the entry being fired.
func (s *Scheduler) fire(def *klaxon.Definition, at time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("alarm action panicked", "alarm", def.Name, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	s.firer.Fire(def, at)
	return true
}

func entryLess(a, b Entry) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	if a.Definition.Name != b.Definition.Name {
		return a.Definition.Name < b.Definition.Name
	}
	return a.Definition.ID < b.Definition.ID
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entryLess(entries[i], entries[j])
	})
}
