package klaxon

import (
	"fmt"
	"strings"
	"time"
)

// Type selects the recurrence rule of a definition.
type Type int

const (
	SingleShot Type = iota
	Interval
	Weekly
)

var typeNames = [...]string{
	SingleShot: "single",
	Interval:   "interval",
	Weekly:     "weekly",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(t), nil
		}
	}
	return 0, Errorf(ErrInvalid, "unknown alarm type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

const timeOfDayLayout = "15:04"

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, Errorf(ErrInvalid, "invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay{t.Hour(), t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Weekdays is a set of days of the week, one bit per time.Weekday.
type Weekdays uint8

// AllWeekdays has every day set.
const AllWeekdays Weekdays = 1<<7 - 1

var weekdayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// NewWeekdays returns the set holding days.
func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w = w.With(d)
	}
	return w
}

// ParseWeekdays parses a comma-separated list of day names, such as
// "mon,wed,fri". Full English names are accepted too.
func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	for _, field := range strings.Split(s, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		found := false
		for d, name := range weekdayNames {
			if strings.HasPrefix(field, name) && strings.HasPrefix(strings.ToLower(time.Weekday(d).String()), field) {
				w = w.With(time.Weekday(d))
				found = true
				break
			}
		}
		if !found {
			return 0, Errorf(ErrInvalid, "unknown weekday %q", field)
		}
	}
	return w, nil
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) With(d time.Weekday) Weekdays {
	return w | 1<<uint(d)
}

func (w Weekdays) Without(d time.Weekday) Weekdays {
	return w &^ (1 << uint(d))
}

func (w Weekdays) Empty() bool {
	return w&AllWeekdays == 0
}

// String lists the set from Monday to Sunday, the order the alarm list shows.
func (w Weekdays) String() string {
	names := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		if w.Has(d) {
			names = append(names, weekdayNames[d])
		}
	}
	return strings.Join(names, ",")
}

func (w Weekdays) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Weekdays) UnmarshalText(b []byte) error {
	v, err := ParseWeekdays(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Action describes what happens when an alarm fires.
type Action struct {
	PlaySound   bool   `json:"play_sound"`
	SoundFile   string `json:"sound_file"`
	ShowWindow  bool   `json:"show_window"`
	ExecProgram bool   `json:"exec_program"`
	ExecName    string `json:"exec_name"`
	ExecParams  string `json:"exec_params"`
}

// Definition describes one alarm.
//
// A scheduler tracks definitions by pointer. ID only identifies the
// definition in storage and on the command line.
type Definition struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     Type          `json:"type"`
	Start    TimeOfDay     `json:"start"`
	Interval time.Duration `json:"interval"`
	Days     Weekdays      `json:"days"`
	Enabled  bool          `json:"enabled"`
	Action   Action        `json:"action"`
}

// Normalize derives the alarm type the way the configuration dialog does:
// an interval alarm stays one, otherwise a definition with days is weekly and
// one without is single-shot. The interval is truncated to whole minutes.
func (d *Definition) Normalize() {
	d.Interval = d.Interval.Truncate(time.Minute)
	if d.Type == Interval {
		return
	}
	if d.Days.Empty() {
		d.Type = SingleShot
	} else {
		d.Type = Weekly
	}
}

func (d *Definition) Validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return Errorf(ErrInvalid, "name is required")
	case !d.Start.valid():
		return Errorf(ErrInvalid, "start time %s out of range", d.Start)
	case d.Type < SingleShot || d.Type > Weekly:
		return Errorf(ErrInvalid, "unknown alarm type %d", int(d.Type))
	case d.Type == Interval && d.Interval < time.Minute:
		return Errorf(ErrInvalid, "interval must be at least one minute")
	case d.Type == Weekly && d.Days.Empty():
		return Errorf(ErrInvalid, "weekly alarm needs at least one day")
	case d.Action.ExecProgram && strings.TrimSpace(d.Action.ExecName) == "":
		return Errorf(ErrInvalid, "program name is required to run a program")
	case d.Action.PlaySound && strings.TrimSpace(d.Action.SoundFile) == "":
		return Errorf(ErrInvalid, "sound file is required to play a sound")
	}
	return nil
}

// StartAt returns the start time on day's date, in day's location.
func (d *Definition) StartAt(day time.Time) time.Time {
	y, m, dd := day.Date()
	return time.Date(y, m, dd, d.Start.Hour, d.Start.Minute, 0, 0, day.Location())
}

// Schedule summarizes when the alarm rings, e.g. "08:00 every 1h30m".
func (d *Definition) Schedule() string {
	switch d.Type {
	case Interval:
		return d.Start.String() + " every " + shortDuration(d.Interval)
	case Weekly:
		return d.Start.String() + " on " + d.Days.String()
	default:
		return d.Start.String() + " once"
	}
}

func shortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
