package klaxon

import "time"

// TruncateMinute drops the seconds and sub-seconds of t, keeping its location.
func TruncateMinute(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// NextDue computes when def is due next, starting from ref.
//
// Comparisons are made against now truncated to the minute. In inclusive mode
// a ref that is not before now is accepted as is; otherwise ref is advanced
// along def's recurrence rule. Single-shot definitions are always due at ref.
// Degenerate definitions (an interval under a minute, a weekly alarm without
// days) return an ErrInvalid error instead of looping.
func NextDue(def *Definition, ref, now time.Time, inclusive bool) (time.Time, error) {
	ref, now = TruncateMinute(ref), TruncateMinute(now)
	switch def.Type {
	case SingleShot:
		return ref, nil
	case Interval:
		return nextInterval(def.Interval, ref, now, inclusive)
	case Weekly:
		return nextWeekly(def.Days, ref, now, inclusive)
	}
	return time.Time{}, Errorf(ErrInvalid, "unknown alarm type %d", int(def.Type))
}

// nextInterval returns the first ref+k*every not before now (inclusive, k>=0)
// or after now (k>=1).
func nextInterval(every time.Duration, ref, now time.Time, inclusive bool) (time.Time, error) {
	every = every.Truncate(time.Minute)
	if every <= 0 {
		return time.Time{}, Errorf(ErrInvalid, "interval must be at least one minute")
	}
	if inclusive && !ref.Before(now) {
		return ref, nil
	}

	diff := now.Sub(ref)
	var k time.Duration
	switch {
	case diff < 0:
		k = 1
	case inclusive:
		k = diff / every
		if diff%every != 0 {
			k++
		}
	default:
		k = diff/every + 1
	}
	return ref.Add(k * every), nil
}

// nextWeekly keeps the time of day of ref and moves to the next enabled day,
// one to seven days ahead.
func nextWeekly(days Weekdays, ref, now time.Time, inclusive bool) (time.Time, error) {
	if days.Empty() {
		return time.Time{}, Errorf(ErrInvalid, "weekly alarm needs at least one day")
	}
	if inclusive && days.Has(ref.Weekday()) && !ref.Before(now) {
		return ref, nil
	}
	for n := 1; n <= 7; n++ {
		next := ref.AddDate(0, 0, n)
		if days.Has(next.Weekday()) {
			return next, nil
		}
	}
	panic("unreachable")
}
