package klaxon

import (
	"context"
	"time"
)

// Firer performs the action of an alarm that became due.
//
// Fire must not block: a scheduler calls it from its tick loop. Failures are
// the firer's business and are never reported back.
type Firer interface {
	Fire(def *Definition, at time.Time)
}

// FirerFunc adapts a function to the Firer interface.
type FirerFunc func(def *Definition, at time.Time)

func (f FirerFunc) Fire(def *Definition, at time.Time) { f(def, at) }

type Clock interface {
	Reload(...*Definition)
	Subscribe(context.Context) ClockSubscription
}

type ClockSubscription interface {
	// C returns the channel alarms are delivered on.
	//
	// If the subscriber can't keep up with the alarms coming from this channel,
	// Clock unsubscribes it and closes its channel; in this case, the
	// subscription holder will need to subscribe again.
	C() <-chan ClockAlarm

	// Close closes the subscription.
	Close() error
}

// ClockAlarm is delivered to subscribers when an enabled alarm fires.
// Definition is a copy taken at firing time.
type ClockAlarm struct {
	Definition Definition `json:"definition"`
	At         time.Time  `json:"at"`
}

// Store is the durable side of the alarm list.
type Store interface {
	// Definitions returns every saved definition in list order. Entries that
	// can't be read are left out and reported with an ErrInvalid error next
	// to the ones that could.
	Definitions(ctx context.Context) ([]*Definition, error)

	// Changed reports whether the saved list may have changed since the
	// previous call. The first call reports true.
	Changed(ctx context.Context) (bool, error)

	// SetEnabled updates the enabled flag of a saved definition.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
