package mem

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bsid.es/klaxon"
)

const (
	defaultPeriod     = time.Second
	defaultSyncPeriod = 2 * time.Second
	subBufferSize     = 16
)

// Clock drives a Scheduler with a periodic tick and publishes the alarms it
// fires to subscribers.
//
// The scheduler is owned by the goroutine started by Run. Reload and Entries
// hand their work over to it, so the schedule is never touched concurrently.
type Clock struct {
	Now        func() time.Time
	Period     time.Duration
	SyncPeriod time.Duration
	Logger     *slog.Logger
	FireMissed bool

	// Store, when set, is polled every SyncPeriod for changes to the alarm
	// list. Single-shot alarms consumed by a tick are disabled in it.
	Store klaxon.Store

	newDefs chan []*klaxon.Definition
	queries chan chan []Entry

	mu   sync.Mutex
	subs map[*ClockSubscription]struct{}

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewClock() *Clock {
	return &Clock{
		Now:        time.Now,
		Period:     defaultPeriod,
		SyncPeriod: defaultSyncPeriod,
		Logger:     slog.Default(),
		newDefs:    make(chan []*klaxon.Definition, 1),
		queries:    make(chan chan []Entry),
		subs:       make(map[*ClockSubscription]struct{}),
		cancel:     func() {},
		done:       make(chan struct{}),
	}
}

var _ klaxon.Clock = (*Clock)(nil)

func (c *Clock) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	sched := NewScheduler(klaxon.FirerFunc(c.publish))
	sched.Now = c.Now
	sched.Logger = c.Logger
	sched.FireMissed = c.FireMissed
	c.running = true
	go c.run(ctx, sched)
	return nil
}

// Interrupt stops the clock and waits for its loop to return.
func (c *Clock) Interrupt() error {
	c.cancel()
	if c.running {
		<-c.done
	}
	return nil
}

// Reload replaces the tracked alarm list. Pending reloads that haven't been
// applied yet are superseded.
func (c *Clock) Reload(defs ...*klaxon.Definition) {
	select {
	case <-c.newDefs:
	default:
	}
	c.newDefs <- defs
}

// Entries returns a snapshot of the schedule, or nil once the clock stopped.
func (c *Clock) Entries(ctx context.Context) []Entry {
	resp := make(chan []Entry, 1)
	select {
	case c.queries <- resp:
	case <-ctx.Done():
		return nil
	case <-c.done:
		return nil
	}
	return <-resp
}

func (c *Clock) Subscribe(ctx context.Context) klaxon.ClockSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &ClockSubscription{
		clock: c,
		c:     make(chan klaxon.ClockAlarm, subBufferSize),
	}
	c.subs[sub] = struct{}{}
	return sub
}

func (c *Clock) run(ctx context.Context, sched *Scheduler) {
	defer close(c.done)

	tracked := make(map[string]*klaxon.Definition)

	tick := time.NewTicker(c.Period)
	defer tick.Stop()

	var syncC <-chan time.Time
	if c.Store != nil {
		syncTick := time.NewTicker(c.SyncPeriod)
		defer syncTick.Stop()
		syncC = syncTick.C
		c.sync(ctx, sched, tracked)
	}

	for {
		select {
		case <-ctx.Done(): // Operation was canceled.
			return

		case defs := <-c.newDefs:
			reconcile(sched, tracked, defs)

		case resp := <-c.queries:
			resp <- sched.Entries()

		case <-syncC:
			c.sync(ctx, sched, tracked)

		case <-tick.C:
			for _, o := range sched.Tick(c.Now()) {
				if o.Consumed && c.Store != nil {
					if err := c.Store.SetEnabled(ctx, o.Definition.ID, false); err != nil {
						c.Logger.Error("disable single-shot alarm", "alarm", o.Definition.Name, "err", err)
					}
				}
			}
		}
	}
}

func (c *Clock) sync(ctx context.Context, sched *Scheduler, tracked map[string]*klaxon.Definition) {
	changed, err := c.Store.Changed(ctx)
	if err != nil {
		c.Logger.Error("check alarm store", "err", err)
		return
	}
	if !changed {
		return
	}
	defs, err := c.Store.Definitions(ctx)
	if err != nil {
		c.Logger.Error("load alarms", "err", err)
		if klaxon.ErrorCode(err) != klaxon.ErrInvalid {
			return
		}
	}
	reconcile(sched, tracked, defs)
	c.Logger.Debug("alarms reloaded", "count", len(defs), "scheduled", sched.Len())
}

// reconcile applies a new alarm list to the scheduler. Tracked definitions
// keep their identity: changes are copied into them. A definition whose
// schedule or action changed, or that was switched on, is rescheduled from
// now. Switching one off only stops it from firing.
func reconcile(sched *Scheduler, tracked map[string]*klaxon.Definition, defs []*klaxon.Definition) {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		seen[def.ID] = struct{}{}
		cur, ok := tracked[def.ID]
		if !ok {
			cur = new(klaxon.Definition)
			*cur = *def
			tracked[def.ID] = cur
			sched.Add(cur)
			continue
		}
		reschedule := configChanged(cur, def) || (!cur.Enabled && def.Enabled)
		*cur = *def
		if reschedule {
			sched.Update(cur)
		}
	}
	for id, def := range tracked {
		if _, ok := seen[id]; !ok {
			sched.Remove(def)
			delete(tracked, id)
		}
	}
}

func configChanged(a, b *klaxon.Definition) bool {
	x, y := *a, *b
	x.Enabled, y.Enabled = false, false
	return x != y
}

func (c *Clock) publish(def *klaxon.Definition, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alarm := klaxon.ClockAlarm{
		Definition: *def,
		At:         at,
	}
	for sub := range c.subs {
		select {
		case sub.c <- alarm:
		default:
			// Drop subscription. The holder subscribes again.
			c.Logger.Warn("dropping slow subscriber", "alarm", def.Name)
			sub.close()
		}
	}
}

var _ klaxon.ClockSubscription = (*ClockSubscription)(nil)

type ClockSubscription struct {
	clock *Clock
	c     chan klaxon.ClockAlarm
	once  sync.Once
}

func (sub *ClockSubscription) C() <-chan klaxon.ClockAlarm {
	return sub.c
}

func (sub *ClockSubscription) Close() error {
	sub.clock.mu.Lock()
	defer sub.clock.mu.Unlock()
	sub.close()
	return nil
}

func (sub *ClockSubscription) close() {
	sub.once.Do(func() {
		close(sub.c)
	})
	delete(sub.clock.subs, sub)
}
