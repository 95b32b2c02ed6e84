package desktop

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"

	// urgencyCritical keeps the notification on screen until dismissed.
	urgencyCritical = byte(2)
)

// DBusNotifier sends notifications to the freedesktop notification daemon
// on the session bus.
type DBusNotifier struct {
	AppName string
	Icon    string

	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	closes  *closeTracker
}

func NewDBusNotifier(appName string) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notifyPath),
		dbus.WithMatchInterface(notifyInterface),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("watch notifications: %w", err)
	}

	n := &DBusNotifier{
		AppName: appName,
		Icon:    "alarm-symbolic",
		conn:    conn,
		obj:     conn.Object(notifyDest, notifyPath),
		signals: make(chan *dbus.Signal, 16),
		closes:  newCloseTracker(),
	}
	conn.Signal(n.signals)
	go n.dispatch()
	return n, nil
}

func (n *DBusNotifier) Notify(ctx context.Context, summary, body string) (<-chan struct{}, error) {
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyCritical),
		"category": dbus.MakeVariant("x-klaxon.alarm"),
	}
	call := n.obj.CallWithContext(ctx, notifyInterface+".Notify", 0,
		n.AppName, uint32(0), n.Icon, summary, body, []string{}, hints, int32(0))
	var id uint32
	if err := call.Store(&id); err != nil {
		return nil, err
	}
	return n.closes.wait(id), nil
}

func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}

// dispatch closes the channel of every notification the daemon reports as
// closed. It returns when the connection closes.
func (n *DBusNotifier) dispatch() {
	for sig := range n.signals {
		if sig.Name != notifyInterface+".NotificationClosed" || len(sig.Body) == 0 {
			continue
		}
		if id, ok := sig.Body[0].(uint32); ok {
			n.closes.closed(id)
		}
	}
	n.closes.closeAll()
}

// earlyCloses is how many unclaimed NotificationClosed ids are remembered.
// The signal can be handled before the Notify reply that carries the id.
const earlyCloses = 32

// closeTracker pairs NotificationClosed signals with the notifications
// waiting for them.
type closeTracker struct {
	mu      sync.Mutex
	waiting map[uint32]chan struct{}
	// early is a ring of closed ids nobody waited for yet. Zero is never a
	// notification id.
	early [earlyCloses]uint32
	next  int
	done  bool
}

func newCloseTracker() *closeTracker {
	return &closeTracker{waiting: make(map[uint32]chan struct{})}
}

// wait returns a channel closed once notification id is closed.
func (t *closeTracker) wait(id uint32) <-chan struct{} {
	ch := make(chan struct{})
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || t.takeEarly(id) {
		close(ch)
		return ch
	}
	t.waiting[id] = ch
	return ch
}

func (t *closeTracker) closed(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.waiting[id]; ok {
		close(ch)
		delete(t.waiting, id)
		return
	}
	t.early[t.next] = id
	t.next = (t.next + 1) % len(t.early)
}

func (t *closeTracker) takeEarly(id uint32) bool {
	if id == 0 {
		return false
	}
	for i, e := range t.early {
		if e == id {
			t.early[i] = 0
			return true
		}
	}
	return false
}

// closeAll releases every waiter; later waits return closed channels.
func (t *closeTracker) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	for id, ch := range t.waiting {
		close(ch)
		delete(t.waiting, id)
	}
}
