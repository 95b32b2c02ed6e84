package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ErrNotShown is returned by a Notifier that deliberately shows nothing.
var ErrNotShown = errors.New("notification not shown")

// Notifier shows alarm notifications without waiting for the user.
type Notifier interface {
	// Notify shows a notification. The returned channel is closed when the
	// user dismisses it, or is nil when dismissal can't be observed.
	Notify(ctx context.Context, summary, body string) (<-chan struct{}, error)
}

// NopNotifier shows nothing. Alarms ring as if they had no window.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, summary, body string) (<-chan struct{}, error) {
	return nil, ErrNotShown
}

// TerminalNotifier prints a boxed notification, for sessions without a
// notification daemon.
type TerminalNotifier struct {
	mu    sync.Mutex
	w     io.Writer
	style lipgloss.Style
}

func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{
		w: w,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 2).
			Width(32).
			Align(lipgloss.Center),
	}
}

func (n *TerminalNotifier) Notify(ctx context.Context, summary, body string) (<-chan struct{}, error) {
	title := lipgloss.NewStyle().Bold(true).Render(summary)
	box := n.style.Render(lipgloss.JoinVertical(lipgloss.Center, title, body))

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintln(n.w, box); err != nil {
		return nil, err
	}
	return nil, nil
}
