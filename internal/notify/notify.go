// Package notify delivers short, transient user-facing messages.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Message is one notification.
type Message struct {
	Text  string
	Level Level
}

// Notifier shows messages to the user. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(Message)
}

// Info sends an informational message to n.
func Info(n Notifier, text string) { send(n, LevelInfo, text) }

// Warn sends a warning to n.
func Warn(n Notifier, text string) { send(n, LevelWarn, text) }

// Error sends an error message to n.
func Error(n Notifier, text string) { send(n, LevelError, text) }

func send(n Notifier, level Level, text string) {
	if n == nil {
		return
	}
	n.Notify(Message{Level: level, Text: text})
}

// Terminal prints each message as a single styled line.
type Terminal struct {
	w      io.Writer
	mu     sync.Mutex
	styles map[Level]lipgloss.Style
}

// NewTerminal returns a Terminal notifier writing to w, styled for a dark or
// light background.
func NewTerminal(w io.Writer, dark bool) *Terminal {
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	fg := lipgloss.Color("#111827")
	if dark {
		fg = lipgloss.Color("#F9FAFB")
	}
	return &Terminal{
		w: w,
		styles: map[Level]lipgloss.Style{
			LevelInfo:  base.Foreground(fg).Background(lipgloss.Color("#10B981")),
			LevelWarn:  base.Foreground(lipgloss.Color("#111827")).Background(lipgloss.Color("#E5A00D")),
			LevelError: base.Foreground(lipgloss.Color("#F9FAFB")).Background(lipgloss.Color("#EF4444")),
		},
	}
}

// Notify implements Notifier.
func (t *Terminal) Notify(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, t.styles[m.Level].Render(m.Text))
}

// Recorder keeps every message it receives. Useful in tests and for
// callers that want to inspect what would have been shown.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify implements Notifier.
func (r *Recorder) Notify(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Texts returns the recorded message texts in order.
func (r *Recorder) Texts() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
