// Package console renders client events as styled terminal lines and reads
// user input.
package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"linechat/internal/client/events"

	"github.com/charmbracelet/lipgloss"
)

// Version can be set at build time
var Version = "dev"

type styles struct {
	title  lipgloss.Style
	notice lipgloss.Style
	err    lipgloss.Style
	user   lipgloss.Style
	self   lipgloss.Style
	ai     lipgloss.Style
	room   lipgloss.Style
	aiRoom lipgloss.Style
	status lipgloss.Style
	subtle lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		notice: r.NewStyle().Foreground(lipgloss.Color("245")),
		err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		user:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		self:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		ai:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		room:   r.NewStyle().Foreground(lipgloss.Color("252")),
		aiRoom: r.NewStyle().Foreground(lipgloss.Color("205")),
		status: r.NewStyle().Foreground(lipgloss.Color("220")),
		subtle: r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Printer writes one styled line per event.
type Printer struct {
	w      io.Writer
	styles styles

	user string
	room string
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: newStyles(lipgloss.NewRenderer(w))}
}

// Banner prints the greeting shown at startup.
func (p *Printer) Banner(addr string) {
	fmt.Fprintln(p.w, p.styles.title.Render("linechat "+Version)+" "+p.styles.subtle.Render(addr))
	fmt.Fprintln(p.w, p.styles.subtle.Render("Type /help for commands"))
}

// Run prints events until sub is closed.
func (p *Printer) Run(sub <-chan events.Event) {
	for event := range sub {
		if line := p.Render(event); line != "" {
			fmt.Fprintln(p.w, line)
		}
	}
}

// Render formats one event, or returns "" for events with nothing to show.
func (p *Printer) Render(event events.Event) string {
	switch event.Type {
	case events.EventConnecting:
		return p.styles.status.Render("Connecting...")

	case events.EventConnected:
		if data, ok := event.Data.(events.ConnectedData); ok && data.ServerAddr != "" {
			return p.styles.status.Render("Connected to " + data.ServerAddr)
		}
		return p.styles.status.Render("Connected")

	case events.EventDisconnected:
		return p.styles.status.Render("Disconnected")

	case events.EventReconnecting:
		return p.styles.status.Render("Connection lost, reconnecting...")

	case events.EventStateChanged:
		if data, ok := event.Data.(events.StateData); ok {
			p.user = data.User
			p.room = data.Room
		}

	case events.EventMessage:
		if data, ok := event.Data.(events.MessageData); ok {
			return p.renderMessage(data, event.Timestamp)
		}

	case events.EventRooms:
		if data, ok := event.Data.(events.RoomsData); ok {
			return p.renderRooms(data)
		}

	case events.EventNotice:
		if text, ok := event.Data.(string); ok {
			return p.styles.notice.Render(text)
		}

	case events.EventError:
		if data, ok := event.Data.(events.ErrorData); ok {
			return p.styles.err.Render(ErrorText(data))
		}
	}
	return ""
}

func (p *Printer) renderMessage(m events.MessageData, at time.Time) string {
	name := p.styles.user
	switch {
	case m.User == "ai":
		name = p.styles.ai
	case m.User == p.user:
		name = p.styles.self
	}
	stamp := p.styles.subtle.Render(at.Format("15:04"))
	return fmt.Sprintf("%s %s %s", stamp, name.Render(m.User+":"), m.Text)
}

func (p *Printer) renderRooms(data events.RoomsData) string {
	if len(data.Rooms) == 0 {
		return p.styles.notice.Render("No rooms yet")
	}
	names := make([]string, 0, len(data.Rooms))
	for _, r := range data.Rooms {
		if r.AI {
			names = append(names, p.styles.aiRoom.Render(r.Name+"*"))
		} else {
			names = append(names, p.styles.room.Render(r.Name))
		}
	}
	return p.styles.notice.Render("Rooms: ") + strings.Join(names, ", ")
}

// ErrorText joins an error's context and cause.
func ErrorText(data events.ErrorData) string {
	switch {
	case data.Error == nil:
		return data.Context
	case data.Context == "":
		return data.Error.Error()
	}
	return fmt.Sprintf("%s: %v", data.Context, data.Error)
}
