// Package render draws a page snapshot as terminal text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/greenstack/greenstack/internal/page"
)

// ANSI sequences.
const (
	reset = "\x1b[0m"
	dim   = "\x1b[2m"
	bold  = "\x1b[1m"
	clear = "\x1b[H\x1b[2J"
)

// palette maps the page's CSS color variables to ANSI colors.
var palette = map[string]string{
	"--primary-green":  "\x1b[32m",
	"--secondary-blue": "\x1b[34m",
	"--text-secondary": "\x1b[90m",
}

// Options controls the output.
type Options struct {
	// Color enables ANSI styling.
	Color bool
	// Clear redraws from the top of the screen.
	Clear bool
}

var cards = []struct {
	id, title string
}{
	{page.Temperature, "Temperature"},
	{page.Humidity, "Humidity"},
	{page.SoilMoisture, "Soil moisture"},
}

// Render writes snap to w.
func Render(w io.Writer, snap page.Snapshot, opts Options) error {
	r := renderer{opts: opts}

	if opts.Clear {
		r.b.WriteString(clear)
	}

	icon, _ := snap.Element(page.ThemeIcon)
	theme := snap.Theme
	if theme == "" {
		theme = "unset"
	}
	r.line(r.style(bold, "GreenStack") + "  " + icon.Text + "  " + r.style(dim, "theme "+theme))
	r.line("")

	for _, c := range cards {
		el, ok := snap.Element(c.id)
		if !ok {
			continue
		}
		value := el.Text
		if el.Opacity < 1 {
			value = r.style(dim, value)
		}
		r.line(fmt.Sprintf("  %-14s %s", c.title, value))
	}
	r.line("")

	if pump, ok := snap.Element(page.PumpButton); ok {
		r.line("  " + r.button(pump))
	}

	if status, ok := snap.Element(page.WiFiStatusText); ok {
		r.line("")
		r.line("  WiFi: " + r.style(palette[status.Color], status.Text))
	}

	if modal, ok := snap.Element(page.WiFiModal); ok && modal.Display == page.DisplayBlock {
		r.modal(snap)
	}

	if n := len(snap.Alerts); n > 0 {
		r.line("")
		r.line("  ! " + snap.Alerts[n-1])
	}

	_, err := io.WriteString(w, r.b.String())
	return err
}

type renderer struct {
	b    strings.Builder
	opts Options
}

func (r *renderer) line(s string) {
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *renderer) style(code, s string) string {
	if !r.opts.Color || code == "" {
		return s
	}
	return code + s + reset
}

func (r *renderer) button(el page.Element) string {
	label := "[" + el.Label() + "]"
	if el.Disabled {
		return r.style(dim, label+" (disabled)")
	}
	return label
}

func (r *renderer) modal(snap page.Snapshot) {
	ssid, _ := snap.Element(page.SSIDInput)
	password, _ := snap.Element(page.PasswordInput)
	toggle, _ := snap.Element(page.PasswordToggle)

	shown := strings.Repeat("*", len([]rune(password.Value)))
	if password.InputType == page.InputText {
		shown = password.Value
	}

	r.line("")
	r.line("  +-- WiFi configuration")
	r.line("  | Network:  " + ssid.Value)
	r.line("  | Password: " + shown + " " + toggle.Text)
	if connect, ok := snap.Element(page.ConnectButton); ok {
		r.line("  | " + r.button(connect))
	}
	if ap, ok := snap.Element(page.APButton); ok {
		r.line("  | " + r.button(ap))
	}
	r.line("  +--")
}
