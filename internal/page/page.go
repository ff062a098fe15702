// Package page holds the dashboard's page model: the named elements the
// dashboard writes readings and button states into, plus document-level
// state such as the theme and scroll lock.
package page

import (
	"sync"
)

// Element identifiers and selectors the dashboard binds to.
const (
	Temperature    = "temp"
	Humidity       = "humidity"
	SoilMoisture   = "soilmoisture"
	WiFiModal      = "wifi-modal"
	WiFiStatusIcon = "wifi-status-icon"
	WiFiStatusText = "wifi-status-text"
	SSIDInput      = "ssid"
	PasswordInput  = "password"
	PumpButton     = ".button-holder button"
	ConnectButton  = ".connect-button"
	APButton       = ".ap-button"
	PasswordToggle = ".toggle-password"
	ThemeIcon      = ".theme-icon"
)

// Display values.
const (
	DisplayBlock = "block"
	DisplayNone  = "none"
)

// Input types.
const (
	InputPassword = "password"
	InputText     = "text"
)

// Element is the renderable state of one page element.
type Element struct {
	ID string `json:"id"`

	// Text is the element's text content. For buttons it is the label
	// without its icon.
	Text string `json:"text"`

	// Icon is the icon shown in front of a button label, if any.
	Icon string `json:"icon,omitempty"`

	Disabled bool `json:"disabled"`

	// Color names the CSS variable the text is drawn with.
	Color string `json:"color,omitempty"`

	// Scale and Opacity carry the value-card transition.
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`

	Display   string `json:"display,omitempty"`
	InputType string `json:"inputType,omitempty"`
	Value     string `json:"value,omitempty"`
}

// Label returns the element's text with its icon prefix.
func (e Element) Label() string {
	if e.Icon == "" {
		return e.Text
	}
	return e.Icon + " " + e.Text
}

// Snapshot is a point-in-time copy of the page.
type Snapshot struct {
	Elements     map[string]Element `json:"elements"`
	Theme        string             `json:"theme,omitempty"`
	ScrollLocked bool               `json:"scrollLocked"`
	Alerts       []string           `json:"alerts,omitempty"`
	Reloads      int                `json:"reloads"`
}

// Element returns the element with the given id and whether it exists.
func (s Snapshot) Element(id string) (Element, bool) {
	el, ok := s.Elements[id]
	return el, ok
}

// Text returns the text of the element with the given id, or "" if absent.
func (s Snapshot) Text(id string) string {
	return s.Elements[id].Text
}

// Listener is notified after every change to the page.
type Listener func()

// Page is a thread-safe element store. Writes are last-write-wins: there is
// no ordering between writers beyond the order in which they take the lock.
type Page struct {
	mu           sync.RWMutex
	elements     map[string]*Element
	theme        string
	scrollLocked bool
	alerts       []string
	reloads      int

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New returns a page holding the initial dashboard markup.
func New() *Page {
	p := &Page{}
	p.elements = initialElements()
	return p
}

// Initial labels of the dashboard's controls.
const (
	PumpIdleIcon   = "💧"
	PumpIdleText   = "Water Plant"
	ConnectIdle    = "Connect"
	APIdle         = "Toggle AP Mode"
	PasswordHidden = "👁️"
	PasswordShown  = "🙈"
)

func initialElements() map[string]*Element {
	card := func(id string) *Element {
		return &Element{ID: id, Text: "--", Scale: 1, Opacity: 1}
	}
	plain := func(id, text string) *Element {
		return &Element{ID: id, Text: text, Scale: 1, Opacity: 1}
	}

	elements := []*Element{
		card(Temperature),
		card(Humidity),
		card(SoilMoisture),
		{ID: WiFiModal, Display: DisplayNone, Scale: 1, Opacity: 1},
		plain(WiFiStatusIcon, "📶"),
		plain(WiFiStatusText, "Checking..."),
		{ID: SSIDInput, InputType: InputText, Scale: 1, Opacity: 1},
		{ID: PasswordInput, InputType: InputPassword, Scale: 1, Opacity: 1},
		{ID: PumpButton, Icon: PumpIdleIcon, Text: PumpIdleText, Scale: 1, Opacity: 1},
		plain(ConnectButton, ConnectIdle),
		plain(APButton, APIdle),
		plain(PasswordToggle, PasswordHidden),
		plain(ThemeIcon, ""),
	}

	m := make(map[string]*Element, len(elements))
	for _, el := range elements {
		m[el.ID] = el
	}
	return m
}

// Get returns a copy of the element with the given id.
func (p *Page) Get(id string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	el, ok := p.elements[id]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// Update applies fn to the element with the given id. It returns false, and
// does not call fn, when the page has no such element.
func (p *Page) Update(id string, fn func(el *Element)) bool {
	p.mu.Lock()
	el, ok := p.elements[id]
	if ok {
		fn(el)
	}
	p.mu.Unlock()

	if ok {
		p.notify()
	}
	return ok
}

// SetText replaces an element's text.
func (p *Page) SetText(id, text string) bool {
	return p.Update(id, func(el *Element) { el.Text = text })
}

// SetLabel replaces a button's icon and text.
func (p *Page) SetLabel(id, icon, text string) bool {
	return p.Update(id, func(el *Element) {
		el.Icon = icon
		el.Text = text
	})
}

// SetValue sets an input's value.
func (p *Page) SetValue(id, value string) bool {
	return p.Update(id, func(el *Element) { el.Value = value })
}

// Value returns an input's value.
func (p *Page) Value(id string) string {
	el, _ := p.Get(id)
	return el.Value
}

// Theme returns the document theme attribute, "" when unset.
func (p *Page) Theme() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// SetTheme sets the document theme attribute.
func (p *Page) SetTheme(theme string) {
	p.mu.Lock()
	p.theme = theme
	p.mu.Unlock()
	p.notify()
}

// ScrollLocked reports whether page scrolling is disabled.
func (p *Page) ScrollLocked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scrollLocked
}

// SetScrollLocked disables or restores page scrolling.
func (p *Page) SetScrollLocked(locked bool) {
	p.mu.Lock()
	p.scrollLocked = locked
	p.mu.Unlock()
	p.notify()
}

// Alert records a message shown to the user.
func (p *Page) Alert(msg string) {
	p.mu.Lock()
	p.alerts = append(p.alerts, msg)
	p.mu.Unlock()
	p.notify()
}

// Alerts returns every alert raised since the page was created.
func (p *Page) Alerts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.alerts...)
}

// Reloads returns how many times the page has been reloaded.
func (p *Page) Reloads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reloads
}

// Reset restores the initial markup, as a browser does on reload. The
// theme attribute and scroll lock are cleared, the alert history is kept and
// the reload counter is incremented.
func (p *Page) Reset() {
	p.mu.Lock()
	p.elements = initialElements()
	p.theme = ""
	p.scrollLocked = false
	p.reloads++
	p.mu.Unlock()
	p.notify()
}

// Snapshot returns a deep copy of the page.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elements := make(map[string]Element, len(p.elements))
	for id, el := range p.elements {
		elements[id] = *el
	}
	return Snapshot{
		Elements:     elements,
		Theme:        p.theme,
		ScrollLocked: p.scrollLocked,
		Alerts:       append([]string(nil), p.alerts...),
		Reloads:      p.reloads,
	}
}

// Subscribe registers l to be called after every change.
func (p *Page) Subscribe(l Listener) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *Page) notify() {
	p.listenersMu.RLock()
	listeners := append([]Listener(nil), p.listeners...)
	p.listenersMu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
