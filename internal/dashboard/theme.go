package dashboard

import (
	"fmt"
	"strings"

	"github.com/greenstack/greenstack/internal/page"
)

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme icons.
const (
	IconDark  = "☀️"
	IconLight = "🌙"
)

const (
	themeCookie = "theme"

	// themeCookieAttrs keeps the preference for as long as a browser can.
	themeCookieAttrs = "expires=Fri, 31 Dec 9999 23:59:59 GMT; path=/"
)

// GetThemeFromCookie returns the saved theme, or dark when no valid theme
// is saved. Pairs are read one by one so a malformed foreign cookie does
// not hide the theme.
func (d *Dashboard) GetThemeFromCookie() string {
	for _, pair := range strings.Split(d.jar.Cookie(), ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(name) != themeCookie {
			continue
		}
		switch v := strings.Trim(strings.TrimSpace(value), `"`); v {
		case ThemeDark, ThemeLight:
			return v
		default:
			return ThemeDark
		}
	}
	return ThemeDark
}

// SetTheme applies theme to the document, updates every theme icon and
// saves the choice in the cookie.
func (d *Dashboard) SetTheme(theme string) error {
	d.page.SetTheme(theme)

	icon := IconLight
	if theme == ThemeDark {
		icon = IconDark
	}
	d.page.SetText(page.ThemeIcon, icon)

	if err := d.jar.SetCookie(fmt.Sprintf("%s=%s; %s", themeCookie, theme, themeCookieAttrs)); err != nil {
		d.logger.Error().Err(err).Str("theme", theme).Msg("saving theme cookie")
		return fmt.Errorf("saving theme: %w", err)
	}
	return nil
}

// ToggleTheme flips between dark and light.
func (d *Dashboard) ToggleTheme() error {
	current := d.page.Theme()
	if current == "" {
		current = ThemeDark
	}

	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	return d.SetTheme(next)
}

// InitializeTheme applies the saved theme.
func (d *Dashboard) InitializeTheme() {
	_ = d.SetTheme(d.GetThemeFromCookie())
}
