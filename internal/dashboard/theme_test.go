package dashboard_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenstack/greenstack/internal/clock"
	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/page"
)

func TestGetThemeFromCookie_DefaultsToDark(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, dashboard.ThemeDark, e.d.GetThemeFromCookie())

	require.NoError(t, e.jar.SetCookie("theme=purple; path=/"))
	assert.Equal(t, dashboard.ThemeDark, e.d.GetThemeFromCookie())
}

func TestSetTheme_WritesCookieAndIcon(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.d.SetTheme(dashboard.ThemeLight))

	assert.Equal(t, dashboard.ThemeLight, e.page.Theme())
	assert.Equal(t, "🌙", e.element(t, page.ThemeIcon).Text)
	assert.Equal(t, "theme=light", e.jar.Cookie())

	require.NoError(t, e.d.SetTheme(dashboard.ThemeDark))
	assert.Equal(t, "☀️", e.element(t, page.ThemeIcon).Text)
	assert.Equal(t, "theme=dark", e.jar.Cookie(), "the cookie is replaced, not duplicated")
}

func TestTheme_CookieRoundTripAcrossReload(t *testing.T) {
	e := newEnv(t)
	e.load()
	assert.Equal(t, dashboard.ThemeDark, e.page.Theme())

	require.NoError(t, e.d.SetTheme(dashboard.ThemeLight))
	e.d.Reload()
	e.d.Wait()

	assert.Equal(t, dashboard.ThemeLight, e.d.GetThemeFromCookie())
	assert.Equal(t, dashboard.ThemeLight, e.page.Theme())
	assert.Equal(t, "🌙", e.element(t, page.ThemeIcon).Text)
}

func TestToggleTheme(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.d.ToggleTheme())
	assert.Equal(t, dashboard.ThemeLight, e.page.Theme(), "an unset theme counts as dark")

	require.NoError(t, e.d.ToggleTheme())
	assert.Equal(t, dashboard.ThemeDark, e.page.Theme())
	assert.Equal(t, dashboard.ThemeDark, e.d.GetThemeFromCookie())
}

func TestMemoryJar(t *testing.T) {
	clk := clock.NewFake(epoch)
	jar := dashboard.NewMemoryJar(clk.Now)

	require.NoError(t, jar.SetCookie("theme=light; expires=Fri, 31 Dec 9999 23:59:59 GMT; path=/"))
	require.NoError(t, jar.SetCookie("session=abc; max-age=60"))
	assert.Equal(t, "theme=light; session=abc", jar.Cookie())

	require.NoError(t, jar.SetCookie("session=abc; expires="+epoch.Add(time.Minute).Format(time.RFC1123)))
	clk.Advance(2 * time.Minute)
	assert.Equal(t, "theme=light", jar.Cookie(), "expired cookies are dropped")

	require.NoError(t, jar.SetCookie("theme=; expires=Thu, 01 Jan 1970 00:00:00 GMT; path=/"))
	assert.Empty(t, jar.Cookie())

	assert.Error(t, jar.SetCookie(""))
}

func TestFileJar_PersistsTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cookies")

	jar, err := dashboard.NewFileJar(path, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, jar.Cookie())

	d := dashboard.New(dashboard.Config{
		Device: nil,
		Jar:    jar,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, d.SetTheme(dashboard.ThemeLight))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "theme=light")

	reopened, err := dashboard.NewFileJar(path, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "theme=light", reopened.Cookie())
	assert.Equal(t, path, reopened.Path())

	d2 := dashboard.New(dashboard.Config{Jar: reopened, Logger: zerolog.Nop()})
	assert.Equal(t, dashboard.ThemeLight, d2.GetThemeFromCookie())
}

func TestFileJar_SkipsCorruptLines(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTheme string
		wantJar   string
	}{
		{name: "only garbage", content: "garbage\n=\n", wantTheme: dashboard.ThemeDark},
		{
			name:      "garbage around a theme",
			content:   "garbage\ntheme=light; path=/\n=\n",
			wantTheme: dashboard.ThemeLight,
			wantJar:   "theme=light",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cookies")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			jar, err := dashboard.NewFileJar(path, nil, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.wantJar, jar.Cookie())

			d := dashboard.New(dashboard.Config{Jar: jar, Logger: zerolog.Nop()})
			assert.Equal(t, tt.wantTheme, d.GetThemeFromCookie())

			require.NoError(t, d.SetTheme(dashboard.ThemeDark))
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "garbage", "saving rewrites the file without the bad lines")
		})
	}
}

func TestGetThemeFromCookie_IgnoresMalformedPairs(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		want   string
	}{
		{name: "bad pair before theme", cookie: "bad cookie; theme=light", want: dashboard.ThemeLight},
		{name: "bad pair after theme", cookie: "theme=light; =oops", want: dashboard.ThemeLight},
		{name: "quoted value", cookie: `theme="light"`, want: dashboard.ThemeLight},
		{name: "only junk", cookie: ";;;", want: dashboard.ThemeDark},
		{name: "first theme wins", cookie: "theme=light; theme=dark", want: dashboard.ThemeLight},
		{name: "unknown theme", cookie: "theme=sepia; other=1", want: dashboard.ThemeDark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dashboard.New(dashboard.Config{Jar: rawJar(tt.cookie), Logger: zerolog.Nop()})
			assert.Equal(t, tt.want, d.GetThemeFromCookie())
		})
	}
}

// rawJar serves a fixed cookie string, as a browser with foreign cookies
// would.
type rawJar string

func (j rawJar) Cookie() string             { return string(j) }
func (j rawJar) SetCookie(line string) error { return nil }
