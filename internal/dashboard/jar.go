package dashboard

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CookieJar is the page's cookie store, with the semantics of
// document.cookie: SetCookie takes one Set-Cookie style string, Cookie
// returns "name=value; name2=value2" for every live cookie.
type CookieJar interface {
	Cookie() string
	SetCookie(line string) error
}

// MemoryJar is a CookieJar kept in memory.
type MemoryJar struct {
	mu      sync.Mutex
	now     func() time.Time
	cookies []*http.Cookie
}

// NewMemoryJar returns an empty jar. now decides which cookies have
// expired; nil means the wall clock.
func NewMemoryJar(now func() time.Time) *MemoryJar {
	if now == nil {
		now = time.Now
	}
	return &MemoryJar{now: now}
}

// Cookie returns every live cookie as name=value pairs.
func (j *MemoryJar) Cookie() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked()
	pairs := make([]string, 0, len(j.cookies))
	for _, c := range j.cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// SetCookie stores a cookie, replacing any cookie with the same name and
// path. A cookie whose expiry is in the past is removed.
func (j *MemoryJar) SetCookie(line string) error {
	c, err := http.ParseSetCookie(line)
	if err != nil {
		return fmt.Errorf("parsing cookie: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.removeLocked(c.Name, c.Path)
	if !j.expired(c) {
		j.cookies = append(j.cookies, c)
	}
	return nil
}

// setCookies returns the live cookies in Set-Cookie form.
func (j *MemoryJar) setCookies() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked()
	lines := make([]string, 0, len(j.cookies))
	for _, c := range j.cookies {
		lines = append(lines, c.String())
	}
	return lines
}

func (j *MemoryJar) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(j.now())
}

func (j *MemoryJar) expireLocked() {
	live := j.cookies[:0]
	for _, c := range j.cookies {
		if !j.expired(c) {
			live = append(live, c)
		}
	}
	j.cookies = live
}

func (j *MemoryJar) removeLocked(name, path string) {
	for i, c := range j.cookies {
		if c.Name == name && c.Path == path {
			j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
			return
		}
	}
}

// FileJar is a CookieJar persisted to a file, one Set-Cookie line per
// cookie, so preferences survive restarts.
type FileJar struct {
	*MemoryJar
	path string

	saveMu sync.Mutex
}

// NewFileJar loads the jar stored at path. A missing file is an empty jar;
// lines that are not cookies are skipped with a warning.
func NewFileJar(path string, now func() time.Time, logger zerolog.Logger) (*FileJar, error) {
	jar := &FileJar{MemoryJar: NewMemoryJar(now), path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return jar, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening cookie jar: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := jar.MemoryJar.SetCookie(line); err != nil {
			logger.Warn().Err(err).Str("path", path).Int("line", n).Msg("skipping unreadable cookie")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cookie jar: %w", err)
	}
	return jar, nil
}

// Path returns the jar's file.
func (j *FileJar) Path() string {
	return j.path
}

// SetCookie stores the cookie and rewrites the file.
func (j *FileJar) SetCookie(line string) error {
	if err := j.MemoryJar.SetCookie(line); err != nil {
		return err
	}
	return j.save()
}

func (j *FileJar) save() error {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("creating cookie jar directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".cookies-*")
	if err != nil {
		return fmt.Errorf("creating cookie jar: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range j.setCookies() {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cookie jar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cookie jar: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("saving cookie jar: %w", err)
	}
	return nil
}
