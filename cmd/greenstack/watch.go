package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/logging"
	"github.com/greenstack/greenstack/internal/render"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the dashboard in the terminal",
	Long: `Run the dashboard in the terminal. Readings refresh on the poll interval.

Type a key and press enter:
  p                     water the plant
  w                     open the WiFi settings
  x                     close the WiFi settings
  s                     check the WiFi status
  c <ssid> [password]   connect to a network
  a                     toggle access point mode
  v                     show or hide the password
  t                     toggle the theme
  r                     reload
  q                     quit`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	log := cli.log

	d, err := cli.dashboard(cli.deviceClient(), nil)
	if err != nil {
		return err
	}

	tty := logging.IsTerminal(out)
	opts := render.Options{Color: tty, Clear: tty}

	changed := make(chan struct{}, 1)
	d.Page().Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	d.Load(ctx)
	defer func() {
		d.Close()
		d.Wait()
	}()

	keys := make(chan string)
	go readKeys(cmd.InOrStdin(), keys)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := render.Render(out, d.Page().Snapshot(), opts); err != nil {
				return err
			}
		case line, ok := <-keys:
			if !ok {
				// Input closed; keep watching until interrupted.
				keys = nil
				continue
			}
			if quit := handleKey(ctx, d, line); quit {
				return nil
			}
			log.Debug().Str("key", line).Msg("key handled")
		}
	}
}

func readKeys(r io.Reader, keys chan<- string) {
	defer close(keys)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			keys <- line
		}
	}
}

// handleKey runs the action bound to line and reports whether to quit.
// Device actions run in the background; their outcome shows on the page.
func handleKey(ctx context.Context, d *dashboard.Dashboard, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "q":
		return true
	case "p":
		go func() { _ = d.TriggerPump(ctx) }()
	case "w":
		go func() { _ = d.OpenWiFiConfig(ctx) }()
	case "x":
		d.CloseWiFiConfig()
	case "s":
		go func() { _ = d.CheckWiFiStatus(ctx) }()
	case "c":
		var ssid, password string
		if len(fields) > 1 {
			ssid = fields[1]
		}
		if len(fields) > 2 {
			password = fields[2]
		}
		d.SetCredentials(ssid, password)
		go func() { _ = d.ConnectWiFi(ctx) }()
	case "a":
		go func() { _ = d.ToggleAPMode(ctx) }()
	case "v":
		d.TogglePassword()
	case "t":
		_ = d.ToggleTheme()
	case "r":
		d.Reload()
	}
	return false
}
