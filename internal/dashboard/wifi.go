package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/greenstack/greenstack/internal/device"
	"github.com/greenstack/greenstack/internal/page"
)

// ErrSSIDRequired is returned by ConnectWiFi when the network name is empty.
var ErrSSIDRequired = errors.New("network name required")

// WiFi status texts and colors.
const (
	StatusNotConnected = "Not connected"
	StatusCheckFailed  = "Status check failed"

	ColorConnected    = "--primary-green"
	ColorAccessPoint  = "--secondary-blue"
	ColorNotConnected = "--text-secondary"
)

// Connect and access point button labels.
const (
	BusyIcon       = "⏳"
	ConnectingText = "Connecting..."
	ConnectedText  = "LETS GOO!"
	ConnectFailed  = "Failed!!"

	SwitchingText = "Switching..."
	SwitchedText  = "Switched!"
	FailIcon      = "❌"
	APFailedText  = "Failed"
	APErrorText   = "Error"
)

// Alert messages.
const (
	AlertSSIDRequired  = "Please enter a network name"
	AlertConnectError  = "Connection error"
	AlertToggleAPError = "AP mode toggle error"
)

// OpenWiFiConfig shows the WiFi modal, locks page scrolling and checks the
// WiFi status once.
func (d *Dashboard) OpenWiFiConfig(ctx context.Context) error {
	d.page.Update(page.WiFiModal, func(el *page.Element) { el.Display = page.DisplayBlock })
	d.page.SetScrollLocked(true)
	return d.CheckWiFiStatus(ctx)
}

// CloseWiFiConfig hides the WiFi modal and restores page scrolling.
func (d *Dashboard) CloseWiFiConfig() {
	d.page.Update(page.WiFiModal, func(el *page.Element) { el.Display = page.DisplayNone })
	d.page.SetScrollLocked(false)
}

// Click handles a click on the element with the given id. A click on the
// modal's backdrop closes the modal.
func (d *Dashboard) Click(target string) {
	if target == page.WiFiModal {
		d.CloseWiFiConfig()
	}
}

// CheckWiFiStatus fetches the WiFi status into the modal's status line.
func (d *Dashboard) CheckWiFiStatus(ctx context.Context) error {
	status, err := d.device.WiFiStatus(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("checking WiFi status")
		d.page.SetText(page.WiFiStatusText, StatusCheckFailed)
		return err
	}

	text, color := StatusLine(status)
	d.page.Update(page.WiFiStatusText, func(el *page.Element) {
		el.Text = text
		el.Color = color
	})
	return nil
}

// StatusLine returns the status text and color for a WiFi status reply.
func StatusLine(status *device.WiFiStatus) (string, string) {
	switch {
	case status.Connected:
		return fmt.Sprintf("Connected to: %s (%s dBm)", status.SSID, device.FormatNumber(status.RSSI)), ColorConnected
	case status.APMode:
		return "AP Mode: " + status.APSSID, ColorAccessPoint
	default:
		return StatusNotConnected, ColorNotConnected
	}
}

// SetCredentials fills the network name and password inputs.
func (d *Dashboard) SetCredentials(ssid, password string) {
	d.page.SetValue(page.SSIDInput, ssid)
	d.page.SetValue(page.PasswordInput, password)
}

// ConnectWiFi submits the credentials in the modal's inputs. An empty
// network name raises an alert and sends nothing. On success the modal
// closes and the page reloads after the action delay; otherwise the connect
// button comes back after the same delay.
func (d *Dashboard) ConnectWiFi(ctx context.Context) error {
	creds := device.Credentials{
		SSID:     d.page.Value(page.SSIDInput),
		Password: d.page.Value(page.PasswordInput),
	}
	if creds.SSID == "" {
		d.page.Alert(AlertSSIDRequired)
		return ErrSSIDRequired
	}

	if !d.claim(page.ConnectButton, ConnectingText) {
		return ErrControlDisabled
	}

	result, err := d.device.ConnectWiFi(ctx, creds)
	if err != nil {
		d.logger.Error().Err(err).Str("ssid", creds.SSID).Msg("connecting to WiFi")
		d.page.SetLabel(page.ConnectButton, "", ErrorText)
		d.page.Alert(AlertConnectError)
		d.after(d.config.WiFiActionDelay, d.restoreConnectButton)
		return err
	}

	if result.Success {
		d.logger.Info().Str("ssid", creds.SSID).Str("ip", result.IP).Msg("device joined network")
		d.page.SetLabel(page.ConnectButton, "", ConnectedText)
		d.after(d.config.WiFiActionDelay, d.closeAndReload)
		return nil
	}

	d.page.SetLabel(page.ConnectButton, "", ConnectFailed)
	d.page.Alert(ConnectFailedAlert(result.Message))
	d.after(d.config.WiFiActionDelay, d.restoreConnectButton)
	return nil
}

// ConnectFailedAlert is the alert raised when the device could not join the
// network.
func ConnectFailedAlert(message string) string {
	if message == "" {
		message = " error"
	}
	return "Connection failed: " + message
}

// ToggleAPFailedAlert is the alert raised when the device refused to switch
// modes.
func ToggleAPFailedAlert(message string) string {
	if message == "" {
		message = "Unknown error"
	}
	return "AP mode toggle failed: " + message
}

func (d *Dashboard) restoreConnectButton() {
	d.page.Update(page.ConnectButton, func(el *page.Element) {
		el.Icon = ""
		el.Text = page.ConnectIdle
		el.Disabled = false
	})
}

func (d *Dashboard) closeAndReload() {
	d.CloseWiFiConfig()
	d.Reload()
}

// ToggleAPMode asks the device to switch between access point and station
// mode. Whatever the outcome, the button label and enabled state are
// restored after the action delay; on success the page also reloads.
func (d *Dashboard) ToggleAPMode(ctx context.Context) error {
	if !d.claim(page.APButton, SwitchingText) {
		return ErrControlDisabled
	}

	defer d.after(d.config.WiFiActionDelay, func() {
		d.page.Update(page.APButton, func(el *page.Element) {
			el.Icon = ""
			el.Text = page.APIdle
			el.Disabled = false
		})
	})

	result, err := d.device.ToggleAP(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("toggling AP mode")
		d.page.SetLabel(page.APButton, FailIcon, APErrorText)
		d.page.Alert(AlertToggleAPError)
		return err
	}

	if result.Success {
		d.logger.Info().Str("ap_ssid", result.APSSID).Str("ip", result.IP).Msg("switched WiFi mode")
		d.page.SetLabel(page.APButton, "", SwitchedText)
		d.after(d.config.WiFiActionDelay, d.closeAndReload)
		return nil
	}

	d.page.SetLabel(page.APButton, FailIcon, APFailedText)
	d.page.Alert(ToggleAPFailedAlert(result.Message))
	return nil
}

// claim disables the button and shows the busy label on it, unless it is
// already disabled. It reports whether the button was claimed.
func (d *Dashboard) claim(id, busyText string) bool {
	claimed := false
	d.page.Update(id, func(el *page.Element) {
		if el.Disabled {
			return
		}
		el.Icon = BusyIcon
		el.Text = busyText
		el.Disabled = true
		claimed = true
	})
	return claimed
}

// TogglePassword shows or hides the password input's contents.
func (d *Dashboard) TogglePassword() {
	var visible bool
	d.page.Update(page.PasswordInput, func(el *page.Element) {
		if el.InputType == page.InputPassword {
			el.InputType = page.InputText
			visible = true
		} else {
			el.InputType = page.InputPassword
		}
	})

	icon := page.PasswordHidden
	if visible {
		icon = page.PasswordShown
	}
	d.page.SetText(page.PasswordToggle, icon)
}
