package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/device"
)

type sensorReader struct {
	name string
	unit string
	read func(*device.Client, context.Context) (device.Reading, error)
}

var sensorReaders = []sensorReader{
	{name: "temperature", unit: dashboard.UnitTemperature, read: (*device.Client).Temperature},
	{name: "humidity", unit: dashboard.UnitHumidity, read: (*device.Client).Humidity},
	{name: "soilmoisture", unit: dashboard.UnitSoilMoisture, read: (*device.Client).SoilMoisture},
}

// readResult is one sensor line of `read --json`.
type readResult struct {
	Sensor string        `json:"sensor"`
	Value  *device.Value `json:"value,omitempty"`
	Text   string        `json:"text"`
	Error  string        `json:"error,omitempty"`
}

var readCmd = &cobra.Command{
	Use:       "read [temperature|humidity|soilmoisture]...",
	Short:     "Read the sensors once",
	ValidArgs: []string{"temperature", "humidity", "soilmoisture"},
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cli.deviceClient()

		wanted := make(map[string]bool, len(args))
		for _, a := range args {
			wanted[a] = true
		}

		var (
			results []readResult
			lines   []string
			errs    []error
		)
		for _, s := range sensorReaders {
			if len(wanted) > 0 && !wanted[s.name] {
				continue
			}

			r := readResult{Sensor: s.name}
			reading, err := s.read(client, cmd.Context())
			if err != nil {
				r.Text = dashboard.ErrorText
				r.Error = err.Error()
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			} else {
				r.Value = &reading.Value
				r.Text = reading.Value.String() + s.unit
			}
			results = append(results, r)
			lines = append(lines, fmt.Sprintf("%-14s %s", s.name, r.Text))
		}

		if err := cli.print(cmd.OutOrStdout(), results, strings.Join(lines, "\n")); err != nil {
			return err
		}
		return errors.Join(errs...)
	},
}

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Water the plant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.deviceClient().PumpOn(cmd.Context()); err != nil {
			return fmt.Errorf("activating pump: %w", err)
		}
		return cli.print(cmd.OutOrStdout(), map[string]bool{"ok": true}, "pump activated")
	},
}

var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Inspect and configure the device's WiFi",
}

var wifiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the WiFi status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := cli.deviceClient().WiFiStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking WiFi status: %w", err)
		}
		text, _ := dashboard.StatusLine(status)
		return cli.print(cmd.OutOrStdout(), status, text)
	},
}

var wifiPassword string

var wifiConnectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Join a WiFi network and save the credentials on the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return dashboard.ErrSSIDRequired
		}
		result, err := cli.deviceClient().ConnectWiFi(cmd.Context(), device.Credentials{
			SSID:     args[0],
			Password: wifiPassword,
		})
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		if err := cli.print(cmd.OutOrStdout(), result, result.Message); err != nil {
			return err
		}
		if !result.Success {
			return errors.New(dashboard.ConnectFailedAlert(result.Message))
		}
		return nil
	},
}

var wifiToggleAPCmd = &cobra.Command{
	Use:   "toggle-ap",
	Short: "Switch between access point and station mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := cli.deviceClient().ToggleAP(cmd.Context())
		if err != nil {
			return fmt.Errorf("toggling AP mode: %w", err)
		}
		if err := cli.print(cmd.OutOrStdout(), result, result.Message); err != nil {
			return err
		}
		if !result.Success {
			return errors.New(dashboard.ToggleAPFailedAlert(result.Message))
		}
		return nil
	},
}

var wifiResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved network and restart the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := cli.deviceClient().ResetWiFi(cmd.Context())
		if err != nil {
			return fmt.Errorf("resetting WiFi: %w", err)
		}
		if err := cli.print(cmd.OutOrStdout(), result, result.Message); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("reset failed: %s", result.Message)
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find the device on the local network over mDNS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := device.Discover(cmd.Context(), device.DiscoverConfig{
			Hostname: cli.cfg.Discovery.Hostname,
			Service:  cli.cfg.Discovery.Service,
			Timeout:  cli.cfg.Discovery.Timeout,
			Logger:   cli.log,
		})
		if err != nil {
			return err
		}
		return cli.print(cmd.OutOrStdout(), map[string]string{"url": u}, u)
	},
}

func init() {
	wifiConnectCmd.Flags().StringVarP(&wifiPassword, "password", "p", "", "network password")

	wifiCmd.AddCommand(wifiStatusCmd)
	wifiCmd.AddCommand(wifiConnectCmd)
	wifiCmd.AddCommand(wifiToggleAPCmd)
	wifiCmd.AddCommand(wifiResetCmd)
}
