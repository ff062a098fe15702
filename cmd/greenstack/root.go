package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/greenstack/greenstack/internal/config"
	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/device"
	"github.com/greenstack/greenstack/internal/logging"
	"github.com/greenstack/greenstack/internal/provider/resilience"
	"github.com/greenstack/greenstack/internal/telemetry"
)

const serviceName = "greenstack"

// flags binds the command line to configuration keys.
var flags = viper.New()

var rootCmd = &cobra.Command{
	Use:           "greenstack",
	Short:         "Monitor and water a GreenStack plant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cli.setup(cmd.Context())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default "+config.DefaultPath()+")")
	pf.String("device-url", "", "device base URL, e.g. http://192.168.4.1")
	pf.String("log-level", "", "log level: trace, debug, info, warn or error")
	pf.Bool("json", false, "print results as JSON")

	_ = flags.BindPFlag("config", pf.Lookup("config"))
	_ = flags.BindPFlag("device.url", pf.Lookup("device-url"))
	_ = flags.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = flags.BindPFlag("json", pf.Lookup("json"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(pumpCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(serveCmd)

	cobra.OnFinalize(cli.teardown)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (built %s)\n", Version, BuildTime)
	},
}

// app is the state every command shares.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	telemetry *telemetry.Provider
	metrics   *telemetry.DeviceMetrics
	registry  *resilience.Registry
	jsonOut   bool
}

var cli = &app{log: zerolog.Nop()}

// setup loads the configuration, applies the flags over it and starts
// logging and telemetry.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(flags.GetString("config"))
	if err != nil {
		return err
	}
	if flags.IsSet("device.url") {
		cfg.Device.URL = flags.GetString("device.url")
	}
	if flags.IsSet("log.level") {
		cfg.Log.Level = flags.GetString("log.level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Config{
		Service:    serviceName,
		Version:    Version,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ExportInterval: cfg.Telemetry.ExportInterval,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		_ = closer.Close()
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := telemetry.NewDeviceMetrics(tp.Meter)
	if err != nil {
		_ = closer.Close()
		return fmt.Errorf("initializing metrics: %w", err)
	}

	a.cfg = cfg
	a.log = log
	a.logCloser = closer
	a.telemetry = tp
	a.metrics = metrics
	a.registry = resilience.NewRegistry()
	a.jsonOut = flags.GetBool("json")

	log.Debug().Str("device_url", cfg.Device.URL).Msg("configuration loaded")
	return nil
}

func (a *app) teardown() {
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// deviceClient returns a client for the configured device.
func (a *app) deviceClient() *device.Client {
	return device.NewClient(device.ClientConfig{
		BaseURL:          a.cfg.Device.URL,
		HTTPClient:       a.httpClient("device", a.cfg.Device.Timeout),
		ActionHTTPClient: a.httpClient("device-wifi", a.cfg.Device.ActionTimeout),
		Registry:         a.registry,
		Metrics:          a.metrics,
		Logger:           a.log,
	})
}

func (a *app) httpClient(name string, timeout time.Duration) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Timeout = timeout
	cfg.MaxRetries = a.cfg.Device.MaxRetries

	if trips := a.cfg.Device.BreakerTrips; trips > 0 {
		cb := resilience.DefaultCircuitBreakerConfig(name)
		cb.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		}
		cb.OnStateChange = func(name string, from, to gobreaker.State) {
			a.log.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
		}
		cfg.CircuitBreaker = &cb
	}
	return resilience.NewClient(cfg)
}

// dashboard opens a dashboard whose theme cookie lives in the configured
// cookie file. dev may be nil for commands that never reach the device.
func (a *app) dashboard(dev dashboard.Device, onReload func()) (*dashboard.Dashboard, error) {
	jar, err := dashboard.NewFileJar(a.cfg.Dashboard.CookieFile, nil, a.log)
	if err != nil {
		return nil, err
	}

	return dashboard.New(dashboard.Config{
		Device:           dev,
		Jar:              jar,
		PollInterval:     a.cfg.Dashboard.PollInterval,
		TransitionDelay:  a.cfg.Dashboard.TransitionDelay,
		WateringDuration: a.cfg.Dashboard.WateringDuration,
		ErrorDuration:    a.cfg.Dashboard.ErrorDuration,
		WiFiActionDelay:  a.cfg.Dashboard.WiFiActionDelay,
		OnReload:         onReload,
		Logger:           a.log,
	}), nil
}

// print writes v as JSON with --json, text otherwise.
func (a *app) print(w io.Writer, v any, text string) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
