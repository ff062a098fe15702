package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenstack/greenstack/internal/provider/resilience"
	"github.com/greenstack/greenstack/internal/telemetry"
)

const tracerName = "github.com/greenstack/greenstack/internal/device"

// Endpoint names, used for health tracking, metrics and span names.
const (
	EndpointTemperature  = "temperature"
	EndpointHumidity     = "humidity"
	EndpointSoilMoisture = "soilmoisture"
	EndpointPumpOn       = "pump_on"
	EndpointWiFiStatus   = "wifi/status"
	EndpointWiFiConnect  = "wifi/connect"
	EndpointWiFiToggleAP = "wifi/toggle_ap"
	EndpointWiFiReset    = "wifi/reset"
)

// Endpoints lists every device endpoint the client calls.
var Endpoints = []string{
	EndpointTemperature,
	EndpointHumidity,
	EndpointSoilMoisture,
	EndpointPumpOn,
	EndpointWiFiStatus,
	EndpointWiFiConnect,
	EndpointWiFiToggleAP,
	EndpointWiFiReset,
}

// DefaultBaseURL is the address the device answers on in access point mode.
const DefaultBaseURL = "http://192.168.4.1"

// ClientConfig holds configuration for the device client.
type ClientConfig struct {
	// BaseURL is the device address, e.g. http://greenstack.local.
	BaseURL string

	// HTTPClient serves sensor reads and the pump (optional).
	// If nil, uses a single-shot resilient client with defaults.
	HTTPClient *resilience.Client

	// ActionHTTPClient serves the WiFi provisioning calls, which block on
	// the device while it joins a network (optional). If nil, uses a
	// single-shot client with a 20 second timeout.
	ActionHTTPClient *resilience.Client

	// Registry records the outcome of every call per endpoint (optional).
	Registry *resilience.Registry

	// Metrics records request durations (optional).
	Metrics *telemetry.DeviceMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a device API client.
type Client struct {
	baseURL      string
	httpClient   *resilience.Client
	actionClient *resilience.Client
	registry     *resilience.Registry
	metrics      *telemetry.DeviceMetrics
	tracer       trace.Tracer
	logger       zerolog.Logger
}

// NewClient creates a new device client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("device"))
	}

	actionClient := cfg.ActionHTTPClient
	if actionClient == nil {
		actionCfg := resilience.DefaultClientConfig("device-wifi")
		actionCfg.Timeout = 20 * time.Second
		actionClient = resilience.NewClient(actionCfg)
	}

	if cfg.Registry != nil {
		for _, name := range Endpoints {
			if name == EndpointWiFiConnect || name == EndpointWiFiToggleAP || name == EndpointWiFiReset {
				cfg.Registry.Register(name, actionClient)
				continue
			}
			cfg.Registry.Register(name, httpClient)
		}
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		actionClient: actionClient,
		registry:     cfg.Registry,
		metrics:      cfg.Metrics,
		tracer:       otel.Tracer(tracerName),
		logger:       cfg.Logger.With().Str("component", "device").Logger(),
	}
}

// BaseURL returns the device address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Temperature fetches GET /temperature.
func (c *Client) Temperature(ctx context.Context) (Reading, error) {
	return c.reading(ctx, EndpointTemperature, KeyTemperature)
}

// Humidity fetches GET /humidity.
func (c *Client) Humidity(ctx context.Context) (Reading, error) {
	return c.reading(ctx, EndpointHumidity, KeyHumidity)
}

// SoilMoisture fetches GET /soilmoisture. Current firmware sends a label.
func (c *Client) SoilMoisture(ctx context.Context) (Reading, error) {
	return c.reading(ctx, EndpointSoilMoisture, KeySoilMoisture)
}

// PumpOn fetches GET /pump_on. The reply body is ignored; any non-2xx
// status is an error.
func (c *Client) PumpOn(ctx context.Context) error {
	return c.observe(ctx, EndpointPumpOn, func(ctx context.Context) error {
		resp, err := c.send(ctx, c.httpClient, http.MethodGet, "/pump_on", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}
		return nil
	})
}

// WiFiStatus fetches GET /wifi/status.
func (c *Client) WiFiStatus(ctx context.Context) (*WiFiStatus, error) {
	var status WiFiStatus
	err := c.observe(ctx, EndpointWiFiStatus, func(ctx context.Context) error {
		return c.getJSON(ctx, c.httpClient, http.MethodGet, "/wifi/status", nil, &status)
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ConnectWiFi posts credentials to /wifi/connect. A reply with
// success=false is not an error; the caller inspects the result.
func (c *Client) ConnectWiFi(ctx context.Context, creds Credentials) (*ActionResult, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encoding credentials: %w", err)
	}
	return c.action(ctx, EndpointWiFiConnect, "/wifi/connect", body)
}

// ToggleAP posts to /wifi/toggle_ap with no body.
func (c *Client) ToggleAP(ctx context.Context) (*ActionResult, error) {
	return c.action(ctx, EndpointWiFiToggleAP, "/wifi/toggle_ap", nil)
}

// ResetWiFi posts to /wifi/reset. The device clears its stored
// credentials and restarts.
func (c *Client) ResetWiFi(ctx context.Context) (*ActionResult, error) {
	return c.action(ctx, EndpointWiFiReset, "/wifi/reset", nil)
}

func (c *Client) action(ctx context.Context, endpoint, path string, body []byte) (*ActionResult, error) {
	var result ActionResult
	err := c.observe(ctx, endpoint, func(ctx context.Context) error {
		return c.getJSON(ctx, c.actionClient, http.MethodPost, path, body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) reading(ctx context.Context, endpoint, key string) (Reading, error) {
	reading := Reading{Key: key}
	err := c.observe(ctx, endpoint, func(ctx context.Context) error {
		var reply map[string]json.RawMessage
		if err := c.getJSON(ctx, c.httpClient, http.MethodGet, "/"+endpoint, nil, &reply); err != nil {
			return err
		}

		raw, ok := reply[key]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			return fmt.Errorf("%w: %q", ErrMissingField, key)
		}
		if err := json.Unmarshal(raw, &reading.Value); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return Reading{Key: key}, err
	}

	if f, ok := reading.Value.Float(); ok && c.metrics != nil {
		c.metrics.RecordReading(key, f)
	}
	return reading, nil
}

// getJSON sends a request and decodes the reply whatever its status: the
// device reports failures such as a bad JSON body in the reply itself.
func (c *Client) getJSON(ctx context.Context, client *resilience.Client, method, path string, body []byte, out any) error {
	resp, err := c.send(ctx, client, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, client *resilience.Client, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// observe wraps one call in a span, records its duration and outcome.
func (c *Client) observe(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "device "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("device.endpoint", endpoint),
			attribute.String("server.address", c.baseURL),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, duration, err)
	}
	if c.registry != nil {
		c.registry.Record(endpoint, err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Dur("duration", duration).
		Err(err).
		Msg("device call")

	return err
}
