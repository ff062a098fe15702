package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/greenstack/greenstack/internal/telemetry"

// DeviceMetrics holds metrics for calls to the device API.
type DeviceMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	readings        metric.Float64Gauge
}

// NewDeviceMetrics registers the device instruments on meter, normally
// Provider.Meter.
func NewDeviceMetrics(meter metric.Meter) (*DeviceMetrics, error) {
	requestDuration, err := meter.Float64Histogram(
		"device.request.duration",
		metric.WithDescription("Duration of device API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"device.request.total",
		metric.WithDescription("Total number of device API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	readings, err := meter.Float64Gauge(
		"device.sensor.reading",
		metric.WithDescription("Last numeric sensor reading"),
	)
	if err != nil {
		return nil, err
	}

	return &DeviceMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		readings:        readings,
	}, nil
}

// RecordRequest records one device call.
func (m *DeviceMetrics) RecordRequest(endpoint string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("device.endpoint", endpoint),
	}

	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReading records the latest numeric value of a sensor.
func (m *DeviceMetrics) RecordReading(sensor string, value float64) {
	m.readings.Record(context.TODO(), value,
		metric.WithAttributes(attribute.String("device.sensor", sensor)))
}
