package dashboard

import (
	"context"

	"github.com/greenstack/greenstack/internal/device"
	"github.com/greenstack/greenstack/internal/page"
)

// Card units.
const (
	UnitTemperature  = " °C"
	UnitHumidity     = " %"
	UnitSoilMoisture = ""
)

// ErrorText is written into a card or button when its request fails.
const ErrorText = "Error"

// Transition styles of a value card.
const (
	shrunkScale   = 0.9
	shrunkOpacity = 0.7
)

type sensor struct {
	name   string
	target string
	unit   string
	fetch  func(Device, context.Context) (device.Reading, error)
}

var sensors = []sensor{
	{name: "temperature", target: page.Temperature, unit: UnitTemperature, fetch: Device.Temperature},
	{name: "humidity", target: page.Humidity, unit: UnitHumidity, fetch: Device.Humidity},
	{name: "soil moisture", target: page.SoilMoisture, unit: UnitSoilMoisture, fetch: Device.SoilMoisture},
}

// FetchTemperature reads the temperature into the temperature card.
func (d *Dashboard) FetchTemperature(ctx context.Context) error {
	return d.fetch(ctx, sensors[0])
}

// FetchHumidity reads the humidity into the humidity card.
func (d *Dashboard) FetchHumidity(ctx context.Context) error {
	return d.fetch(ctx, sensors[1])
}

// FetchSoilMoisture reads the soil moisture into its card.
func (d *Dashboard) FetchSoilMoisture(ctx context.Context) error {
	return d.fetch(ctx, sensors[2])
}

func (d *Dashboard) fetch(ctx context.Context, s sensor) error {
	reading, err := s.fetch(d.device, ctx)
	if err != nil {
		d.logger.Error().Err(err).Str("sensor", s.name).Msg("fetching " + s.name)
		d.UpdateCardValue(s.target, ErrorText, "")
		return err
	}

	d.UpdateCardValue(s.target, reading.Value.String(), s.unit)
	return nil
}

// UpdateCardValue shrinks and dims the card immediately, then after the
// transition delay writes value+unit and restores it. Unknown targets are
// ignored.
func (d *Dashboard) UpdateCardValue(target, value, unit string) {
	ok := d.page.Update(target, func(el *page.Element) {
		el.Scale = shrunkScale
		el.Opacity = shrunkOpacity
	})
	if !ok {
		return
	}

	text := value + unit
	d.after(d.config.TransitionDelay, func() {
		d.page.Update(target, func(el *page.Element) {
			el.Text = text
			el.Scale = 1
			el.Opacity = 1
		})
	})
}

// startPollers arms one repeating timer per sensor and fetches each sensor
// once right away. Every firing runs its request on its own goroutine, so a
// slow reply never delays the next tick and replies land in completion
// order.
func (d *Dashboard) startPollers() {
	for _, s := range sensors {
		poll := func() {
			d.spawn(func(ctx context.Context) {
				_ = d.fetch(ctx, s)
			})
		}
		d.timers.Every(d.config.PollInterval, poll)
		poll()
	}
}
