package dashboard

import (
	"context"
	"errors"

	"github.com/greenstack/greenstack/internal/page"
)

// Pump button labels.
const (
	WateringIcon = "⏳"
	WateringText = "Watering..."
)

// ErrControlDisabled is returned when an action is triggered through a
// button that is currently disabled. Nothing is sent to the device.
var ErrControlDisabled = errors.New("control is disabled")

// TriggerPump switches the pump on. On success the pump button is disabled
// and shows a watering label until the watering duration elapses, then gets
// back the label it had before. On failure it shows "Error" for the error
// duration and then the idle label. A disabled button does nothing.
func (d *Dashboard) TriggerPump(ctx context.Context) error {
	original, ok := d.page.Get(page.PumpButton)
	if ok && original.Disabled {
		return ErrControlDisabled
	}

	if err := d.device.PumpOn(ctx); err != nil {
		d.logger.Error().Err(err).Msg("activating pump")

		d.page.SetLabel(page.PumpButton, "", ErrorText)
		d.after(d.config.ErrorDuration, func() {
			d.page.SetLabel(page.PumpButton, page.PumpIdleIcon, page.PumpIdleText)
		})
		return err
	}

	d.logger.Info().Msg("pump activated")

	if !ok {
		return nil
	}
	d.page.Update(page.PumpButton, func(el *page.Element) {
		el.Icon = WateringIcon
		el.Text = WateringText
		el.Disabled = true
	})

	d.after(d.config.WateringDuration, func() {
		d.page.Update(page.PumpButton, func(el *page.Element) {
			el.Icon = original.Icon
			el.Text = original.Text
			el.Disabled = false
		})
	})
	return nil
}
