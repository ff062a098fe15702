// Package device is the HTTP client for the plant watering device's local
// API: sensor readings, the pump and WiFi provisioning.
package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Client errors.
var (
	// ErrMissingField is returned when a reply lacks the expected key.
	ErrMissingField = errors.New("missing field in device reply")

	// ErrUnexpectedStatus is returned when the device answers with a
	// non-2xx status where a 2xx is required.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Reply keys of the sensor endpoints.
const (
	KeyTemperature  = "temp"
	KeyHumidity     = "humidity"
	KeySoilMoisture = "soilmoisture"
)

// Value is a sensor value as sent by the device: a number, or a label such
// as "very moist".
type Value struct {
	number   float64
	label    string
	isNumber bool
	isBool   bool
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{number: f, isNumber: true}
}

// Label returns a textual Value.
func Label(s string) Value {
	return Value{label: s}
}

// Float returns the numeric value and whether the Value is a number.
func (v Value) Float() (float64, bool) {
	return v.number, v.isNumber
}

// IsNumber reports whether the device sent a number.
func (v Value) IsNumber() bool {
	return v.isNumber
}

// String formats the value the way the dashboard displays it. Numbers use
// the shortest decimal that round-trips, switching to exponent notation
// outside [1e-6, 1e21).
func (v Value) String() string {
	switch {
	case v.isNumber:
		return FormatNumber(v.number)
	case v.isBool:
		return strconv.FormatBool(v.number != 0)
	default:
		return v.label
	}
}

// MarshalJSON writes the value back in the shape the device sent it.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.isNumber:
		return []byte(strconv.FormatFloat(v.number, 'g', -1, 64)), nil
	case v.isBool:
		return []byte(strconv.FormatBool(v.number != 0)), nil
	default:
		return json.Marshal(v.label)
	}
}

// UnmarshalJSON accepts a JSON number, string or boolean.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrMissingField
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Label(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Value{isBool: true}
		if b {
			v.number = 1
		}
	case '{', '[':
		return fmt.Errorf("unsupported value %s", data)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("parsing number: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// FormatNumber renders f as the browser's Number-to-string conversion does.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Reading is one decoded sensor reply.
type Reading struct {
	// Key is the reply key, e.g. "temp".
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// WiFiStatus is the reply of GET /wifi/status.
type WiFiStatus struct {
	Connected  bool    `json:"connected"`
	SSID       string  `json:"ssid,omitempty"`
	RSSI       float64 `json:"rssi,omitempty"`
	APMode     bool    `json:"ap_mode,omitempty"`
	APSSID     string  `json:"ap_ssid,omitempty"`
	IP         string  `json:"ip,omitempty"`
	StoredSSID string  `json:"stored_ssid,omitempty"`
}

// Credentials is the body of POST /wifi/connect.
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// ActionResult is the reply of the WiFi provisioning actions.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	IP      string `json:"ip,omitempty"`
	APSSID  string `json:"ap_ssid,omitempty"`
}
