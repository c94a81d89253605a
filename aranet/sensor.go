package aranet

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type Sensor interface {
	Address() string
	Name() string
	Measurements() (SensorData, error)
	Info() (DeviceInfo, error)
}

// SensorData is a point-in-time snapshot of the device's current readings.
type SensorData struct {
	// units: ppm
	Co2 uint16 `json:"co2"`

	// units: degrees Celsius
	Temperature float32 `json:"temperature"`

	// units: hPa
	Pressure float32 `json:"pressure"`

	// units: % of relative Humidity
	Humidity uint8 `json:"humidity"`

	// units: % of battery charge remaining
	Battery uint8 `json:"battery"`

	// traffic-light CO2 indicator, as shown on the device display
	Status Status `json:"status"`

	// configured measurement interval
	Interval time.Duration `json:"interval"`

	// elapsed time since the device's last measurement cycle
	SinceLastUpdate time.Duration `json:"since_last_update"`
}

// Validate checks the snapshot against the value ranges implied by the units.
func (d SensorData) Validate() error {
	if d.Humidity > 100 {
		return errors.Errorf("humidity out of range: %d%%", d.Humidity)
	}
	if d.Battery > 100 {
		return errors.Errorf("battery out of range: %d%%", d.Battery)
	}
	if !d.Status.Valid() {
		return errors.Errorf("unknown status value: %d", uint8(d.Status))
	}
	return nil
}

type Status uint8

const (
	StatusGreen Status = 1
	StatusAmber Status = 2
	StatusRed   Status = 3
)

func (s Status) Valid() bool {
	return s >= StatusGreen && s <= StatusRed
}

func (s Status) String() string {
	switch s {
	case StatusGreen:
		return "GREEN"
	case StatusAmber:
		return "AMBER"
	case StatusRed:
		return "RED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DeviceInfo holds the device identity read from the standard
// Device Information service.
type DeviceInfo struct {
	ManufacturerName string `json:"manufacturer_name"`
	ModelNumber      string `json:"model_number"`
	SerialNumber     string `json:"serial_number"`
	HardwareRevision string `json:"hardware_revision"`
	FirmwareRevision string `json:"firmware_revision"`
}
