package aranet4

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

// wire layout of the current readings characteristic, little-endian
type rawSensorData struct {
	Co2         uint16 // ppm
	Temperature uint16 // 1/20 degrees Celsius
	Pressure    uint16 // 1/10 hPa
	Humidity    uint8  // %
	Battery     uint8  // %
	Status      uint8  // 1 green, 2 amber, 3 red
	Interval    uint16 // seconds
	Ago         uint16 // seconds
}

const rawSensorDataLen = 13

func decodeSensorData(payload []byte) (aranet.SensorData, error) {
	if len(payload) < rawSensorDataLen {
		return aranet.SensorData{}, errors.Errorf("unexpected payload length: %d bytes, want at least %d", len(payload), rawSensorDataLen)
	}

	raw := rawSensorData{}
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &raw); err != nil {
		return aranet.SensorData{}, errors.Wrap(err, "failed to unpack payload")
	}

	status := aranet.Status(raw.Status)
	if !status.Valid() {
		return aranet.SensorData{}, errors.Errorf("unknown status value in payload: %d", raw.Status)
	}

	return aranet.SensorData{
		Co2:             raw.Co2,
		Temperature:     float32(raw.Temperature) / 20.0,
		Pressure:        float32(raw.Pressure) / 10.0,
		Humidity:        raw.Humidity,
		Battery:         raw.Battery,
		Status:          status,
		Interval:        time.Duration(raw.Interval) * time.Second,
		SinceLastUpdate: time.Duration(raw.Ago) * time.Second,
	}, nil
}
