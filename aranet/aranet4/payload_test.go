package aranet4

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alepar/aranet4/aranet"
)

func TestDecodeSensorData(t *testing.T) {
	// co2 650ppm, temp 24.65C, pressure 1013.7hPa, humidity 52%,
	// battery 87%, status green, interval 300s, last update 45s ago
	payload := []byte{
		0x8a, 0x02,
		0xed, 0x01,
		0x99, 0x27,
		0x34,
		0x57,
		0x01,
		0x2c, 0x01,
		0x2d, 0x00,
	}

	data, err := decodeSensorData(payload)
	require.NoError(t, err)

	require.Equal(t, uint16(650), data.Co2)
	require.InDelta(t, 24.65, data.Temperature, 0.001)
	require.InDelta(t, 1013.7, data.Pressure, 0.001)
	require.Equal(t, uint8(52), data.Humidity)
	require.Equal(t, uint8(87), data.Battery)
	require.Equal(t, aranet.StatusGreen, data.Status)
	require.Equal(t, 300*time.Second, data.Interval)
	require.Equal(t, 45*time.Second, data.SinceLastUpdate)

	require.NoError(t, data.Validate())
}

func TestDecodeSensorDataIgnoresTrailingBytes(t *testing.T) {
	payload := []byte{
		0x8a, 0x02,
		0xed, 0x01,
		0x99, 0x27,
		0x34,
		0x57,
		0x02,
		0x2c, 0x01,
		0x2d, 0x00,
		0xde, 0xad, // some firmwares append extra fields
	}

	data, err := decodeSensorData(payload)
	require.NoError(t, err)
	require.Equal(t, aranet.StatusAmber, data.Status)
}

func TestDecodeSensorDataShortPayload(t *testing.T) {
	_, err := decodeSensorData([]byte{0x8a, 0x02, 0xed})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected payload length")
}

func TestDecodeSensorDataInvalidStatus(t *testing.T) {
	payload := []byte{
		0x8a, 0x02,
		0xed, 0x01,
		0x99, 0x27,
		0x34,
		0x57,
		0x07, // no such indicator on the device
		0x2c, 0x01,
		0x2d, 0x00,
	}

	_, err := decodeSensorData(payload)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown status value")
}
