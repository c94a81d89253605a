package aranet4

import (
	"context"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

const deviceNamePrefix = "Aranet4"

const (
	DefaultScanDuration = 10 * time.Second
	DefaultRetries      = 3
)

// newer firmwares advertise this 16-bit service, older ones only the name
var advertisedServiceUuid = ble.UUID16(0xfce0)

type BleScanner struct {
	ScanDuration time.Duration
	Retries      int
}

func (scanner *BleScanner) Scan() (map[string]aranet.Sensor, error) {
	var lastErr error
	var devices map[string]aranet.Sensor
	for i := 0; i < scanner.Retries; i++ {
		devices, lastErr = scanner.scan()
		if lastErr == nil {
			return devices, nil
		}
		if i+1 < scanner.Retries {
			log.Errorf("retrying error in scan: %s", lastErr)
		}
	}

	return map[string]aranet.Sensor{}, errors.Wrap(lastErr, "all retries to scan failed")
}

func (scanner *BleScanner) scan() (map[string]aranet.Sensor, error) {
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), scanner.ScanDuration))
	ads, err := ble.Find(ctx, false, aranetOnlyFilter)
	if err != nil {
		switch errors.Cause(err) {
		case nil:
		case context.DeadlineExceeded:
		case context.Canceled:
			return map[string]aranet.Sensor{}, errors.Wrap(err, "scan for devices cancelled")
		default:
			return map[string]aranet.Sensor{}, errors.Wrap(err, "failed to scan for devices")
		}
	}

	sensorMap := map[string]aranet.Sensor{}

	for _, a := range ads {
		addr := a.Addr().String()
		name := advertisementToName(a)
		sensorMap[name] = &BleSensor{
			Addr:         addr,
			LocalName:    name,
			ScanDuration: scanner.ScanDuration,
			Retries:      scanner.Retries,
		}
	}

	return sensorMap, nil
}

// Connect scans with default settings and returns the first Aranet4 found.
// The host bluetooth adapter is opened on first use.
func Connect() (aranet.Sensor, error) {
	if err := ensureDefaultDevice(); err != nil {
		return nil, err
	}

	scanner := BleScanner{
		ScanDuration: DefaultScanDuration,
		Retries:      DefaultRetries,
	}

	sensors, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	for _, sensor := range sensors {
		return sensor, nil
	}

	return nil, errors.New("no aranet4 devices found")
}

func aranetOnlyFilter(a ble.Advertisement) bool {
	if !a.Connectable() {
		return false
	}
	if ble.Contains(a.Services(), advertisedServiceUuid) {
		return true
	}

	return strings.HasPrefix(a.LocalName(), deviceNamePrefix)
}

func advertisementToName(a ble.Advertisement) string {
	name := strings.TrimSpace(a.LocalName())
	if name == "" {
		// nameless advertisement, fall back to the hw address
		name = a.Addr().String()
	}
	return name
}
