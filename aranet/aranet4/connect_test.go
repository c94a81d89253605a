package aranet4

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// stubAdapter replaces the adapter opener and resets the once-per-process
// default device state, so each test sees a fresh process.
func stubAdapter(t *testing.T, open func() (ble.Device, error)) {
	t.Helper()

	prevOpen := openDefaultDevice
	openDefaultDevice = open
	defaultDeviceOnce = sync.Once{}
	defaultDeviceErr = nil

	t.Cleanup(func() {
		openDefaultDevice = prevOpen
		defaultDeviceOnce = sync.Once{}
		defaultDeviceErr = nil
	})
}

type fakeDevice struct {
	scan      func(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	scanCalls int
}

func (d *fakeDevice) AddService(svc *ble.Service) error     { return nil }
func (d *fakeDevice) RemoveAllServices() error              { return nil }
func (d *fakeDevice) SetServices(svcs []*ble.Service) error { return nil }
func (d *fakeDevice) Stop() error                           { return nil }
func (d *fakeDevice) Advertise(ctx context.Context, adv ble.Advertisement) error {
	return nil
}
func (d *fakeDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	return nil
}
func (d *fakeDevice) AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error {
	return nil
}
func (d *fakeDevice) AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error {
	return nil
}
func (d *fakeDevice) AdvertiseIBeaconData(ctx context.Context, b []byte) error {
	return nil
}
func (d *fakeDevice) AdvertiseIBeacon(ctx context.Context, u ble.UUID, major, minor uint16, pwr int8) error {
	return nil
}
func (d *fakeDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	d.scanCalls++
	return d.scan(ctx, allowDup, h)
}
func (d *fakeDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	return nil, errors.New("not implemented")
}

func TestConnectOpensAdapterItself(t *testing.T) {
	adv := &fakeAdvertisement{
		name:        "Aranet4 1A2B3",
		addr:        "c0:ff:ee:aa:bb:cc",
		services:    []ble.UUID{advertisedServiceUuid},
		connectable: true,
	}
	dev := &fakeDevice{
		scan: func(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
			h(adv)
			return nil
		},
	}
	opened := 0
	stubAdapter(t, func() (ble.Device, error) {
		opened++
		return dev, nil
	})

	// no prior SetDefaultDevice call anywhere
	sensor, err := Connect()
	require.NoError(t, err)
	require.Equal(t, 1, opened)
	require.Equal(t, "Aranet4 1A2B3", sensor.Name())
	require.Equal(t, "c0:ff:ee:aa:bb:cc", sensor.Address())
}

func TestConnectFailsWithoutAdapter(t *testing.T) {
	stubAdapter(t, func() (ble.Device, error) {
		return nil, errors.New("hci0 missing")
	})

	_, err := Connect()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no bluetooth adapter available")
}

func TestConnectNoDevicesFound(t *testing.T) {
	dev := &fakeDevice{
		scan: func(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
			return nil
		},
	}
	stubAdapter(t, func() (ble.Device, error) { return dev, nil })

	_, err := Connect()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no aranet4 devices found")
}

func TestScanRetriesUntilExhausted(t *testing.T) {
	dev := &fakeDevice{
		scan: func(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
			return errors.New("radio down")
		},
	}
	ble.SetDefaultDevice(dev)

	scanner := BleScanner{
		ScanDuration: 50 * time.Millisecond,
		Retries:      3,
	}

	_, err := scanner.Scan()
	require.Error(t, err)
	require.Contains(t, err.Error(), "all retries to scan failed")
	require.Equal(t, 3, dev.scanCalls)
}
