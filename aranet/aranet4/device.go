package aranet4

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
)

var (
	defaultDeviceOnce sync.Once
	defaultDeviceErr  error
)

// openDefaultDevice is swapped out in tests
var openDefaultDevice = func() (ble.Device, error) {
	return linux.NewDevice()
}

// ensureDefaultDevice opens the host bluetooth adapter and installs it as
// the process-wide default, once. Callers that manage the device themselves
// (like the exporter main) never go through here.
func ensureDefaultDevice() error {
	defaultDeviceOnce.Do(func() {
		d, err := openDefaultDevice()
		if err != nil {
			defaultDeviceErr = errors.Wrap(err, "no bluetooth adapter available")
			return
		}
		ble.SetDefaultDevice(d)
	})

	return defaultDeviceErr
}
