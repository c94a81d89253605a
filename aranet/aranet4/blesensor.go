package aranet4

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

var (
	sensorServiceUuid     = ble.MustParse("f0cd140095da4f4b9ac8aa55d312af0c")
	currentReadingsUuid   = ble.MustParse("f0cd300195da4f4b9ac8aa55d312af0c")
	deviceInfoServiceUuid = ble.UUID16(0x180a)
	manufacturerNameUuid  = ble.UUID16(0x2a29)
	modelNumberUuid       = ble.UUID16(0x2a24)
	serialNumberUuid      = ble.UUID16(0x2a25)
	hardwareRevisionUuid  = ble.UUID16(0x2a27)
	firmwareRevisionUuid  = ble.UUID16(0x2a26)
)

type BleSensor struct {
	Addr         string
	LocalName    string
	ScanDuration time.Duration
	Retries      int
}

func (sensor *BleSensor) Address() string {
	return sensor.Addr
}

func (sensor *BleSensor) Name() string {
	return sensor.LocalName
}

func (sensor *BleSensor) Measurements() (aranet.SensorData, error) {
	var lastErr error
	var values aranet.SensorData
	for i := 0; i < sensor.Retries; i++ {
		values, lastErr = sensor.readMeasurements()
		if lastErr == nil {
			return values, nil
		}
		if i+1 < sensor.Retries {
			log.Errorf("retrying error in measurements: %s", lastErr)
			time.Sleep(sensor.ScanDuration) // self-pacing interval in an attempt to fix freezes
		}
	}

	return aranet.SensorData{}, errors.Wrap(lastErr, "all retries to read measurements failed")
}

func (sensor *BleSensor) Info() (aranet.DeviceInfo, error) {
	var lastErr error
	var info aranet.DeviceInfo
	for i := 0; i < sensor.Retries; i++ {
		info, lastErr = sensor.readInfo()
		if lastErr == nil {
			return info, nil
		}
		if i+1 < sensor.Retries {
			log.Errorf("retrying error in info: %s", lastErr)
			time.Sleep(sensor.ScanDuration)
		}
	}

	return aranet.DeviceInfo{}, errors.Wrap(lastErr, "all retries to read device info failed")
}

func (sensor *BleSensor) readMeasurements() (aranet.SensorData, error) {
	var values aranet.SensorData
	err := sensor.withConnection(func(cln ble.Client) error {
		c, err := discoverCharacteristic(cln, sensorServiceUuid, currentReadingsUuid)
		if err != nil {
			return err
		}

		log.Debugf("reading current readings characteristic")
		payload, err := cln.ReadCharacteristic(c)
		log.Debugf("finished reading characteristic")
		if err != nil {
			return errors.Wrap(err, "failed to read characteristic value")
		}

		values, err = decodeSensorData(payload)
		return err
	})

	return values, err
}

func (sensor *BleSensor) readInfo() (aranet.DeviceInfo, error) {
	var info aranet.DeviceInfo
	err := sensor.withConnection(func(cln ble.Client) error {
		log.Debugf("discovering device info service")
		services, err := cln.DiscoverServices([]ble.UUID{deviceInfoServiceUuid})
		if err != nil {
			return errors.Wrap(err, "couldn't discover device info service")
		}
		if len(services) == 0 {
			return errors.New("did not find device info service")
		}

		characteristics, err := cln.DiscoverCharacteristics(nil, services[0])
		if err != nil {
			return errors.Wrap(err, "couldn't discover device info characteristics")
		}

		for _, c := range characteristics {
			raw, err := cln.ReadCharacteristic(c)
			if err != nil {
				return errors.Wrapf(err, "failed to read device info characteristic %s", c.UUID)
			}
			value := string(bytes.TrimRight(raw, "\x00"))

			switch {
			case c.UUID.Equal(manufacturerNameUuid):
				info.ManufacturerName = value
			case c.UUID.Equal(modelNumberUuid):
				info.ModelNumber = value
			case c.UUID.Equal(serialNumberUuid):
				info.SerialNumber = value
			case c.UUID.Equal(hardwareRevisionUuid):
				info.HardwareRevision = value
			case c.UUID.Equal(firmwareRevisionUuid):
				info.FirmwareRevision = value
			}
		}

		return nil
	})

	return info, err
}

func (sensor *BleSensor) withConnection(fn func(cln ble.Client) error) error {
	filter := func(a ble.Advertisement) bool {
		return strings.EqualFold(a.Addr().String(), sensor.Addr)
	}

	log.Debugf("connecting to device")
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), sensor.ScanDuration))
	cln, err := ble.Connect(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "couldn't connect to ble")
	}

	// Normally, the connection is disconnected by us after we are done reading.
	// However, it can be asynchronously disconnected by the remote peripheral.
	// So we wait(detect) the disconnection in the go routine.
	done := make(chan struct{})
	go func() {
		<-cln.Disconnected()
		log.Debugf("device disconnected")
		close(done)
	}()
	defer func() {
		log.Debugf("closing connection")
		_ = cln.CancelConnection()
		<-done
	}()

	return fn(cln)
}

func discoverCharacteristic(cln ble.Client, serviceUuid ble.UUID, charUuid ble.UUID) (*ble.Characteristic, error) {
	log.Debugf("discovering services")
	services, err := cln.DiscoverServices([]ble.UUID{serviceUuid})
	log.Debugf("finished discovering services")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover services")
	}
	if len(services) == 0 {
		return nil, errors.New("did not find expected sensor service")
	}

	log.Debugf("discovering characteristics")
	characteristics, err := cln.DiscoverCharacteristics([]ble.UUID{charUuid}, services[0])
	log.Debugf("finished discovering characteristics")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover characteristic")
	}
	if len(characteristics) == 0 {
		return nil, errors.New("did not find expected characteristic")
	}

	return characteristics[0], nil
}
