package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alepar/aranet4/aranet/aranet4"
	"github.com/alepar/aranet4/config"
	"github.com/alepar/aranet4/publish"
	"github.com/alepar/aranet4/store"
)

// metrics to expose to Prometheus
var (
	gaugeCo2Level    = newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	gaugeAtmPressure = newGauge("air_atm_pressure", "Atmospheric Pressure (units: hPa)")
	gaugeHumidity    = newGauge("air_humidity", "Humidity (units: % of relative Humidity)")
	gaugeBattery     = newGauge("air_battery_level", "Device battery charge (units: %)")
	gaugeStatus      = newGauge("air_quality_status", "Air quality indicator (1 green, 2 amber, 3 red)")
	gaugeInterval    = newGauge("air_update_interval_seconds", "Device measurement interval (units: seconds)")
	gaugeSinceUpdate = newGauge("air_seconds_since_update", "Time since the device's last measurement (units: seconds)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"device"},
	)
}

func init() {
	prometheus.MustRegister(gaugeCo2Level)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeAtmPressure)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeBattery)
	prometheus.MustRegister(gaugeStatus)
	prometheus.MustRegister(gaugeInterval)
	prometheus.MustRegister(gaugeSinceUpdate)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	readings, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open readings store: %s", err)
	}
	defer readings.Close()

	var pub *publish.NatsPublisher
	if cfg.NatsURL != "" {
		pub, err = publish.Connect(context.Background(), cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %s", err)
		}
		defer pub.Close()
	}

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(cfg.ListenAddr, nil))
	}()

	for {
		scanAndReceive(cfg, readings, pub)
		time.Sleep(cfg.ReadInterval)
	}
}

func scanAndReceive(cfg *config.Config, readings store.Store, pub *publish.NatsPublisher) {
	// open BLE
	d, err := linux.NewDevice()
	if err != nil {
		log.Errorf("failed to open ble: %s", err)
		return
	}
	ble.SetDefaultDevice(d)
	defer ble.Stop()

	// Scan
	scanner := aranet4.BleScanner{
		ScanDuration: cfg.ScanDuration,
		Retries:      cfg.Retries,
	}
	sensorsMap, err := scanner.Scan()
	if err != nil {
		log.Errorf("failed to scan for sensors: %s", err)
		return
	}

	// Receive from every found sensor
	for name, sensor := range sensorsMap {
		log.Printf("Found: %s addr %s", name, sensor.Address())

		values, err := sensor.Measurements()
		if err != nil {
			log.Errorf("failed to read from sensor %s: %s", name, err)
			continue
		}
		if err := values.Validate(); err != nil {
			log.Errorf("discarding implausible reading from %s: %s", name, err)
			continue
		}

		valuesAsJson, err := json.Marshal(values)
		if err == nil {
			log.Printf("Received: %s", valuesAsJson)
		} else {
			log.Printf("Received: <marshall error: %s>", err)
		}

		gaugeCo2Level.WithLabelValues(name).Set(float64(values.Co2))
		gaugeTemperature.WithLabelValues(name).Set(float64(values.Temperature))
		gaugeAtmPressure.WithLabelValues(name).Set(float64(values.Pressure))
		gaugeHumidity.WithLabelValues(name).Set(float64(values.Humidity))
		gaugeBattery.WithLabelValues(name).Set(float64(values.Battery))
		gaugeStatus.WithLabelValues(name).Set(float64(values.Status))
		gaugeInterval.WithLabelValues(name).Set(values.Interval.Seconds())
		gaugeSinceUpdate.WithLabelValues(name).Set(values.SinceLastUpdate.Seconds())

		takenAt := time.Now().UTC()

		if err := readings.Put(context.Background(), name, takenAt, values); err != nil {
			log.Errorf("failed to store reading from %s: %s", name, err)
		}

		if pub != nil {
			if err := pub.PublishReading(context.Background(), name, takenAt, values); err != nil {
				log.Errorf("failed to publish reading from %s: %s", name, err)
			}
		}
	}
}
