package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	// address to serve prometheus metrics on
	ListenAddr string `mapstructure:"listen_addr"`

	// time interval between sensor reads
	ReadInterval time.Duration `mapstructure:"read_interval"`

	// how long a single ble scan lasts
	ScanDuration time.Duration `mapstructure:"scan_duration"`

	// max number of tries in case of BLE errors
	Retries int `mapstructure:"retries"`

	// path to the sqlite readings database
	DBPath string `mapstructure:"db_path"`

	// nats server url, empty disables publishing
	NatsURL string `mapstructure:"nats_url"`
}

// Load reads aranet4.yaml from the given directory, falling back to the
// working directory and /etc/aranet4. A missing file leaves the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("aranet4")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/aranet4")
	}

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("read_interval", 30*time.Second)
	v.SetDefault("scan_duration", 5*time.Second)
	v.SetDefault("retries", 5)
	v.SetDefault("db_path", "aranet4.db")
	v.SetDefault("nats_url", "")

	v.SetEnvPrefix("ARANET4")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read configuration")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}

	return &cfg, nil
}
