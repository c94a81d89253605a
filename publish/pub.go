package publish

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

const (
	streamName    = "ARANET_READINGS"
	subjectPrefix = "aranet."
)

type NatsPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream

	Stream jetstream.Stream
}

func Connect(ctx context.Context, url string) (*NatsPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to nats at %q", url)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "create jetstream context")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "create readings stream")
	}

	return &NatsPublisher{
		nc:     nc,
		js:     js,
		Stream: stream,
	}, nil
}

func (p *NatsPublisher) Close() {
	_ = p.nc.Drain()
	p.nc.Close()
}

// readingMsg is the wire form of a reading, durations flattened to seconds.
type readingMsg struct {
	Device                 string  `json:"device"`
	TakenAt                string  `json:"taken_at"`
	Co2                    uint16  `json:"co2"`
	Temperature            float32 `json:"temperature"`
	Pressure               float32 `json:"pressure"`
	Humidity               uint8   `json:"humidity"`
	Battery                uint8   `json:"battery"`
	Status                 string  `json:"status"`
	IntervalSeconds        int64   `json:"interval_seconds"`
	SinceLastUpdateSeconds int64   `json:"since_last_update_seconds"`
}

func (p *NatsPublisher) PublishReading(ctx context.Context, device string, at time.Time, data aranet.SensorData) error {
	payload, err := json.Marshal(readingMsg{
		Device:                 device,
		TakenAt:                at.UTC().Format(time.RFC3339),
		Co2:                    data.Co2,
		Temperature:            data.Temperature,
		Pressure:               data.Pressure,
		Humidity:               data.Humidity,
		Battery:                data.Battery,
		Status:                 data.Status.String(),
		IntervalSeconds:        int64(data.Interval / time.Second),
		SinceLastUpdateSeconds: int64(data.SinceLastUpdate / time.Second),
	})
	if err != nil {
		return errors.Wrap(err, "marshal reading")
	}

	_, err = p.js.Publish(ctx, SubjectFor(device), payload)
	return errors.Wrapf(err, "publish reading for %q", device)
}

// SubjectFor maps a device name to its readings subject.
// NATS subject tokens cannot contain spaces or dots.
func SubjectFor(device string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, device)

	return subjectPrefix + token
}
