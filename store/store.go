package store

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/alepar/aranet4/aranet"
)

// ErrNotFound is returned by Last when the device has no readings yet.
var ErrNotFound = errors.New("no readings found")

// Reading is a stored sensor snapshot.
type Reading struct {
	Device  string
	TakenAt time.Time
	Data    aranet.SensorData
}

// Store keeps readings per device.
type Store interface {
	io.Closer

	// AddDevice declares a new device id
	AddDevice(ctx context.Context, id string) error

	// Devices returns the known device ids
	Devices(ctx context.Context) ([]string, error)

	// Put stores a reading for the device id
	Put(ctx context.Context, id string, at time.Time, data aranet.SensorData) error

	// Last returns the most recent reading for the device id
	Last(ctx context.Context, id string) (Reading, error)

	// Range returns readings for the device id within [beg, end), oldest first
	Range(ctx context.Context, id string, beg, end time.Time) ([]Reading, error)
}

type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens/creates a SQLite DB file and ensures tables exist.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite at %q", path)
	}

	// SQLite is not great with many writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "set %s", pragma)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) AddDevice(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO devices (id) VALUES (?)`, id)
	return errors.Wrapf(err, "add device %q", id)
}

func (s *SQLite) Devices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list devices")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan device id")
		}
		ids = append(ids, id)
	}

	return ids, errors.Wrap(rows.Err(), "iterate devices")
}

func (s *SQLite) Put(ctx context.Context, id string, at time.Time, data aranet.SensorData) error {
	if err := s.AddDevice(ctx, id); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO readings
			(device_id, taken_at, co2, temperature, pressure, humidity, battery, status, interval_s, ago_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		at.UTC().Unix(),
		data.Co2,
		data.Temperature,
		data.Pressure,
		data.Humidity,
		data.Battery,
		uint8(data.Status),
		int64(data.Interval/time.Second),
		int64(data.SinceLastUpdate/time.Second),
	)

	return errors.Wrapf(err, "put reading for %q", id)
}

func (s *SQLite) Last(ctx context.Context, id string) (Reading, error) {
	row := s.db.QueryRowContext(ctx, selectReadings+`
		WHERE device_id = ?
		ORDER BY taken_at DESC
		LIMIT 1
	`, id)

	reading, err := scanReading(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return Reading{}, ErrNotFound
	}

	return reading, err
}

func (s *SQLite) Range(ctx context.Context, id string, beg, end time.Time) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, selectReadings+`
		WHERE device_id = ? AND taken_at >= ? AND taken_at < ?
		ORDER BY taken_at ASC
	`, id, beg.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, errors.Wrapf(err, "query readings for %q", id)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	return readings, errors.Wrap(rows.Err(), "iterate readings")
}

const selectReadings = `
	SELECT device_id, taken_at, co2, temperature, pressure, humidity, battery, status, interval_s, ago_s
	FROM readings
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (Reading, error) {
	var (
		r         Reading
		takenAt   int64
		status    uint8
		intervalS int64
		agoS      int64
	)

	err := row.Scan(
		&r.Device,
		&takenAt,
		&r.Data.Co2,
		&r.Data.Temperature,
		&r.Data.Pressure,
		&r.Data.Humidity,
		&r.Data.Battery,
		&status,
		&intervalS,
		&agoS,
	)
	if err != nil {
		return Reading{}, errors.Wrap(err, "scan reading")
	}

	r.TakenAt = time.Unix(takenAt, 0).UTC()
	r.Data.Status = aranet.Status(status)
	r.Data.Interval = time.Duration(intervalS) * time.Second
	r.Data.SinceLastUpdate = time.Duration(agoS) * time.Second

	return r, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin schema transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaDevices,
		schemaReadings,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "apply schema statement %d", i+1)
		}
	}

	return errors.Wrap(tx.Commit(), "commit schema transaction")
}

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY
);
`

const schemaReadings = `
CREATE TABLE IF NOT EXISTS readings (
    device_id TEXT NOT NULL REFERENCES devices(id),
    taken_at INTEGER NOT NULL,
    co2 INTEGER NOT NULL,
    temperature REAL NOT NULL,
    pressure REAL NOT NULL,
    humidity INTEGER NOT NULL,
    battery INTEGER NOT NULL,
    status INTEGER NOT NULL,
    interval_s INTEGER NOT NULL,
    ago_s INTEGER NOT NULL,
    PRIMARY KEY (device_id, taken_at)
);
`
