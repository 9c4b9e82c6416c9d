package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	status     INTEGER NOT NULL DEFAULT 0,
	pin        INTEGER NOT NULL DEFAULT 0,
	ip_address TEXT,
	last_seen  TIMESTAMP
);`

// Repository persists device registration records in a local SQLite file.
// It implements application.DeviceRepository.
type Repository struct {
	db *sql.DB
}

func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) List(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, status, pin, ip_address, last_seen FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading devices: %w", err)
	}
	return devices, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, status, pin, ip_address, last_seen FROM devices WHERE id = ?`, id)

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Register stores a new device record. If the id is already taken the
// existing record is returned unchanged; the conflict clause makes
// concurrent registrations of the same id race-free.
func (r *Repository) Register(ctx context.Context, device domain.Device) (domain.Device, error) {
	var ip any
	if device.IPAddress != "" {
		ip = device.IPAddress
	}
	var seen any
	if device.LastSeen != nil {
		seen = device.LastSeen.UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, type, status, pin, ip_address, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		device.ID, device.Name, device.Type, device.Status, device.Pin, ip, seen)
	if err != nil {
		return domain.Device{}, fmt.Errorf("inserting device: %w", err)
	}

	stored, err := r.Get(ctx, device.ID)
	if err != nil {
		return domain.Device{}, err
	}
	if stored == nil {
		return domain.Device{}, fmt.Errorf("device %s missing after insert", device.ID)
	}
	return *stored, nil
}

// Touch updates a registered device's last-seen timestamp. Unregistered
// ids are a no-op.
func (r *Repository) Touch(ctx context.Context, id string, seen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = ? WHERE id = ?`, seen.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (domain.Device, error) {
	var (
		device domain.Device
		ip     sql.NullString
		seen   sql.NullTime
	)
	if err := row.Scan(&device.ID, &device.Name, &device.Type, &device.Status, &device.Pin, &ip, &seen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Device{}, err
		}
		return domain.Device{}, fmt.Errorf("scanning device: %w", err)
	}
	if ip.Valid {
		device.IPAddress = ip.String
	}
	if seen.Valid {
		t := seen.Time
		device.LastSeen = &t
	}
	return device, nil
}
