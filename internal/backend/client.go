package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ride-admin/internal/models"
)

const opTimeout = 3 * time.Second

// Client issues direct table operations against the hosted Postgres. The
// connection runs as the console's restricted database role, so row-level
// security applies and denials surface as SQLSTATE 42501.
type Client struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to backend: %w", err)
	}

	return &Client{pool: pool}, nil
}

// NewClient wraps an existing pool.
func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Close releases the pool.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Ping verifies connectivity, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.pool.Ping(ctx)
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, name, email, phone, role, suspended, created_at, updated_at
		from users order by created_at desc`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Suspended, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (c *Client) UpdateUser(ctx context.Context, u models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `update users set name = $1, email = $2, phone = $3, role = $4, suspended = $5, updated_at = $6
		where id = $7`

	_, err := c.pool.Exec(ctx, query, u.Name, u.Email, u.Phone, u.Role, u.Suspended, time.Now(), u.ID)
	return err
}

func (c *Client) ListTrips(ctx context.Context) ([]models.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, ref, scheduled_at, customer_name, customer_email, customer_phone,
		pickup_address, dropoff_address, status, priority, notes, base_price, custom_fees,
		last_reminder_at, driver_id, created_at, updated_at
		from trips order by scheduled_at desc`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (models.Trip, error) {
	var t models.Trip
	var fees []byte
	err := row.Scan(&t.ID, &t.Ref, &t.ScheduledAt, &t.CustomerName, &t.CustomerEmail, &t.CustomerPhone,
		&t.PickupAddress, &t.DropoffAddress, &t.Status, &t.Priority, &t.Notes, &t.BasePrice, &fees,
		&t.LastReminderAt, &t.DriverID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if len(fees) > 0 {
		if err := json.Unmarshal(fees, &t.CustomFees); err != nil {
			return t, fmt.Errorf("failed to decode custom_fees: %w", err)
		}
	}
	return t, nil
}

func (c *Client) InsertTrip(ctx context.Context, t models.Trip) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fees, err := json.Marshal(t.CustomFees)
	if err != nil {
		return fmt.Errorf("failed to encode custom_fees: %w", err)
	}

	query := `insert into trips (id, ref, scheduled_at, customer_name, customer_email, customer_phone,
		pickup_address, dropoff_address, status, priority, notes, base_price, custom_fees,
		last_reminder_at, driver_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = c.pool.Exec(ctx, query, t.ID, t.Ref, t.ScheduledAt, t.CustomerName, t.CustomerEmail, t.CustomerPhone,
		t.PickupAddress, t.DropoffAddress, t.Status, t.Priority, t.Notes, t.BasePrice, fees,
		t.LastReminderAt, t.DriverID, time.Now(), time.Now())
	return err
}

func (c *Client) UpdateTrip(ctx context.Context, t models.Trip) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fees, err := json.Marshal(t.CustomFees)
	if err != nil {
		return fmt.Errorf("failed to encode custom_fees: %w", err)
	}

	query := `update trips set scheduled_at = $1, customer_name = $2, customer_email = $3,
		customer_phone = $4, pickup_address = $5, dropoff_address = $6, status = $7, priority = $8,
		notes = $9, base_price = $10, custom_fees = $11, last_reminder_at = $12, driver_id = $13,
		updated_at = $14 where id = $15`

	_, err = c.pool.Exec(ctx, query, t.ScheduledAt, t.CustomerName, t.CustomerEmail,
		t.CustomerPhone, t.PickupAddress, t.DropoffAddress, t.Status, t.Priority,
		t.Notes, t.BasePrice, fees, t.LastReminderAt, t.DriverID, time.Now(), t.ID)
	return err
}

func (c *Client) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, user_id, status, available, created_at, updated_at
		from drivers order by created_at desc`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.UserID, &d.Status, &d.Available, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (c *Client) UpdateDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `update drivers set status = $1, updated_at = $2 where id = $3`
	_, err := c.pool.Exec(ctx, query, status, time.Now(), driverID)
	return err
}

func (c *Client) UpdateDriverAvailability(ctx context.Context, driverID string, available bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `update drivers set available = $1, updated_at = $2 where id = $3`
	_, err := c.pool.Exec(ctx, query, available, time.Now(), driverID)
	return err
}

func (c *Client) ListDocuments(ctx context.Context, driverID string) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, driver_id, type, expires_at, verified, created_at
		from documents where driver_id = $1 order by created_at desc`

	rows, err := c.pool.Query(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.DriverID, &d.Type, &d.ExpiresAt, &d.Verified, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (c *Client) InsertActivityLog(ctx context.Context, entry models.ActivityLog) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `insert into activity_logs (id, subject_id, actor_id, action, details, created_at)
		values ($1, $2, $3, $4, $5, $6)`

	_, err := c.pool.Exec(ctx, query, entry.ID, entry.SubjectID, entry.ActorID, entry.Action, entry.Details, entry.CreatedAt)
	return err
}

func (c *Client) ListActivityLogs(ctx context.Context, subjectID string) ([]models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, subject_id, actor_id, action, details, created_at
		from activity_logs where subject_id = $1 order by created_at desc`

	rows, err := c.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ActivityLog
	for rows.Next() {
		var e models.ActivityLog
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.ActorID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Client) ListPayments(ctx context.Context) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `select id, trip_id, amount, currency, status, created_at
		from payments order by created_at desc`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.TripID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
