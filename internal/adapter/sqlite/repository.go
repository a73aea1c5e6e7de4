package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/nexory/readygate/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// AttemptRepository implements domain.AttemptRepository using SQLite.
type AttemptRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*AttemptRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*AttemptRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &AttemptRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *AttemptRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *AttemptRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

func (r *AttemptRepository) Create(ctx context.Context, a domain.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_attempts (id, user_id, plan, status, payment_url, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AttemptID, a.UserID, a.Plan, string(a.Status), a.PaymentURL, a.Error,
		a.CreatedAt.Format(timeFormat),
		a.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting payment attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) Update(ctx context.Context, a domain.PaymentAttempt) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_attempts SET status = ?, payment_url = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		string(a.Status), a.PaymentURL, a.Error,
		time.Now().UTC().Format(timeFormat), a.AttemptID,
	)
	if err != nil {
		return fmt.Errorf("updating payment attempt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAttemptNotFound
	}

	return nil
}

func (r *AttemptRepository) GetByID(ctx context.Context, attemptID string) (domain.PaymentAttempt, error) {
	return r.scanAttempt(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan, status, payment_url, error, created_at, updated_at
		 FROM payment_attempts WHERE id = ?`, attemptID,
	))
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, plan, status, payment_url, error, created_at, updated_at
		 FROM payment_attempts WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		a, err := r.scanAttemptFromRows(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// scanAttempt scans a single row from QueryRow into a domain.PaymentAttempt.
func (r *AttemptRepository) scanAttempt(row *sql.Row) (domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	var status, createdAt, updatedAt string

	err := row.Scan(&a.AttemptID, &a.UserID, &a.Plan, &status, &a.PaymentURL, &a.Error, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PaymentAttempt{}, domain.ErrAttemptNotFound
		}
		return domain.PaymentAttempt{}, fmt.Errorf("scanning payment attempt: %w", err)
	}

	a.Status = domain.PaymentStatus(status)
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return a, nil
}

// scanAttemptFromRows scans a single row from Rows (used in ListByUser).
func (r *AttemptRepository) scanAttemptFromRows(rows *sql.Rows) (domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	var status, createdAt, updatedAt string

	err := rows.Scan(&a.AttemptID, &a.UserID, &a.Plan, &status, &a.PaymentURL, &a.Error, &createdAt, &updatedAt)
	if err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("scanning payment attempt row: %w", err)
	}

	a.Status = domain.PaymentStatus(status)
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return a, nil
}
