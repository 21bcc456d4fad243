package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the health-record collaborator used by handlers and the rule engines.
type Store interface {
	InsertHealthRecord(ctx context.Context, arg InsertHealthRecordParams) (HealthRecord, error)
	LatestHealthRecord(ctx context.Context, userID int64) (*HealthRecord, error)
	ListHealthRecords(ctx context.Context, arg ListHealthRecordsParams) ([]HealthRecord, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// HealthRecord is one day of metrics for a user. Metric columns are nullable.
type HealthRecord struct {
	ID             int64              `json:"id"`
	UserID         int64              `json:"user_id"`
	Date           pgtype.Date        `json:"date"`
	Steps          pgtype.Int4        `json:"steps"`
	SleepHours     pgtype.Float8      `json:"sleep_hours"`
	HeartRateAvg   pgtype.Float8      `json:"heart_rate_avg"`
	StressScore    pgtype.Int4        `json:"stress_score"`
	CaloriesBurned pgtype.Float8      `json:"calories_burned"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

const createSchema = `
CREATE TABLE IF NOT EXISTS user_health_data (
    id              BIGSERIAL PRIMARY KEY,
    user_id         BIGINT NOT NULL,
    date            DATE NOT NULL,
    steps           INTEGER,
    sleep_hours     DOUBLE PRECISION,
    heart_rate_avg  DOUBLE PRECISION,
    stress_score    INTEGER CHECK (stress_score BETWEEN 0 AND 100),
    calories_burned DOUBLE PRECISION,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS user_health_data_user_date_idx
    ON user_health_data (user_id, date DESC);
`

// EnsureSchema creates the health data table when it does not exist yet.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const healthRecordColumns = `id, user_id, date, steps, sleep_hours, heart_rate_avg, stress_score, calories_burned, created_at`

func scanHealthRecord(row pgx.Row) (HealthRecord, error) {
	var r HealthRecord
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Date,
		&r.Steps,
		&r.SleepHours,
		&r.HeartRateAvg,
		&r.StressScore,
		&r.CaloriesBurned,
		&r.CreatedAt,
	)
	return r, err
}

const insertHealthRecord = `
INSERT INTO user_health_data (user_id, date, steps, sleep_hours, heart_rate_avg, stress_score, calories_burned)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + healthRecordColumns

type InsertHealthRecordParams struct {
	UserID         int64
	Date           pgtype.Date
	Steps          pgtype.Int4
	SleepHours     pgtype.Float8
	HeartRateAvg   pgtype.Float8
	StressScore    pgtype.Int4
	CaloriesBurned pgtype.Float8
}

func (q *Queries) InsertHealthRecord(ctx context.Context, arg InsertHealthRecordParams) (HealthRecord, error) {
	row := q.db.QueryRow(ctx, insertHealthRecord,
		arg.UserID,
		arg.Date,
		arg.Steps,
		arg.SleepHours,
		arg.HeartRateAvg,
		arg.StressScore,
		arg.CaloriesBurned,
	)
	r, err := scanHealthRecord(row)
	if err != nil {
		return HealthRecord{}, fmt.Errorf("insert health record for user %d: %w", arg.UserID, err)
	}
	return r, nil
}

const latestHealthRecord = `
SELECT ` + healthRecordColumns + `
FROM user_health_data
WHERE user_id = $1
ORDER BY date DESC, id DESC
LIMIT 1`

// LatestHealthRecord returns the most recently dated record, or nil when
// the user has none.
func (q *Queries) LatestHealthRecord(ctx context.Context, userID int64) (*HealthRecord, error) {
	r, err := scanHealthRecord(q.db.QueryRow(ctx, latestHealthRecord, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest health record for user %d: %w", userID, err)
	}
	return &r, nil
}

const listHealthRecords = `
SELECT ` + healthRecordColumns + `
FROM user_health_data
WHERE user_id = $1
ORDER BY date DESC, id DESC
LIMIT $2`

type ListHealthRecordsParams struct {
	UserID int64
	Limit  int32
}

func (q *Queries) ListHealthRecords(ctx context.Context, arg ListHealthRecordsParams) ([]HealthRecord, error) {
	rows, err := q.db.Query(ctx, listHealthRecords, arg.UserID, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("list health records for user %d: %w", arg.UserID, err)
	}
	defer rows.Close()

	items := []HealthRecord{}
	for rows.Next() {
		r, err := scanHealthRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list health records for user %d: %w", arg.UserID, err)
	}
	return items, nil
}
