package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn, checks the connection and applies the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStoreFromDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// NewPostgresStoreFromDB wraps an open handle without touching the schema.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// migrate runs database migrations
func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// SaveHealthChecks stores a batch of checks atomically.
func (s *PostgresStore) SaveHealthChecks(ctx context.Context, checks []models.HealthCheck) error {
	if len(checks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO health_checks (
			id, app_uid, check_type, result, status, score,
			latency_ms, reasons, checked_at, last_checked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, c := range checks {
		if err := c.Validate(); err != nil {
			return err
		}
		reasons, err := json.Marshal(nonNil(c.Reasons))
		if err != nil {
			return fmt.Errorf("failed to encode reasons for %s: %w", c.AppUID, err)
		}
		checkedAt := c.Timestamp
		if checkedAt.IsZero() {
			checkedAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx, query,
			uuid.New().String(), c.AppUID, c.CheckType, c.Result, string(c.Status), c.Score,
			c.LatencyMS, string(reasons), checkedAt, c.LastChecked,
		)
		if err != nil {
			return fmt.Errorf("failed to save health check for %s: %w", c.AppUID, err)
		}
	}

	return tx.Commit()
}

// ListHealthChecks returns the most recent checks of one app, newest first.
func (s *PostgresStore) ListHealthChecks(ctx context.Context, appUID string, limit int) ([]models.HealthCheck, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT app_uid, check_type, result, status, score,
			latency_ms, reasons, checked_at, last_checked
		FROM health_checks
		WHERE app_uid = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, appUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []models.HealthCheck
	for rows.Next() {
		var c models.HealthCheck
		var status string
		var reasons []byte
		var lastChecked sql.NullTime

		err := rows.Scan(
			&c.AppUID, &c.CheckType, &c.Result, &status, &c.Score,
			&c.LatencyMS, &reasons, &c.Timestamp, &lastChecked,
		)
		if err != nil {
			return nil, err
		}

		c.Status = models.HealthStatus(status)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &c.Reasons); err != nil {
				return nil, fmt.Errorf("failed to decode reasons: %w", err)
			}
		}
		if lastChecked.Valid {
			c.LastChecked = &lastChecked.Time
		}
		checks = append(checks, c)
	}

	return checks, rows.Err()
}

// LogDecision records an approve/reject in the audit trail
func (s *PostgresStore) LogDecision(ctx context.Context, d *models.Decision) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO decisions (
			id, proposal_id, app_uid, action, actor,
			reason, outcome, final_state, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ProposalID, d.AppUID, string(d.Action), d.Actor,
		d.Reason, string(d.Outcome), string(d.FinalState), d.DecidedAt,
	)

	return err
}

// ListDecisions returns the audit trail of one proposal, newest first.
func (s *PostgresStore) ListDecisions(ctx context.Context, proposalID int64) ([]*models.Decision, error) {
	query := `
		SELECT id, proposal_id, app_uid, action, actor,
			reason, outcome, final_state, decided_at
		FROM decisions
		WHERE proposal_id = $1
		ORDER BY decided_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		var d models.Decision
		var action, outcome string
		var appUID, reason, finalState sql.NullString

		err := rows.Scan(
			&d.ID, &d.ProposalID, &appUID, &action, &d.Actor,
			&reason, &outcome, &finalState, &d.DecidedAt,
		)
		if err != nil {
			return nil, err
		}

		d.AppUID = appUID.String
		d.Action = models.DecisionAction(action)
		d.Reason = reason.String
		d.Outcome = models.DecisionOutcome(outcome)
		d.FinalState = models.ProposalState(finalState.String)
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nonNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
