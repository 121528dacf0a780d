package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brokerdesk/coverage-cli/internal/db"
	"github.com/brokerdesk/coverage-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO extraction_runs (id, case_id, vendor_name, filename, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_run_status": `UPDATE extraction_runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE extraction_runs SET status = $1, attempts = $2, warnings = $3, updated_at = $4 WHERE id = $5`,
	"fail_run":          `UPDATE extraction_runs SET status = $1, attempts = $2, error = $3, updated_at = $4 WHERE id = $5`,
	"get_run":           `SELECT id, case_id, vendor_name, filename, status, attempts, warnings, error, created_at, updated_at FROM extraction_runs WHERE id = $1`,
	"list_offers":       `SELECT id, run_id, case_id, record, created_at FROM offers WHERE case_id = $1 ORDER BY created_at, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	case_id     TEXT NOT NULL,
	vendor_name TEXT NOT NULL,
	filename    TEXT,
	status      TEXT NOT NULL DEFAULT 'queued',
	attempts    INTEGER NOT NULL DEFAULT 0,
	warnings    JSONB,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS offers (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES extraction_runs(id),
	case_id    TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_case_id ON extraction_runs(case_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_offers_case_id ON offers(case_id);
CREATE INDEX IF NOT EXISTS idx_offers_run_id ON offers(run_id);
CREATE INDEX IF NOT EXISTS idx_offers_case_created ON offers(case_id, created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, caseID, vendorName, filename string) (*model.ExtractionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, case_id, vendor_name, filename, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, caseID, vendorName, filename, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ExtractionRun{
		ID:         id,
		CaseID:     caseID,
		VendorName: vendorName,
		Filename:   filename,
		Status:     model.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, attempts int, warnings []string) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal warnings")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, attempts = $2, warnings = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), attempts, warningsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, attempts int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, attempts = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusFailed), attempts, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, case_id, vendor_name, filename, status, attempts, warnings, error, created_at, updated_at FROM extraction_runs WHERE id = $1`,
		runID,
	)
	return scanPostgresRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `SELECT id, case_id, vendor_name, filename, status, attempts, warnings, error, created_at, updated_at FROM extraction_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CaseID != "" {
		query += fmt.Sprintf(` AND case_id = $%d`, argIdx)
		args = append(args, filter.CaseID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ExtractionRun
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveOffers(ctx context.Context, runID, caseID string, offers []model.OfferRecord) ([]model.StoredOfferRecord, error) {
	stored := make([]model.StoredOfferRecord, 0, len(offers))
	copyRows := make([][]any, 0, len(offers))

	// Timestamps step by a microsecond so insertion order survives the
	// ORDER BY created_at read path.
	base := time.Now().UTC()
	for i, offer := range offers {
		id := uuid.New().String()
		createdAt := base.Add(time.Duration(i) * time.Microsecond)

		recordJSON, err := json.Marshal(offer)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal offer")
		}

		copyRows = append(copyRows, []any{id, runID, caseID, recordJSON, createdAt})
		stored = append(stored, model.StoredOfferRecord{
			ID:          id,
			RunID:       runID,
			CaseID:      caseID,
			CreatedAt:   createdAt,
			OfferRecord: offer,
		})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "offers",
		[]string{"id", "run_id", "case_id", "record", "created_at"}, copyRows); err != nil {
		return nil, eris.Wrapf(err, "postgres: save offers for run %s", runID)
	}
	return stored, nil
}

func (s *PostgresStore) ListOffers(ctx context.Context, caseID string) ([]model.StoredOfferRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, case_id, record, created_at FROM offers WHERE case_id = $1 ORDER BY created_at, id`,
		caseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list offers for case %s", caseID)
	}
	defer rows.Close()

	var offers []model.StoredOfferRecord
	for rows.Next() {
		var o model.StoredOfferRecord
		var recordJSON []byte

		if err := rows.Scan(&o.ID, &o.RunID, &o.CaseID, &recordJSON, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan offer")
		}
		if err := json.Unmarshal(recordJSON, &o.OfferRecord); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal offer record")
		}
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "postgres: list offers iterate")
}

func scanPostgresRun(row scannable) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var filename, errMsg *string
	var warningsJSON []byte

	err := row.Scan(&r.ID, &r.CaseID, &r.VendorName, &filename, &r.Status, &r.Attempts, &warningsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if filename != nil {
		r.Filename = *filename
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &r.Warnings); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal warnings")
		}
	}
	return &r, nil
}
