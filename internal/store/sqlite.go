package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id          TEXT PRIMARY KEY,
	case_id     TEXT NOT NULL,
	vendor_name TEXT NOT NULL,
	filename    TEXT,
	status      TEXT NOT NULL DEFAULT 'queued',
	attempts    INTEGER NOT NULL DEFAULT 0,
	warnings    TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS offers (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES extraction_runs(id),
	case_id    TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_case_id ON extraction_runs(case_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_offers_case_id ON offers(case_id);
CREATE INDEX IF NOT EXISTS idx_offers_run_id ON offers(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, caseID, vendorName, filename string) (*model.ExtractionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, case_id, vendor_name, filename, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, caseID, vendorName, filename, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, attempts int, warnings []string) error {
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, attempts = ?, warnings = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), attempts, string(warningsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, attempts int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, attempts = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), attempts, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, case_id, vendor_name, filename, status, attempts, warnings, error, created_at, updated_at
		 FROM extraction_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `SELECT id, case_id, vendor_name, filename, status, attempts, warnings, error, created_at, updated_at
	 FROM extraction_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CaseID != "" {
		query += ` AND case_id = ?`
		args = append(args, filter.CaseID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ExtractionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveOffers(ctx context.Context, runID, caseID string, offers []model.OfferRecord) ([]model.StoredOfferRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stored := make([]model.StoredOfferRecord, 0, len(offers))

	// Timestamps step by a microsecond so insertion order survives the
	// ORDER BY created_at read path.
	base := time.Now().UTC()
	for i, offer := range offers {
		id := uuid.New().String()
		now := base.Add(time.Duration(i) * time.Microsecond)

		recordJSON, err := json.Marshal(offer)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal offer")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO offers (id, run_id, case_id, record, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, runID, caseID, string(recordJSON), now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert offer for run %s", runID)
		}

		stored = append(stored, model.StoredOfferRecord{
			ID:          id,
			RunID:       runID,
			CaseID:      caseID,
			CreatedAt:   now,
			OfferRecord: offer,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit offers")
	}
	return stored, nil
}

func (s *SQLiteStore) ListOffers(ctx context.Context, caseID string) ([]model.StoredOfferRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, case_id, record, created_at FROM offers
		 WHERE case_id = ? ORDER BY created_at, id`,
		caseID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list offers for case %s", caseID)
	}
	defer rows.Close()

	var offers []model.StoredOfferRecord
	for rows.Next() {
		var o model.StoredOfferRecord
		var recordJSON string

		if err := rows.Scan(&o.ID, &o.RunID, &o.CaseID, &recordJSON, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan offer")
		}
		if err := json.Unmarshal([]byte(recordJSON), &o.OfferRecord); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal offer record")
		}
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "sqlite: list offers iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var filename, errMsg sql.NullString
	var warningsJSON sql.NullString

	err := row.Scan(&r.ID, &r.CaseID, &r.VendorName, &filename, &r.Status, &r.Attempts, &warningsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Filename = filename.String
	r.Error = errMsg.String
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &r.Warnings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal warnings")
		}
	}
	return &r, nil
}
