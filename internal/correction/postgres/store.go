// Package postgres stores correction block results in PostgreSQL.
//
// Each block is one row keyed by (file_id, block_index). Writes are
// idempotent upserts so a block can be re-stored any number of times, and
// concurrent runs over different files never contend on the same row.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// Schema is the DDL for the transcript_corrections table. [Store.Migrate]
// applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS transcript_corrections (
    file_id           TEXT             NOT NULL,
    block_index       INTEGER          NOT NULL,
    segment_indices   JSONB            NOT NULL DEFAULT '[]',
    original_text     TEXT             NOT NULL DEFAULT '',
    corrected_text    TEXT             NOT NULL DEFAULT '',
    alignments        JSONB            NOT NULL DEFAULT '[]',
    status            TEXT             NOT NULL,
    error             TEXT             NOT NULL DEFAULT '',
    validation_issues JSONB            NOT NULL DEFAULT '[]',
    retry_count       INTEGER          NOT NULL DEFAULT 0,
    input_length      INTEGER          NOT NULL DEFAULT 0,
    output_length     INTEGER          NOT NULL DEFAULT 0,
    length_ratio      DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ      NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (file_id, block_index)
);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [correction.Repository] backed by PostgreSQL. It is safe for
// concurrent use.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

var _ correction.Repository = (*Store)(nil)

// New returns a Store on db. Call [Store.Migrate] before the first query.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool to dsn, checks it and applies [Schema].
// Release the pool with [Store.Close].
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by [Connect]. It is a no-op for stores
// built with [New].
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Migrate creates the transcript_corrections table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Upsert inserts r or replaces the row stored under (fileID, r.BlockIndex).
func (s *Store) Upsert(ctx context.Context, fileID string, r correction.BlockResult) error {
	segJSON, err := json.Marshal(orEmpty(r.SegmentIndices))
	if err != nil {
		return fmt.Errorf("postgres: marshal segment_indices: %w", err)
	}
	alignJSON, err := json.Marshal(orEmpty(r.Alignments))
	if err != nil {
		return fmt.Errorf("postgres: marshal alignments: %w", err)
	}
	issuesJSON, err := json.Marshal(orEmpty(r.ValidationIssues))
	if err != nil {
		return fmt.Errorf("postgres: marshal validation_issues: %w", err)
	}

	const query = `
		INSERT INTO transcript_corrections (
			file_id, block_index, segment_indices, original_text, corrected_text,
			alignments, status, error, validation_issues, retry_count,
			input_length, output_length, length_ratio
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (file_id, block_index) DO UPDATE SET
			segment_indices   = EXCLUDED.segment_indices,
			original_text     = EXCLUDED.original_text,
			corrected_text    = EXCLUDED.corrected_text,
			alignments        = EXCLUDED.alignments,
			status            = EXCLUDED.status,
			error             = EXCLUDED.error,
			validation_issues = EXCLUDED.validation_issues,
			retry_count       = EXCLUDED.retry_count,
			input_length      = EXCLUDED.input_length,
			output_length     = EXCLUDED.output_length,
			length_ratio      = EXCLUDED.length_ratio,
			updated_at        = now()`

	_, err = s.db.Exec(ctx, query,
		fileID, r.BlockIndex, segJSON, r.OriginalText, r.CorrectedText,
		alignJSON, string(r.Status), r.Error, issuesJSON, r.RetryCount,
		r.InputLength, r.OutputLength, r.LengthRatio,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s/%d: %w", fileID, r.BlockIndex, err)
	}
	return nil
}

// FindAll returns the stored blocks of fileID ordered by block index.
func (s *Store) FindAll(ctx context.Context, fileID string) ([]correction.BlockResult, error) {
	const query = `
		SELECT block_index, segment_indices, original_text, corrected_text,
		       alignments, status, error, validation_issues, retry_count,
		       input_length, output_length, length_ratio
		FROM transcript_corrections
		WHERE file_id = $1
		ORDER BY block_index`

	rows, err := s.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find %s: %w", fileID, err)
	}
	defer rows.Close()

	out := []correction.BlockResult{}
	for rows.Next() {
		var (
			r                              correction.BlockResult
			status                         string
			segJSON, alignJSON, issuesJSON []byte
		)
		if err := rows.Scan(
			&r.BlockIndex, &segJSON, &r.OriginalText, &r.CorrectedText,
			&alignJSON, &status, &r.Error, &issuesJSON, &r.RetryCount,
			&r.InputLength, &r.OutputLength, &r.LengthRatio,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan block: %w", err)
		}
		r.Status = correction.Status(status)
		if err := unmarshalBlock(&r, segJSON, alignJSON, issuesJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find %s: %w", fileID, err)
	}
	return out, nil
}

func unmarshalBlock(r *correction.BlockResult, segJSON, alignJSON, issuesJSON []byte) error {
	if err := json.Unmarshal(segJSON, &r.SegmentIndices); err != nil {
		return fmt.Errorf("postgres: unmarshal segment_indices: %w", err)
	}
	r.Alignments = []types.SegmentAlignment{}
	if err := json.Unmarshal(alignJSON, &r.Alignments); err != nil {
		return fmt.Errorf("postgres: unmarshal alignments: %w", err)
	}
	if err := json.Unmarshal(issuesJSON, &r.ValidationIssues); err != nil {
		return fmt.Errorf("postgres: unmarshal validation_issues: %w", err)
	}
	if len(r.ValidationIssues) == 0 {
		r.ValidationIssues = nil
	}
	return nil
}

// orEmpty returns s, or an empty non-nil slice so JSON encodes "[]" rather
// than "null".
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
