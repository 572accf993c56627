// internal/flowcache/store.go

// Package flowcache persists and replays chains of solved navigation
// steps. A repeated run that starts from the same URL with the same
// upcoming steps jumps straight to the recorded destination instead of
// re-resolving every click.
package flowcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL fragment repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// NewStore verifies the connection and returns the repository.
func NewStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("flowcache"),
	}, nil
}

const schemaSQL = `
    CREATE TABLE IF NOT EXISTS flow_fragments (
        id UUID PRIMARY KEY,
        site TEXT NOT NULL,
        start_url TEXT NOT NULL,
        end_url TEXT NOT NULL,
        steps JSONB NOT NULL,
        steps_hash TEXT NOT NULL,
        success_count INT NOT NULL DEFAULT 1,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );
    CREATE UNIQUE INDEX IF NOT EXISTS flow_fragments_identity
        ON flow_fragments (site, start_url, steps_hash, end_url);
`

// EnsureSchema creates the fragment table and its identity index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure flow_fragments schema: %w", err)
	}
	return nil
}

// stepsHash fingerprints the normalized step sequence so the identity
// index stays small regardless of step count.
func stepsHash(steps []schemas.FragmentStep) string {
	var b []byte
	for _, st := range steps {
		b = append(b, NormalizeStep(st.Action, st.Target)...)
		b = append(b, '\n')
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// SaveOrUpdate upserts a fragment. An identical (site, start_url, steps,
// end_url) tuple has its success_count incremented instead of gaining a
// duplicate row, so re-recording the same run twice is idempotent in
// shape and only bumps the counter.
func (s *Store) SaveOrUpdate(ctx context.Context, frag schemas.FlowFragment) error {
	stepsJSON, err := json.Marshal(frag.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal fragment steps: %w", err)
	}

	id := frag.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
        INSERT INTO flow_fragments (id, site, start_url, end_url, steps, steps_hash, success_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
        ON CONFLICT (site, start_url, steps_hash, end_url) DO UPDATE SET
            success_count = flow_fragments.success_count + 1,
            updated_at = EXCLUDED.updated_at;
    `
	if _, err := s.pool.Exec(ctx, query,
		id, frag.Site, frag.StartURL, frag.EndURL,
		stepsJSON, stepsHash(frag.Steps), now,
	); err != nil {
		return fmt.Errorf("failed to upsert fragment: %w", err)
	}
	s.log.Debug("Fragment recorded.",
		zap.String("site", frag.Site),
		zap.Int("steps", len(frag.Steps)),
	)
	return nil
}

// ListBySite returns a site's fragments, most-proven first.
func (s *Store) ListBySite(ctx context.Context, site string) ([]schemas.FlowFragment, error) {
	query := `
        SELECT id, site, start_url, end_url, steps, success_count, created_at, updated_at
        FROM flow_fragments
        WHERE site = $1
        ORDER BY success_count DESC, updated_at DESC;
    `
	rows, err := s.pool.Query(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer rows.Close()

	var frags []schemas.FlowFragment
	for rows.Next() {
		var f schemas.FlowFragment
		var stepsJSON []byte
		if err := rows.Scan(
			&f.ID, &f.Site, &f.StartURL, &f.EndURL,
			&stepsJSON, &f.SuccessCount, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fragment row: %w", err)
		}
		if err := json.Unmarshal(stepsJSON, &f.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode fragment steps: %w", err)
		}
		frags = append(frags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return frags, nil
}

// ListAll returns every fragment, for the fragments CLI.
func (s *Store) ListAll(ctx context.Context) ([]schemas.FlowFragment, error) {
	query := `
        SELECT id, site, start_url, end_url, steps, success_count, created_at, updated_at
        FROM flow_fragments
        ORDER BY site ASC, success_count DESC;
    `
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer rows.Close()

	var frags []schemas.FlowFragment
	for rows.Next() {
		var f schemas.FlowFragment
		var stepsJSON []byte
		if err := rows.Scan(
			&f.ID, &f.Site, &f.StartURL, &f.EndURL,
			&stepsJSON, &f.SuccessCount, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fragment row: %w", err)
		}
		if err := json.Unmarshal(stepsJSON, &f.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode fragment steps: %w", err)
		}
		frags = append(frags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return frags, nil
}

// Prune deletes fragments that have not been reused since the cutoff and
// never accumulated the minimum success count. Returns rows removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time, minSuccess int) (int64, error) {
	query := `
        DELETE FROM flow_fragments
        WHERE updated_at < $1 AND success_count < $2;
    `
	tag, err := s.pool.Exec(ctx, query, olderThan.UTC(), minSuccess)
	if err != nil {
		return 0, fmt.Errorf("failed to prune fragments: %w", err)
	}
	return tag.RowsAffected(), nil
}
