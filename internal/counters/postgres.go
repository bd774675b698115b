package counters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the counters as loosely-structured JSONB documents, one
// counter field per document, joined by application logic on read.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool once; callers reuse it for the
// process lifetime.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS counter_documents (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL DEFAULT '{}'::jsonb
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) FetchAll(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM counter_documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query counter documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(KnownCounters))
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan counter document: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		for _, name := range KnownCounters {
			if _, seen := out[name]; seen {
				// First document carrying a field wins, matching scan order.
				continue
			}
			if n, ok := doc[name].(float64); ok {
				out[name] = int64(n)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counter documents: %w", err)
	}

	return out, nil
}

// Increment bumps the named counter with a single atomic UPDATE against the
// first document carrying the field, the same document FetchAll reads for it.
// When no document carries the field yet, an upsert keyed by the counter name
// creates one; concurrent first increments collapse onto that upsert.
func (s *PostgresStore) Increment(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE counter_documents
		 SET doc = jsonb_set(doc, ARRAY[$1::text], to_jsonb((doc->>$1)::bigint + 1))
		 WHERE id = (
			SELECT id FROM counter_documents WHERE doc ? $1::text ORDER BY id LIMIT 1
		 )`,
		name,
	)
	if err != nil {
		return fmt.Errorf("increment %s: %w", name, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO counter_documents (id, doc)
		 VALUES ($1, jsonb_build_object($1::text, 1))
		 ON CONFLICT (id) DO UPDATE
		 SET doc = jsonb_set(
			counter_documents.doc,
			ARRAY[$1::text],
			to_jsonb(COALESCE((counter_documents.doc->>$1)::bigint, 0) + 1)
		 )`,
		name,
	)
	if err != nil {
		return fmt.Errorf("create counter %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
