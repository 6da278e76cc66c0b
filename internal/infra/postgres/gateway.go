// Package postgres stores the assignment set one JSONB row per
// assignment, keyed by title, with an explicit position column so
// creation order survives reloads.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"assignment-tracker-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type Gateway struct {
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

func (g *Gateway) Load(ctx context.Context) ([]domain.Assignment, error) {
	rows, err := g.pool.Query(ctx, `SELECT title, data FROM assignments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		var title string
		var raw []byte
		if err := rows.Scan(&title, &raw); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		var a domain.Assignment
		if err := json.Unmarshal(raw, &a); err != nil {
			log.Printf("skipping corrupt record %q: %v", title, err)
			continue
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	return assignments, nil
}

// Save rewrites the table to match the in-memory set in one
// transaction: upserts current titles, deletes everything else.
func (g *Gateway) Save(ctx context.Context, assignments []domain.Assignment) error {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	titles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode %q: %w", a.Title, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO assignments (title, position, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (title) DO UPDATE SET position = EXCLUDED.position, data = EXCLUDED.data`,
			a.Title, a.Seq, raw); err != nil {
			return fmt.Errorf("upsert %q: %w", a.Title, err)
		}
		titles = append(titles, a.Title)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE NOT (title = ANY($1))`, titles); err != nil {
		return fmt.Errorf("prune removed assignments: %w", err)
	}
	return tx.Commit(ctx)
}
