// Package userdict persists user dictionary entries in PostgreSQL. The parse
// service loads the table at startup and after edits, and installs it into
// the model store.
package userdict

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS user_dictionary (
	word TEXT PRIMARY KEY,
	cost REAL NOT NULL
)`

// Repository reads and writes the user_dictionary table.
type Repository struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewRepository(db *postgres.Client) *Repository {
	return &Repository{
		db:     db,
		logger: slog.Default().With("component", "userdict-repository"),
	}
}

// EnsureSchema creates the table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating user_dictionary table: %w", err)
	}
	return nil
}

// Load returns every stored entry.
func (r *Repository) Load(ctx context.Context) (map[string]float32, error) {
	rows, err := r.db.DB.QueryContext(ctx, `SELECT word, cost FROM user_dictionary`)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrUpstream, "loading user dictionary", err)
	}
	defer rows.Close()

	entries := make(map[string]float32)
	for rows.Next() {
		var word string
		var cost float32
		if err := rows.Scan(&word, &cost); err != nil {
			return nil, fmt.Errorf("scanning user dictionary row: %w", err)
		}
		entries[word] = cost
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.Wrap(perrors.ErrUpstream, "loading user dictionary", err)
	}
	r.logger.Debug("user dictionary loaded", "entries", len(entries))
	return entries, nil
}

// Upsert inserts or updates entries in one transaction. Blank words are
// rejected before anything is written.
func (r *Repository) Upsert(ctx context.Context, entries map[string]float32) error {
	for word := range entries {
		if strings.TrimSpace(word) == "" {
			return perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest, "user dictionary words must not be blank")
		}
	}
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO user_dictionary (word, cost) VALUES ($1, $2)
			 ON CONFLICT (word) DO UPDATE SET cost = EXCLUDED.cost`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for word, cost := range entries {
			if _, err := stmt.ExecContext(ctx, strings.TrimSpace(word), cost); err != nil {
				return fmt.Errorf("upserting %q: %w", word, err)
			}
		}
		return nil
	})
	if err != nil {
		return perrors.Wrap(perrors.ErrUpstream, "saving user dictionary", err)
	}
	r.logger.Info("user dictionary entries saved", "entries", len(entries))
	return nil
}

// Delete removes words and reports how many rows were deleted.
func (r *Repository) Delete(ctx context.Context, words ...string) (int64, error) {
	var deleted int64
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, word := range words {
			res, err := tx.ExecContext(ctx, `DELETE FROM user_dictionary WHERE word = $1`, word)
			if err != nil {
				return fmt.Errorf("deleting %q: %w", word, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, perrors.Wrap(perrors.ErrUpstream, "deleting user dictionary entries", err)
	}
	return deleted, nil
}
