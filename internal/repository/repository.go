package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/cache"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/utils"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Repository stores score results in Postgres. Subject IDs are kept only as a keyed hash.
type Repository struct {
	db      *sql.DB
	hashKey []byte
	now     func() time.Time
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, hashKey []byte) *Repository {
	return &Repository{db: db, hashKey: hashKey, now: time.Now}
}

// Get returns the unexpired result stored for the key
func (r *Repository) Get(ctx context.Context, key cache.Key) (*models.ScoreResult, bool, error) {
	subjectKey, err := utils.HashSubject(r.hashKey, key.SubjectID)
	if err != nil {
		return nil, false, err
	}
	query := `
		SELECT result
		FROM scoring.score_cache
		WHERE provider = $1 AND subject_key = $2 AND expires_at > $3`
	var raw []byte
	err = r.db.QueryRowContext(ctx, query, string(key.Provider), subjectKey, r.now()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to read score: %v", cache.ErrStoreUnavailable, err)
	}

	result := &models.ScoreResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored score: %w", err)
	}
	result.Metadata.SubjectID = key.SubjectID
	return result, true, nil
}

// Set upserts the result for the key; the last writer wins
func (r *Repository) Set(ctx context.Context, key cache.Key, result *models.ScoreResult, ttl time.Duration) error {
	subjectKey, err := utils.HashSubject(r.hashKey, key.SubjectID)
	if err != nil {
		return err
	}
	stored := result.Clone()
	stored.Metadata.SubjectID = ""
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}

	now := r.now()
	query := `
		INSERT INTO scoring.score_cache (provider, subject_key, result, computed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, subject_key)
		DO UPDATE SET result = EXCLUDED.result, computed_at = EXCLUDED.computed_at, expires_at = EXCLUDED.expires_at`
	if _, err := r.db.ExecContext(ctx, query, string(key.Provider), subjectKey, raw, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("%w: failed to store score: %v", cache.ErrStoreUnavailable, err)
	}
	return nil
}

// Purge deletes expired rows
func (r *Repository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scoring.score_cache WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge scores: %v", cache.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged scores: %w", err)
	}
	return n, nil
}
