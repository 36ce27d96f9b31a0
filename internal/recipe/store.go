package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store caches detections and recipe lookups. Getters return nil, nil when
// nothing is cached.
type Store interface {
	GetDetection(ctx context.Context, imageHash string) (*Detection, error)
	SaveDetection(ctx context.Context, detection *Detection) error
	GetSuggestion(ctx context.Context, ingredientsKey string) (*Suggestion, error)
	SaveSuggestion(ctx context.Context, suggestion *Suggestion) error
}

// PostgresStore implements the Store interface for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Create detections table if not exists
	schema := `
	CREATE TABLE IF NOT EXISTS detections (
		image_hash TEXT PRIMARY KEY,
		filename TEXT,
		ingredients JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create detections table: %w", err)
	}

	// Create suggestions table if not exists
	schema = `
	CREATE TABLE IF NOT EXISTS suggestions (
		ingredients_key TEXT PRIMARY KEY,
		ingredients JSONB NOT NULL,
		recipes JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create suggestions table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type detectionRow struct {
	ImageHash   string         `db:"image_hash"`
	Filename    sql.NullString `db:"filename"`
	Ingredients []byte         `db:"ingredients"`
}

// GetDetection retrieves a detection by its image hash.
func (s *PostgresStore) GetDetection(ctx context.Context, imageHash string) (*Detection, error) {
	var row detectionRow
	err := s.db.GetContext(ctx, &row, "SELECT image_hash, filename, ingredients FROM detections WHERE image_hash = $1", imageHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get detection by hash: %w", err)
	}

	d := &Detection{ImageHash: row.ImageHash, Filename: row.Filename.String}
	if err := json.Unmarshal(row.Ingredients, &d.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	return d, nil
}

// SaveDetection saves a detection to the database.
func (s *PostgresStore) SaveDetection(ctx context.Context, detection *Detection) error {
	ingredientsJSON, err := json.Marshal(orEmpty(detection.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO detections (image_hash, filename, ingredients) VALUES ($1, $2, $3) ON CONFLICT (image_hash) DO UPDATE SET filename = $2, ingredients = $3",
		detection.ImageHash,
		detection.Filename,
		ingredientsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save detection: %w", err)
	}
	return nil
}

type suggestionRow struct {
	IngredientsKey string `db:"ingredients_key"`
	Ingredients    []byte `db:"ingredients"`
	Recipes        []byte `db:"recipes"`
}

// GetSuggestion retrieves a recipe lookup by its ingredient set key.
func (s *PostgresStore) GetSuggestion(ctx context.Context, ingredientsKey string) (*Suggestion, error) {
	var row suggestionRow
	err := s.db.GetContext(ctx, &row, "SELECT ingredients_key, ingredients, recipes FROM suggestions WHERE ingredients_key = $1", ingredientsKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get suggestion by key: %w", err)
	}

	sg := &Suggestion{IngredientsKey: row.IngredientsKey}
	if err := json.Unmarshal(row.Ingredients, &sg.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal(row.Recipes, &sg.Recipes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipes: %w", err)
	}
	return sg, nil
}

// SaveSuggestion saves a recipe lookup to the database.
func (s *PostgresStore) SaveSuggestion(ctx context.Context, suggestion *Suggestion) error {
	ingredientsJSON, err := json.Marshal(orEmpty(suggestion.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	recipesJSON, err := json.Marshal(orEmpty(suggestion.Recipes))
	if err != nil {
		return fmt.Errorf("failed to marshal recipes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO suggestions (ingredients_key, ingredients, recipes) VALUES ($1, $2, $3) ON CONFLICT (ingredients_key) DO UPDATE SET ingredients = $2, recipes = $3",
		suggestion.IngredientsKey,
		ingredientsJSON,
		recipesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	return nil
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
