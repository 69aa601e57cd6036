package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fiscal_blueprint/pkg/models"
)

// BlueprintRepo stores blueprints as an append-only version history per
// dossier. A rerun inserts the next version; earlier versions are never
// touched.
type BlueprintRepo struct{}

// NewBlueprintRepo creates a new repository instance.
func NewBlueprintRepo() *BlueprintRepo {
	return &BlueprintRepo{}
}

// Schema assumption:
// CREATE TABLE IF NOT EXISTS blueprint_versions (
//   dossier_id TEXT NOT NULL,
//   version INTEGER NOT NULL,
//   blueprint_json JSONB NOT NULL,
//   created_at TIMESTAMPTZ NOT NULL,
//   PRIMARY KEY (dossier_id, version)
// );

// NextVersion returns the version number the next run should use.
func (r *BlueprintRepo) NextVersion(ctx context.Context, dossierID string) (int, error) {
	pool := GetPool()
	if pool == nil {
		return 0, fmt.Errorf("database pool not initialized")
	}

	var latest int
	query := `SELECT COALESCE(MAX(version), 0) FROM blueprint_versions WHERE dossier_id = $1`
	if err := pool.QueryRow(ctx, query, dossierID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read version history: %w", err)
	}
	return latest + 1, nil
}

// Save appends the blueprint as a new version row.
func (r *BlueprintRepo) Save(ctx context.Context, bp *models.Blueprint) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}

	query := `
		INSERT INTO blueprint_versions (dossier_id, version, blueprint_json, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := pool.Exec(ctx, query, bp.DossierID, bp.Version, jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to save blueprint version %d: %w", bp.Version, err)
	}
	return nil
}

// LoadLatest retrieves the most recent blueprint for a dossier.
func (r *BlueprintRepo) LoadLatest(ctx context.Context, dossierID string) (*models.Blueprint, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `
		SELECT blueprint_json FROM blueprint_versions
		WHERE dossier_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	var jsonData []byte
	if err := pool.QueryRow(ctx, query, dossierID).Scan(&jsonData); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no blueprint found for dossier %s", dossierID)
		}
		return nil, fmt.Errorf("failed to load blueprint: %w", err)
	}

	var bp models.Blueprint
	if err := json.Unmarshal(jsonData, &bp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
	}
	return &bp, nil
}

// LoadVersion retrieves one specific version.
func (r *BlueprintRepo) LoadVersion(ctx context.Context, dossierID string, version int) (*models.Blueprint, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT blueprint_json FROM blueprint_versions WHERE dossier_id = $1 AND version = $2`
	var jsonData []byte
	if err := pool.QueryRow(ctx, query, dossierID, version).Scan(&jsonData); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("dossier %s has no version %d", dossierID, version)
		}
		return nil, fmt.Errorf("failed to load blueprint: %w", err)
	}

	var bp models.Blueprint
	if err := json.Unmarshal(jsonData, &bp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
	}
	return &bp, nil
}
