// Package postgres is the optional durable reference adapter for
// persistence.Store, backed by database/sql over pgx's stdlib driver so
// the same *sql.DB works with goose migrations (migrate.go) and with
// sqlmock in tests.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/pkg/domain"
)

// Store implements persistence.Store against a Postgres database.
type Store struct {
	db *sql.DB
}

// New wraps an already-connected, already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateArtifact(ctx context.Context, artifact domain.Artifact) (string, error) {
	if artifact.ArtifactID == "" {
		artifact.ArtifactID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (artifact_id, project_id, mime, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		artifact.ArtifactID, artifact.ProjectID, artifact.MIME, artifact.Content, time.Now())
	if err != nil {
		return "", apperrors.NewStorageError("create_artifact", err)
	}
	return artifact.ArtifactID, nil
}

func (s *Store) GetArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_id, project_id, mime, content, created_at FROM artifacts WHERE project_id = $1 ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, apperrors.NewStorageError("get_artifacts", err)
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ArtifactID, &a.ProjectID, &a.MIME, &a.Content, &a.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("get_artifacts", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("get_artifacts", err)
	}
	return out, nil
}

func (s *Store) CreateSnapshot(ctx context.Context, projectID string, features domain.FeaturesBundle) (string, error) {
	id := uuid.NewString()
	encoded, err := json.Marshal(features)
	if err != nil {
		return "", apperrors.NewStorageError("create_snapshot", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, project_id, features, created_at) VALUES ($1, $2, $3, $4)`,
		id, projectID, encoded, time.Now())
	if err != nil {
		return "", apperrors.NewStorageError("create_snapshot", err)
	}
	return id, nil
}

func (s *Store) GetLatestSnapshot(ctx context.Context, projectID string) (domain.FeaturesBundle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT features FROM snapshots WHERE project_id = $1 ORDER BY created_at DESC LIMIT 1`,
		projectID)

	var encoded []byte
	if err := row.Scan(&encoded); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("get_latest_snapshot", err)
	}
	var features domain.FeaturesBundle
	if err := json.Unmarshal(encoded, &features); err != nil {
		return nil, apperrors.NewStorageError("get_latest_snapshot", err)
	}
	return features, nil
}

func (s *Store) CreatePatch(ctx context.Context, projectID string, source domain.PatchSource, patchData domain.StrategyPatch, justification string, annotations domain.PatchAnnotations) (string, error) {
	id := uuid.NewString()
	patchJSON, err := json.Marshal(patchData)
	if err != nil {
		return "", apperrors.NewStorageError("create_patch", err)
	}
	annotationsJSON, err := json.Marshal(annotations)
	if err != nil {
		return "", apperrors.NewStorageError("create_patch", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patches (patch_id, project_id, source, status, patch_data, justification, annotations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, projectID, string(source), string(domain.PatchProposed), patchJSON, justification, annotationsJSON, time.Now())
	if err != nil {
		return "", apperrors.NewStorageError("create_patch", err)
	}
	return id, nil
}

func (s *Store) UpdatePatchStatus(ctx context.Context, patchID string, status domain.PatchStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE patches SET status = $1 WHERE patch_id = $2`, string(status), patchID)
	if err != nil {
		return apperrors.NewStorageError("update_patch_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("update_patch_status", err)
	}
	if n == 0 {
		return apperrors.NewStorageError("update_patch_status", sql.ErrNoRows)
	}
	return nil
}

func (s *Store) GetActivePatch(ctx context.Context, projectID string) (*domain.PatchRecord, error) {
	return s.latestPatchWithStatus(ctx, "get_active_patch", projectID, domain.PatchProposed)
}

// GetActiveStrategy returns the most recently approved patch for
// projectID: the strategy currently in force, as opposed to the pending
// one GetActivePatch reports.
func (s *Store) GetActiveStrategy(ctx context.Context, projectID string) (*domain.PatchRecord, error) {
	return s.latestPatchWithStatus(ctx, "get_active_strategy", projectID, domain.PatchApproved)
}

func (s *Store) latestPatchWithStatus(ctx context.Context, operation, projectID string, status domain.PatchStatus) (*domain.PatchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT patch_id, project_id, source, status, patch_data, justification, annotations, created_at
		 FROM patches WHERE project_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`,
		projectID, string(status))

	var (
		record                      domain.PatchRecord
		source, scannedStatus       string
		patchJSON, annotationsJSON  []byte
	)
	if err := row.Scan(&record.PatchID, &record.ProjectID, &source, &scannedStatus, &patchJSON, &record.Justification, &annotationsJSON, &record.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewStorageError(operation, err)
	}
	record.Source = domain.PatchSource(source)
	record.Status = domain.PatchStatus(scannedStatus)
	if err := json.Unmarshal(patchJSON, &record.PatchData); err != nil {
		return nil, apperrors.NewStorageError(operation, err)
	}
	if err := json.Unmarshal(annotationsJSON, &record.Annotations); err != nil {
		return nil, apperrors.NewStorageError(operation, err)
	}
	return &record, nil
}

func (s *Store) LogStepEvent(ctx context.Context, projectID, runID string, stepName domain.Step, status domain.StepStatus, metadata map[string]interface{}) error {
	var metadataJSON []byte
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return apperrors.NewStorageError("log_step_event", err)
		}
		metadataJSON = encoded
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_events (run_id, project_id, step_name, status, metadata, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, projectID, string(stepName), string(status), metadataJSON, time.Now())
	if err != nil {
		return apperrors.NewStorageError("log_step_event", err)
	}
	return nil
}

func (s *Store) GetStepEvents(ctx context.Context, projectID string) ([]domain.StepEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_name, status, metadata, timestamp FROM step_events WHERE project_id = $1 ORDER BY id`,
		projectID)
	if err != nil {
		return nil, apperrors.NewStorageError("get_step_events", err)
	}
	defer rows.Close()

	var out []domain.StepEvent
	for rows.Next() {
		var (
			e                domain.StepEvent
			stepName, status string
			metadataJSON     []byte
		)
		if err := rows.Scan(&e.RunID, &stepName, &status, &metadataJSON, &e.Timestamp); err != nil {
			return nil, apperrors.NewStorageError("get_step_events", err)
		}
		e.StepName = domain.Step(stepName)
		e.Status = domain.StepStatus(status)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, apperrors.NewStorageError("get_step_events", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("get_step_events", err)
	}
	return out, nil
}
