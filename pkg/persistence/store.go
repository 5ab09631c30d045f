// Package persistence declares the storage collaborator interface the
// workflow engine depends on (spec.md §6). Concrete
// implementations live in memory (the default, process-local) and
// postgres (an optional durable reference adapter) subpackages.
package persistence

import (
	"context"

	"github.com/adronaut/strategist-core/pkg/domain"
)

// Store is the persistence collaborator. All calls return plain records
// or ids; failures surface as a *apperrors.AppError of type
// ErrorTypeStorage and fail the current step.
type Store interface {
	CreateArtifact(ctx context.Context, artifact domain.Artifact) (string, error)
	GetArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error)
	CreateSnapshot(ctx context.Context, projectID string, features domain.FeaturesBundle) (string, error)
	GetLatestSnapshot(ctx context.Context, projectID string) (domain.FeaturesBundle, error)
	CreatePatch(ctx context.Context, projectID string, source domain.PatchSource, patchData domain.StrategyPatch, justification string, annotations domain.PatchAnnotations) (string, error)
	UpdatePatchStatus(ctx context.Context, patchID string, status domain.PatchStatus) error
	GetActivePatch(ctx context.Context, projectID string) (*domain.PatchRecord, error)
	GetActiveStrategy(ctx context.Context, projectID string) (*domain.PatchRecord, error)
	LogStepEvent(ctx context.Context, projectID, runID string, stepName domain.Step, status domain.StepStatus, metadata map[string]interface{}) error
	GetStepEvents(ctx context.Context, projectID string) ([]domain.StepEvent, error)
}
