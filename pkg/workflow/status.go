package workflow

import (
	"context"

	"github.com/adronaut/strategist-core/pkg/domain"
)

// ProjectStatus is the status(project_id) view from spec.md §6, combining
// the in-memory run table's transient state with the persistence
// collaborator's durable records. Campaigns are owned by the launch
// collaborator and are not reported here.
type ProjectStatus struct {
	RunID          string
	RunStatus      domain.RunStatus
	CurrentStep    domain.Step
	Error          string
	ErrorType      string
	Artifacts      []domain.Artifact
	Snapshot       domain.FeaturesBundle
	PendingPatch   *domain.PatchRecord
	ActiveStrategy *domain.PatchRecord
}

// ProjectStatusFor assembles the composite status view for projectID. A
// project with no run in the table yields empty run fields but still
// reports its stored artifacts and pending patch, so the edge layer can
// render uploads made before any run starts.
func (e *Engine) ProjectStatusFor(ctx context.Context, projectID string) (ProjectStatus, error) {
	status := ProjectStatus{}

	if run := e.findRunByProject(projectID); run != nil {
		e.mu.RLock()
		status.RunID = run.RunID
		status.RunStatus = run.Status
		status.CurrentStep = run.CurrentStep
		status.Error = run.Error
		status.ErrorType = run.ErrorType
		e.mu.RUnlock()
	}

	artifacts, err := e.store.GetArtifacts(ctx, projectID)
	if err != nil {
		return ProjectStatus{}, err
	}
	status.Artifacts = artifacts

	snapshot, err := e.store.GetLatestSnapshot(ctx, projectID)
	if err != nil {
		return ProjectStatus{}, err
	}
	status.Snapshot = snapshot

	pending, err := e.store.GetActivePatch(ctx, projectID)
	if err != nil {
		return ProjectStatus{}, err
	}
	status.PendingPatch = pending

	strategy, err := e.store.GetActiveStrategy(ctx, projectID)
	if err != nil {
		return ProjectStatus{}, err
	}
	status.ActiveStrategy = strategy

	return status, nil
}
