// Package memory is the primary persistence adapter: a process-local,
// mutex-guarded implementation of persistence.Store. Per spec.md §5, the
// run table and its patch/event records do not need distributed
// coordination because all activity for a given run happens in one
// process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/pkg/domain"
)

type snapshot struct {
	projectID string
	features  domain.FeaturesBundle
	createdAt time.Time
}

// Store is an in-memory persistence.Store. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	artifacts map[string][]domain.Artifact
	snapshots map[string][]snapshot
	patches    map[string]*domain.PatchRecord   // patchID -> record
	patchOrder map[string][]string              // projectID -> patchIDs in creation order
	active     map[string]string                // projectID -> active patchID
	events    []journaledEvent
}

type journaledEvent struct {
	projectID string
	event     domain.StepEvent
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		artifacts:  make(map[string][]domain.Artifact),
		snapshots:  make(map[string][]snapshot),
		patches:    make(map[string]*domain.PatchRecord),
		patchOrder: make(map[string][]string),
		active:     make(map[string]string),
	}
}

func (s *Store) CreateArtifact(ctx context.Context, artifact domain.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if artifact.ArtifactID == "" {
		artifact.ArtifactID = uuid.NewString()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}
	s.artifacts[artifact.ProjectID] = append(s.artifacts[artifact.ProjectID], artifact)
	return artifact.ArtifactID, nil
}

func (s *Store) GetArtifacts(ctx context.Context, projectID string) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Artifact(nil), s.artifacts[projectID]...), nil
}

func (s *Store) CreateSnapshot(ctx context.Context, projectID string, features domain.FeaturesBundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.snapshots[projectID] = append(s.snapshots[projectID], snapshot{
		projectID: projectID,
		features:  features,
		createdAt: time.Now(),
	})
	return id, nil
}

func (s *Store) GetLatestSnapshot(ctx context.Context, projectID string) (domain.FeaturesBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[projectID]
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[len(snaps)-1].features, nil
}

func (s *Store) CreatePatch(ctx context.Context, projectID string, source domain.PatchSource, patchData domain.StrategyPatch, justification string, annotations domain.PatchAnnotations) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patchID := uuid.NewString()
	record := &domain.PatchRecord{
		PatchID:       patchID,
		ProjectID:     projectID,
		Source:        source,
		Status:        domain.PatchProposed,
		PatchData:     patchData,
		Justification: justification,
		Annotations:   annotations,
		CreatedAt:     time.Now(),
	}
	s.patches[patchID] = record
	s.patchOrder[projectID] = append(s.patchOrder[projectID], patchID)
	s.active[projectID] = patchID
	return patchID, nil
}

func (s *Store) UpdatePatchStatus(ctx context.Context, patchID string, status domain.PatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.patches[patchID]
	if !ok {
		return apperrors.NewStorageError("update_patch_status", fmt.Errorf("patch %s not found", patchID))
	}
	record.Status = status
	// "Active" means awaiting an HITL decision: any transition out of
	// proposed clears it, matching the postgres adapter's status filter.
	if status != domain.PatchProposed {
		if s.active[record.ProjectID] == patchID {
			delete(s.active, record.ProjectID)
		}
	}
	return nil
}

func (s *Store) GetActivePatch(ctx context.Context, projectID string) (*domain.PatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patchID, ok := s.active[projectID]
	if !ok {
		return nil, nil
	}
	record := s.patches[patchID]
	cloned := *record
	return &cloned, nil
}

// GetActiveStrategy returns the most recently approved patch for
// projectID: the strategy currently in force, as opposed to the pending
// one GetActivePatch reports.
func (s *Store) GetActiveStrategy(ctx context.Context, projectID string) (*domain.PatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.patchOrder[projectID]
	for i := len(order) - 1; i >= 0; i-- {
		record := s.patches[order[i]]
		if record.Status == domain.PatchApproved {
			cloned := *record
			return &cloned, nil
		}
	}
	return nil, nil
}

func (s *Store) LogStepEvent(ctx context.Context, projectID, runID string, stepName domain.Step, status domain.StepStatus, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, journaledEvent{
		projectID: projectID,
		event: domain.StepEvent{
			RunID:     runID,
			StepName:  stepName,
			Status:    status,
			Metadata:  metadata,
			Timestamp: time.Now(),
		},
	})
	return nil
}

// GetStepEvents returns every StepEvent journaled for projectID in append
// order. The workflow engine reads these during HITL recovery to find the
// suspended run's last recorded step.
func (s *Store) GetStepEvents(ctx context.Context, projectID string) ([]domain.StepEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StepEvent
	for _, e := range s.events {
		if e.projectID == projectID {
			out = append(out, e.event)
		}
	}
	return out, nil
}

// Events returns every StepEvent logged for runID in append order. The
// engine's events() stream does not read it; it serves tests.
func (s *Store) Events(runID string) []domain.StepEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StepEvent
	for _, e := range s.events {
		if e.event.RunID == runID {
			out = append(out, e.event)
		}
	}
	return out
}
