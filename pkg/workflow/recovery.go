package workflow

import (
	"context"
	"time"

	"github.com/adronaut/strategist-core/pkg/domain"
	"github.com/adronaut/strategist-core/pkg/sharedlog"
)

// Recover rebuilds the in-memory run table entry for a project whose run
// was suspended at an HITL checkpoint when the process last exited. The
// run table is process-local (spec.md §5); durability comes from the last
// journaled StepEvent plus the pending patch record, which together are
// enough to resume through Continue. Returns the recovered run_id, or ""
// when the project has no recoverable run (no journal, a run that ended
// in a terminal state, or a run that died mid-step and must be restarted
// by the human per the no-retry policy).
func (e *Engine) Recover(ctx context.Context, projectID string) (string, error) {
	events, err := e.store.GetStepEvents(ctx, projectID)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "", nil
	}

	last := events[len(events)-1]
	suspended := last.Status == domain.StepStarted &&
		(last.StepName == domain.StepHITLPatch || last.StepName == domain.StepHITLReflection)
	if !suspended {
		return "", nil
	}

	pending, err := e.store.GetActivePatch(ctx, projectID)
	if err != nil {
		return "", err
	}
	if pending == nil {
		return "", nil
	}

	var replay []domain.StepEvent
	for _, event := range events {
		if event.RunID == last.RunID {
			replay = append(replay, event)
		}
	}

	createdAt := time.Now()
	if len(replay) > 0 {
		createdAt = replay[0].Timestamp
	}
	run := &domain.Run{
		RunID:       last.RunID,
		ProjectID:   projectID,
		Status:      domain.RunHITLRequired,
		CurrentStep: last.StepName,
		CreatedAt:   createdAt,
		Events:      replay,
	}

	e.mu.Lock()
	if _, exists := e.runs[run.RunID]; exists {
		e.mu.Unlock()
		return run.RunID, nil
	}
	e.runs[run.RunID] = run
	e.mu.Unlock()
	activeRuns.Inc()

	e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation("recover").RunID(run.RunID).ProjectID(projectID).Logrus()).
		Infof("recovered HITL-suspended run at %s", run.CurrentStep)
	return run.RunID, nil
}
