// Package workflow implements C7, the engine driving the 12-step state
// machine for one marketing-strategy run. Execution is single-threaded
// per run; many runs may execute concurrently in separate goroutines, with
// at most one active run modifying a given project at a time.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/domain"
	"github.com/adronaut/strategist-core/pkg/persistence"
	"github.com/adronaut/strategist-core/pkg/sharedlog"
)

// Orchestrator is the subset of the orchestrator facade the engine drives
// through each step. Defined here (not in pkg/orchestrator) so the engine
// depends only on the shape it needs, matching the teacher's pattern of
// narrow collaborator interfaces.
type Orchestrator interface {
	ExtractFeatures(ctx context.Context, artifacts []domain.Artifact) (domain.FeaturesBundle, error)
	GenerateInsights(ctx context.Context, features domain.FeaturesBundle) (domain.InsightsResult, error)
	GeneratePatch(ctx context.Context, insights domain.InsightsResult) (domain.StrategyPatch, map[string]interface{}, error)
	EditPatch(ctx context.Context, original domain.StrategyPatch, editRequest string) (domain.StrategyPatch, map[string]interface{}, error)
	CompileBrief(ctx context.Context, patch domain.StrategyPatch) (string, error)
	AnalyzePerformance(ctx context.Context, metrics map[string]interface{}) (string, error)
}

// Engine owns the in-memory run table and drives every run's step
// transitions, journaling each one through the persistence collaborator.
type Engine struct {
	orchestrator Orchestrator
	store        persistence.Store
	stepTimeout  time.Duration
	logger       *logrus.Logger

	mu          sync.RWMutex
	runs        map[string]*domain.Run
	subscribers map[string][]chan domain.StepEvent

	projectLocks sync.Map // projectID -> *semaphore.Weighted
}

// New builds an Engine. cfg.StepTimeout configures the soft per-step
// timeout (default 120s, per spec.md §5). Logger may be nil, in which
// case a default logger is used.
func New(orchestrator Orchestrator, store persistence.Store, cfg config.WorkflowConfig, logger *logrus.Logger) *Engine {
	timeout := cfg.StepTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		orchestrator: orchestrator,
		store:        store,
		stepTimeout:  timeout,
		logger:       logger,
		runs:         make(map[string]*domain.Run),
		subscribers:  make(map[string][]chan domain.StepEvent),
	}
}

func (e *Engine) projectLock(projectID string) *semaphore.Weighted {
	lock, _ := e.projectLocks.LoadOrStore(projectID, semaphore.NewWeighted(1))
	return lock.(*semaphore.Weighted)
}

// Start creates a new run in INGEST and drives it asynchronously up to
// the first suspension point or terminal state. It returns the run_id
// immediately; spec.md §6 requires start to return before the pipeline
// completes. A nil artifacts slice means "load the project's artifacts
// from the persistence collaborator".
func (e *Engine) Start(ctx context.Context, projectID string, artifacts []domain.Artifact) string {
	run := &domain.Run{
		RunID:       newRunID(),
		ProjectID:   projectID,
		Status:      domain.RunRunning,
		CurrentStep: domain.StepIngest,
		CreatedAt:   time.Now(),
	}
	e.mu.Lock()
	e.runs[run.RunID] = run
	e.mu.Unlock()
	activeRuns.Inc()

	go e.drive(context.Background(), run, artifacts)
	return run.RunID
}

// drive advances run from its current step until it hits a suspension
// point (HITL_PATCH, HITL_REFLECTION) or a terminal state.
func (e *Engine) drive(ctx context.Context, run *domain.Run, artifacts []domain.Artifact) {
	lock := e.projectLock(run.ProjectID)
	if err := lock.Acquire(ctx, 1); err != nil {
		e.fail(ctx, run, apperrors.NewCancelledError(run.RunID))
		return
	}
	defer lock.Release(1)

	var features domain.FeaturesBundle
	var insights domain.InsightsResult
	var patch domain.StrategyPatch
	var patchMetadata map[string]interface{}

	steps := []domain.Step{domain.StepIngest, domain.StepFeatures, domain.StepInsights, domain.StepPatchGeneration, domain.StepPatchProposed}

	for _, step := range steps {
		e.setStep(run, step)
		e.journal(ctx, run, step, domain.StepStarted, nil)
		started := time.Now()

		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		var stepErr error
		var metadata map[string]interface{}

		switch step {
		case domain.StepIngest:
			if artifacts == nil {
				artifacts, stepErr = e.store.GetArtifacts(stepCtx, run.ProjectID)
			}
			metadata = map[string]interface{}{"artifact_count": len(artifacts)}
		case domain.StepFeatures:
			features, stepErr = e.orchestrator.ExtractFeatures(stepCtx, artifacts)
			if stepErr == nil {
				_, stepErr = e.store.CreateSnapshot(stepCtx, run.ProjectID, features)
			}
		case domain.StepInsights:
			insights, stepErr = e.orchestrator.GenerateInsights(stepCtx, features)
			if stepErr == nil {
				metadata = insightsMetadata(insights)
			}
		case domain.StepPatchGeneration:
			patch, patchMetadata, stepErr = e.orchestrator.GeneratePatch(stepCtx, insights)
			metadata = patchMetadata
		case domain.StepPatchProposed:
			stepErr = e.proposePatch(stepCtx, run, patch, patchMetadata)
		}
		stepErr = mapTimeout(stepCtx, stepErr, step)
		cancel()

		if stepErr != nil {
			e.journal(ctx, run, step, domain.StepFailedStatus, map[string]interface{}{"error": stepErr.Error()})
			e.fail(ctx, run, stepErr)
			return
		}
		stepDuration.WithLabelValues(string(step)).Observe(time.Since(started).Seconds())
		e.journal(ctx, run, step, domain.StepCompletedStatus, metadata)
	}

	// PATCH_PROPOSED -> HITL_PATCH: persist patch, suspend for human input.
	e.suspend(ctx, run, domain.StepHITLPatch)
}

func (e *Engine) proposePatch(ctx context.Context, run *domain.Run, patch domain.StrategyPatch, metadata map[string]interface{}) error {
	annotations := patch.Annotations
	justification := "generated from top-ranked insights"
	_, err := e.store.CreatePatch(ctx, run.ProjectID, domain.SourceInsights, patch, justification, annotations)
	if err != nil {
		return err
	}
	return nil
}

// Continue advances an HITL-suspended run per the requested action. It
// validates that patchID matches the project's current pending patch;
// otherwise it returns a ConflictError.
func (e *Engine) Continue(ctx context.Context, projectID, patchID string, action domain.HITLAction, editRequest string) error {
	active, err := e.store.GetActivePatch(ctx, projectID)
	if err != nil {
		return err
	}
	if active == nil || active.PatchID != patchID {
		return apperrors.NewConflictError("patch_id does not match the current pending patch")
	}

	run := e.findRunByProject(projectID)
	if run == nil {
		return apperrors.NewConflictError("no active run for project")
	}

	e.mu.RLock()
	suspendStep := run.CurrentStep
	runStatus := run.Status
	e.mu.RUnlock()
	if runStatus != domain.RunHITLRequired {
		return apperrors.NewConflictError("run is not suspended at an HITL checkpoint")
	}

	// HITL_REFLECTION resumes to COMPLETED rather than replaying APPLY
	// onward: the reflection patch is advisory feedback on a campaign
	// that has already run, not a new strategy to launch.
	if suspendStep == domain.StepHITLReflection {
		return e.continueReflection(ctx, run, active, action, editRequest)
	}

	switch action {
	case domain.ActionApprove:
		if err := e.store.UpdatePatchStatus(ctx, patchID, domain.PatchApproved); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLPatch, domain.StepCompletedStatus, map[string]interface{}{"action": "approve"})
		go e.runFromApply(context.Background(), run, active.PatchData)
		return nil

	case domain.ActionReject:
		if err := e.store.UpdatePatchStatus(ctx, patchID, domain.PatchRejected); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLPatch, domain.StepCompletedStatus, map[string]interface{}{"action": "reject"})
		e.complete(ctx, run)
		return nil

	case domain.ActionEdit:
		if err := e.store.UpdatePatchStatus(ctx, patchID, domain.PatchSuperseded); err != nil {
			return err
		}
		edited, metadata, err := e.orchestrator.EditPatch(ctx, active.PatchData, editRequest)
		if err != nil {
			return err
		}
		newPatchID, err := e.store.CreatePatch(ctx, run.ProjectID, domain.SourceEditedLLM, edited, "edited per HITL request", edited.Annotations)
		if err != nil {
			return err
		}
		if err := e.store.UpdatePatchStatus(ctx, newPatchID, domain.PatchApproved); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLPatch, domain.StepCompletedStatus, metadata)
		go e.runFromApply(context.Background(), run, edited)
		return nil

	default:
		return apperrors.NewValidationError("unrecognized HITL action")
	}
}

// continueReflection resolves the second HITL suspension. Every action
// (approve, reject, or edit) ends the run: there is no further pipeline
// stage after a reflection patch is dispositioned, only a record of what
// the human decided to do with the post-campaign recommendation.
func (e *Engine) continueReflection(ctx context.Context, run *domain.Run, active *domain.PatchRecord, action domain.HITLAction, editRequest string) error {
	switch action {
	case domain.ActionApprove:
		if err := e.store.UpdatePatchStatus(ctx, active.PatchID, domain.PatchApproved); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLReflection, domain.StepCompletedStatus, map[string]interface{}{"action": "approve"})

	case domain.ActionReject:
		if err := e.store.UpdatePatchStatus(ctx, active.PatchID, domain.PatchRejected); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLReflection, domain.StepCompletedStatus, map[string]interface{}{"action": "reject"})

	case domain.ActionEdit:
		if err := e.store.UpdatePatchStatus(ctx, active.PatchID, domain.PatchSuperseded); err != nil {
			return err
		}
		edited, metadata, err := e.orchestrator.EditPatch(ctx, active.PatchData, editRequest)
		if err != nil {
			return err
		}
		newPatchID, err := e.store.CreatePatch(ctx, run.ProjectID, domain.SourceEditedLLM, edited, "edited per HITL reflection request", edited.Annotations)
		if err != nil {
			return err
		}
		if err := e.store.UpdatePatchStatus(ctx, newPatchID, domain.PatchApproved); err != nil {
			return err
		}
		e.journal(ctx, run, domain.StepHITLReflection, domain.StepCompletedStatus, metadata)

	default:
		return apperrors.NewValidationError("unrecognized HITL action")
	}

	e.complete(ctx, run)
	return nil
}

// runFromApply continues the pipeline from APPLY through to the second
// HITL suspension (HITL_REFLECTION), mirroring drive's structure.
func (e *Engine) runFromApply(ctx context.Context, run *domain.Run, patch domain.StrategyPatch) {
	lock := e.projectLock(run.ProjectID)
	if err := lock.Acquire(ctx, 1); err != nil {
		e.fail(ctx, run, apperrors.NewCancelledError(run.RunID))
		return
	}
	defer lock.Release(1)

	e.mu.Lock()
	run.Status = domain.RunRunning
	e.mu.Unlock()

	steps := []domain.Step{domain.StepApply, domain.StepBrief, domain.StepCampaignRun, domain.StepCollect, domain.StepAnalyze, domain.StepReflectionPatch}

	var metricsGathered map[string]interface{}
	var reflectionPatch domain.StrategyPatch
	var reflectionMetadata map[string]interface{}

	for _, step := range steps {
		e.setStep(run, step)
		e.journal(ctx, run, step, domain.StepStarted, nil)
		started := time.Now()

		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		var stepErr error
		var metadata map[string]interface{}

		switch step {
		case domain.StepApply:
			metadata = map[string]interface{}{"patch_applied": true}
		case domain.StepBrief:
			_, stepErr = e.orchestrator.CompileBrief(stepCtx, patch)
		case domain.StepCampaignRun:
			metadata = map[string]interface{}{"status": "dispatched"}
		case domain.StepCollect:
			metricsGathered = map[string]interface{}{}
		case domain.StepAnalyze:
			_, stepErr = e.orchestrator.AnalyzePerformance(stepCtx, metricsGathered)
		case domain.StepReflectionPatch:
			reflectionPatch, reflectionMetadata, stepErr = e.orchestrator.GeneratePatch(stepCtx, domain.InsightsResult{})
			metadata = reflectionMetadata
		}
		stepErr = mapTimeout(stepCtx, stepErr, step)
		cancel()

		if stepErr != nil {
			e.journal(ctx, run, step, domain.StepFailedStatus, map[string]interface{}{"error": stepErr.Error()})
			e.fail(ctx, run, stepErr)
			return
		}
		stepDuration.WithLabelValues(string(step)).Observe(time.Since(started).Seconds())
		e.journal(ctx, run, step, domain.StepCompletedStatus, metadata)
	}

	if _, err := e.store.CreatePatch(ctx, run.ProjectID, domain.SourceReflection, reflectionPatch, "generated from reflection analysis", reflectionPatch.Annotations); err != nil {
		e.fail(ctx, run, err)
		return
	}

	e.suspend(ctx, run, domain.StepHITLReflection)
}

// Status returns a snapshot of run, or nil if unknown.
func (e *Engine) Status(runID string) *domain.Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	run, ok := e.runs[runID]
	if !ok {
		return nil
	}
	cloned := *run
	return &cloned
}

// Cancel transitions run to failed with error_type=cancelled. Any
// in-flight LLM call is allowed to complete; its result is discarded
// because the run's step loop checks context cancellation before acting
// on a step's result.
func (e *Engine) Cancel(runID string) {
	e.mu.Lock()
	run, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.fail(context.Background(), run, apperrors.NewCancelledError(runID))
}

// suspend parks run at an HITL checkpoint: the engine's goroutine returns
// and only Continue moves the run again.
func (e *Engine) suspend(ctx context.Context, run *domain.Run, step domain.Step) {
	e.setStep(run, step)
	e.mu.Lock()
	run.Status = domain.RunHITLRequired
	e.mu.Unlock()
	e.journal(ctx, run, step, domain.StepStarted, nil)
	e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation("suspend").RunID(run.RunID).ProjectID(run.ProjectID).Logrus()).
		Infof("run suspended at %s awaiting human decision", step)
}

func (e *Engine) complete(ctx context.Context, run *domain.Run) {
	e.setStep(run, domain.StepCompleted)
	e.mu.Lock()
	run.Status = domain.RunCompleted
	e.mu.Unlock()
	e.journal(ctx, run, domain.StepCompleted, domain.StepCompletedStatus, nil)
	runsTotal.WithLabelValues(string(domain.RunCompleted)).Inc()
	activeRuns.Dec()
	e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation("complete").RunID(run.RunID).ProjectID(run.ProjectID).Logrus()).
		Info("run completed")
	e.closeSubscribers(run.RunID)
}

func (e *Engine) fail(ctx context.Context, run *domain.Run, err error) {
	e.mu.Lock()
	if run.Status == domain.RunFailed || run.Status == domain.RunCompleted {
		e.mu.Unlock()
		return
	}
	run.Status = domain.RunFailed
	run.CurrentStep = domain.StepFailed
	run.Error = err.Error()
	run.ErrorType = string(apperrors.GetType(err))
	e.mu.Unlock()
	e.journal(ctx, run, domain.StepFailed, domain.StepFailedStatus, map[string]interface{}{"error": err.Error(), "error_type": string(apperrors.GetType(err))})
	runsTotal.WithLabelValues(string(domain.RunFailed)).Inc()
	activeRuns.Dec()
	e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation("fail").RunID(run.RunID).ProjectID(run.ProjectID).Error(err).Logrus()).
		Warn("run failed")
	e.closeSubscribers(run.RunID)
}

func (e *Engine) setStep(run *domain.Run, step domain.Step) {
	e.mu.Lock()
	run.CurrentStep = step
	e.mu.Unlock()
}

func (e *Engine) journal(ctx context.Context, run *domain.Run, step domain.Step, status domain.StepStatus, metadata map[string]interface{}) {
	event := domain.StepEvent{RunID: run.RunID, StepName: step, Status: status, Metadata: metadata, Timestamp: time.Now()}
	e.mu.Lock()
	run.Events = append(run.Events, event)
	e.mu.Unlock()
	stepEventsTotal.WithLabelValues(string(step), string(status)).Inc()
	e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation(string(step)).RunID(run.RunID).ProjectID(run.ProjectID).Logrus()).
		Debugf("step %s", status)
	e.broadcast(run.RunID, event)
	// The in-memory run table stays authoritative for transient state; a
	// journaling failure degrades durability (recovery, the durable event
	// trail) without stopping the step that already happened.
	if err := e.store.LogStepEvent(ctx, run.ProjectID, run.RunID, step, status, metadata); err != nil {
		e.logger.WithFields(sharedlog.NewFields().Component("workflow").Operation(string(step)).RunID(run.RunID).Error(err).Logrus()).
			Warn("step event journaling failed")
	}
}

func (e *Engine) findRunByProject(projectID string) *domain.Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var latest *domain.Run
	for _, run := range e.runs {
		if run.ProjectID == projectID {
			if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
				latest = run
			}
		}
	}
	return latest
}

// mapTimeout converts a step error caused by the soft step timeout into
// the run-level TimeoutError the taxonomy requires, leaving every other
// failure untouched.
func mapTimeout(stepCtx context.Context, stepErr error, step domain.Step) error {
	if stepErr != nil && stepCtx.Err() == context.DeadlineExceeded {
		return apperrors.NewTimeoutError(string(step))
	}
	return stepErr
}

// insightsMetadata is the INSIGHTS StepEvent payload shape from spec.md
// §6: candidate count, data-support distribution, and the share of
// selected insights resting on weak evidence. An insufficient flag marks
// runs where fewer than 3 candidates survived validation; the run still
// proceeds and presents what exists.
func insightsMetadata(result domain.InsightsResult) map[string]interface{} {
	counts := map[string]int{"strong": 0, "moderate": 0, "weak": 0}
	for _, ins := range result.Insights {
		counts[string(ins.DataSupport)]++
	}
	rate := 0.0
	if len(result.Insights) > 0 {
		rate = float64(counts["weak"]) / float64(len(result.Insights))
	}
	metadata := map[string]interface{}{
		"candidates_evaluated":       result.CandidatesEvaluated,
		"data_support_counts":        counts,
		"insufficient_evidence_rate": rate,
	}
	if len(result.Insights) < 3 {
		metadata["insufficient"] = true
	}
	return metadata
}

func newRunID() string {
	return uuid.NewString()
}
