package memory

import (
	"context"
	"testing"

	"github.com/adronaut/strategist-core/pkg/domain"
)

func TestCreateAndGetArtifacts(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.CreateArtifact(ctx, domain.Artifact{ProjectID: "p1", MIME: "text/csv"})
	if err != nil {
		t.Fatalf("CreateArtifact error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated artifact id")
	}

	artifacts, err := store.GetArtifacts(ctx, "p1")
	if err != nil {
		t.Fatalf("GetArtifacts error: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("len(artifacts) = %d, want 1", len(artifacts))
	}
}

func TestCreatePatchSetsActivePatch(t *testing.T) {
	store := New()
	ctx := context.Background()

	patchID, err := store.CreatePatch(ctx, "p1", domain.SourceInsights, domain.StrategyPatch{}, "initial patch", domain.PatchAnnotations{})
	if err != nil {
		t.Fatalf("CreatePatch error: %v", err)
	}

	active, err := store.GetActivePatch(ctx, "p1")
	if err != nil {
		t.Fatalf("GetActivePatch error: %v", err)
	}
	if active == nil || active.PatchID != patchID {
		t.Fatalf("GetActivePatch = %+v, want patch %s", active, patchID)
	}
	if active.Status != domain.PatchProposed {
		t.Fatalf("Status = %q, want proposed", active.Status)
	}
}

func TestUpdatePatchStatusClearsActiveOnSupersede(t *testing.T) {
	store := New()
	ctx := context.Background()

	patchID, _ := store.CreatePatch(ctx, "p1", domain.SourceInsights, domain.StrategyPatch{}, "", domain.PatchAnnotations{})
	if err := store.UpdatePatchStatus(ctx, patchID, domain.PatchSuperseded); err != nil {
		t.Fatalf("UpdatePatchStatus error: %v", err)
	}

	active, err := store.GetActivePatch(ctx, "p1")
	if err != nil {
		t.Fatalf("GetActivePatch error: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active patch after supersede, got %+v", active)
	}
}

func TestUpdatePatchStatusUnknownPatchFails(t *testing.T) {
	store := New()
	if err := store.UpdatePatchStatus(context.Background(), "does-not-exist", domain.PatchApproved); err == nil {
		t.Fatal("expected a storage error for an unknown patch id")
	}
}

func TestLogStepEventOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.LogStepEvent(ctx, "p1", "run-1", domain.StepIngest, domain.StepStarted, nil)
	_ = store.LogStepEvent(ctx, "p1", "run-1", domain.StepIngest, domain.StepCompletedStatus, nil)
	_ = store.LogStepEvent(ctx, "p1", "run-2", domain.StepIngest, domain.StepStarted, nil)

	events := store.Events("run-1")
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Status != domain.StepStarted || events[1].Status != domain.StepCompletedStatus {
		t.Fatalf("events out of order: %+v", events)
	}
}

func TestGetStepEventsScopedToProject(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.LogStepEvent(ctx, "p1", "run-1", domain.StepIngest, domain.StepStarted, nil)
	_ = store.LogStepEvent(ctx, "p2", "run-2", domain.StepIngest, domain.StepStarted, nil)
	_ = store.LogStepEvent(ctx, "p1", "run-1", domain.StepHITLPatch, domain.StepStarted, nil)

	events, err := store.GetStepEvents(ctx, "p1")
	if err != nil {
		t.Fatalf("GetStepEvents error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].StepName != domain.StepHITLPatch {
		t.Fatalf("events out of order: %+v", events)
	}
}

func TestUpdatePatchStatusClearsActiveOnApprove(t *testing.T) {
	store := New()
	ctx := context.Background()

	patchID, _ := store.CreatePatch(ctx, "p1", domain.SourceInsights, domain.StrategyPatch{}, "", domain.PatchAnnotations{})
	if err := store.UpdatePatchStatus(ctx, patchID, domain.PatchApproved); err != nil {
		t.Fatalf("UpdatePatchStatus error: %v", err)
	}

	active, err := store.GetActivePatch(ctx, "p1")
	if err != nil {
		t.Fatalf("GetActivePatch error: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no pending patch after approval, got %+v", active)
	}
}

func TestGetActiveStrategyReturnsLatestApproved(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, _ := store.CreatePatch(ctx, "p1", domain.SourceInsights, domain.StrategyPatch{}, "", domain.PatchAnnotations{})
	_ = store.UpdatePatchStatus(ctx, first, domain.PatchApproved)
	second, _ := store.CreatePatch(ctx, "p1", domain.SourceEditedLLM, domain.StrategyPatch{}, "", domain.PatchAnnotations{})
	_ = store.UpdatePatchStatus(ctx, second, domain.PatchApproved)

	strategy, err := store.GetActiveStrategy(ctx, "p1")
	if err != nil {
		t.Fatalf("GetActiveStrategy error: %v", err)
	}
	if strategy == nil || strategy.PatchID != second {
		t.Fatalf("GetActiveStrategy = %+v, want the later approved patch %s", strategy, second)
	}
}

func TestGetLatestSnapshotReturnsMostRecent(t *testing.T) {
	store := New()
	ctx := context.Background()

	if got, err := store.GetLatestSnapshot(ctx, "p1"); err != nil || got != nil {
		t.Fatalf("GetLatestSnapshot on empty store = (%v, %v), want (nil, nil)", got, err)
	}

	_, _ = store.CreateSnapshot(ctx, "p1", domain.FeaturesBundle{"version": 1})
	_, _ = store.CreateSnapshot(ctx, "p1", domain.FeaturesBundle{"version": 2})

	got, err := store.GetLatestSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("GetLatestSnapshot error: %v", err)
	}
	if got["version"] != 2 {
		t.Fatalf("GetLatestSnapshot = %+v, want the second snapshot", got)
	}
}
