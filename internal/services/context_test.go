package services_test

import (
	"context"
	"testing"

	"shortreel/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithUnitIndex(ctx, 4)
	ctx = services.WithStage(ctx, "trim")
	ctx = services.WithRunID(ctx, "run-123")

	if idx, ok := services.UnitIndexFromContext(ctx); !ok || idx != 4 {
		t.Fatalf("unexpected unit index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "trim" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.UnitIndexFromContext(ctx); ok {
		t.Fatal("expected no unit index")
	}
}
