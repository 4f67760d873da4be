package rotation

import (
	"context"
	"testing"
)

func TestPickNeverRepeatsConsecutively(t *testing.T) {
	picker := NewPicker(NewMemoryRepository())
	ctx := context.Background()
	variants := []string{"a", "b", "c"}

	prev, err := picker.Pick(ctx, 1, "start", variants)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	for i := 0; i < 200; i++ {
		got, err := picker.Pick(ctx, 1, "start", variants)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if got == prev {
			t.Fatalf("immediate repeat of %q on draw %d", got, i)
		}
		prev = got
	}
}

func TestPickTwoVariantsAlternate(t *testing.T) {
	picker := NewPicker(NewMemoryRepository())
	ctx := context.Background()
	variants := []string{"x", "y"}

	prev, _ := picker.Pick(ctx, 2, "end", variants)
	for i := 0; i < 20; i++ {
		got, err := picker.Pick(ctx, 2, "end", variants)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if got == prev {
			t.Fatal("two variants must strictly alternate")
		}
		prev = got
	}
}

func TestPickIndependentPerUserAndStage(t *testing.T) {
	repo := NewMemoryRepository()
	picker := NewPicker(repo)
	ctx := context.Background()
	variants := []string{"a", "b"}

	if _, err := picker.Pick(ctx, 1, "start", variants); err != nil {
		t.Fatalf("pick: %v", err)
	}
	if _, ok, _ := repo.LastIndex(ctx, 1, "end"); ok {
		t.Fatal("stages must not share state")
	}
	if _, ok, _ := repo.LastIndex(ctx, 2, "start"); ok {
		t.Fatal("users must not share state")
	}
}

func TestPickDegenerateVariants(t *testing.T) {
	picker := NewPicker(NewMemoryRepository())
	ctx := context.Background()

	got, err := picker.Pick(ctx, 1, "start", []string{"only"})
	if err != nil || got != "only" {
		t.Fatalf("single variant: got %q, %v", got, err)
	}
	got, err = picker.Pick(ctx, 1, "start", nil)
	if err != nil || got != "" {
		t.Fatalf("empty variants: got %q, %v", got, err)
	}
}

func TestPickSurvivesShrunkenVariantList(t *testing.T) {
	repo := NewMemoryRepository()
	picker := NewPicker(repo)
	ctx := context.Background()

	if err := repo.SetLastIndex(ctx, 1, "start", 5); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := picker.Pick(ctx, 1, "start", []string{"a", "b"}); err != nil {
		t.Fatalf("pick after shrink: %v", err)
	}
}
