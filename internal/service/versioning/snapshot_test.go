package versioning

import (
	"context"
	"errors"
	"testing"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	versioningSvc "sitesmith/internal/domain/services/versioning"
)

func TestCreateSnapshotCapturesSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedSession("s1", 2)

	label := "before redesign"
	snap, err := env.snapshots.CreateSnapshot(ctx, &versioningSvc.CreateSnapshotRequest{
		SessionID: "s1",
		Source:    "manual",
		Label:     &label,
	})
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	if snap.SnapshotNumber != 1 {
		t.Errorf("snapshot number = %d, want 1", snap.SnapshotNumber)
	}
	if snap.Source != models.SourceManual {
		t.Errorf("source = %s, want manual", snap.Source)
	}
	if snap.Label == nil || *snap.Label != label {
		t.Errorf("label = %v, want %q", snap.Label, label)
	}
	if snap.DocContent != "# Product\n\nInitial draft." {
		t.Errorf("doc content not captured: %q", snap.DocContent)
	}
	if len(snap.Pages) != 2 {
		t.Fatalf("captured %d pages, want 2", len(snap.Pages))
	}
	if html, ok := snap.PageHTML("s1-page-1"); !ok || html != "<html><body>page 1</body></html>" {
		t.Errorf("page 1 capture = %q, %v", html, ok)
	}
}

func TestCreateSnapshotDropsLabelForAutoSource(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedSession("s1", 1)

	label := "should vanish"
	snap, err := env.snapshots.CreateSnapshot(ctx, &versioningSvc.CreateSnapshotRequest{
		SessionID: "s1",
		Label:     &label, // source omitted, defaults to auto
	})
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	if snap.Source != models.SourceAuto {
		t.Errorf("source = %s, want auto", snap.Source)
	}
	if snap.Label != nil {
		t.Errorf("auto snapshot kept label %q", *snap.Label)
	}
}

func TestCreateSnapshotRejectsUnknownSource(t *testing.T) {
	env := newTestEnv()
	env.seedSession("s1", 1)

	_, err := env.snapshots.CreateSnapshot(context.Background(), &versioningSvc.CreateSnapshotRequest{
		SessionID: "s1",
		Source:    "checkpoint",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestCreateSnapshotUnknownSessionLeavesNothing(t *testing.T) {
	env := newTestEnv()

	_, err := env.snapshots.CreateSnapshot(context.Background(), &versioningSvc.CreateSnapshotRequest{
		SessionID: "ghost",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
	if len(env.state.snaps) != 0 {
		t.Errorf("failed create left %d snapshots behind", len(env.state.snaps))
	}
	if env.state.counters[lineageSnapshot+"/ghost"] != 0 {
		t.Error("failed create consumed a sequence number")
	}
}

func TestSnapshotRetentionWindow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedSession("s1", 1)

	var first *models.ProjectSnapshot
	for i := 0; i < 6; i++ {
		snap, err := env.snapshots.CreateSnapshot(ctx, &versioningSvc.CreateSnapshotRequest{SessionID: "s1"})
		if err != nil {
			t.Fatalf("create snapshot %d: %v", i+1, err)
		}
		if first == nil {
			first = snap
		}
	}

	available, err := env.snapshots.ListSnapshots(ctx, "s1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(available) != 5 {
		t.Fatalf("available snapshots = %d, want 5", len(available))
	}
	for _, snap := range available {
		if snap.SnapshotNumber == 1 {
			t.Error("snapshot 1 should have aged out of the working set")
		}
	}

	all, err := env.snapshots.ListSnapshots(ctx, "s1", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("total snapshots = %d, want 6 (release hides, never deletes)", len(all))
	}

	released, err := env.snapshots.GetSnapshot(ctx, "s1", first.ID)
	if err != nil {
		t.Fatalf("get released: %v", err)
	}
	if !released.Released || !released.ContentCleared || released.DocContent != "" {
		t.Errorf("released snapshot should be cleared: %+v", released)
	}
}

func TestSnapshotDeepCopiesDocSpec(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.seedSession("s1", 1)

	snap, err := env.snapshots.CreateSnapshot(ctx, &versioningSvc.CreateSnapshotRequest{SessionID: "s1"})
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	// Mutate the live doc's nested spec after the capture.
	live, err := env.docs.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get doc: %v", err)
	}
	live.Spec["theme"].(map[string]any)["color"] = "red"
	if err := env.docs.Update(ctx, live); err != nil {
		t.Fatalf("update doc: %v", err)
	}

	got, err := env.snapshots.GetSnapshot(ctx, "s1", snap.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	theme, ok := got.DocSpec["theme"].(map[string]any)
	if !ok {
		t.Fatalf("snapshot spec lost structure: %v", got.DocSpec)
	}
	if theme["color"] != "blue" {
		t.Errorf("snapshot spec aliased the live doc: color = %v", theme["color"])
	}
}

func TestGetSnapshotWrongSession(t *testing.T) {
	env := newTestEnv()
	env.seedSession("s1", 0)
	snap := env.seedSnapshot("s1", 1, models.SourceManual)

	_, err := env.snapshots.GetSnapshot(context.Background(), "other-session", snap.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want not found for cross-session access", err)
	}
}

func TestCreateSnapshotAllocationFailureLeavesNothing(t *testing.T) {
	env := newTestEnv()
	env.seedSession("s1", 1)

	env.seq.failNext = func(lineage, parentID string) error {
		return &domain.SequencingError{
			Lineage:  lineage,
			ParentID: parentID,
			Attempts: 1,
			Err:      errors.New("counter conflict"),
		}
	}

	_, err := env.snapshots.CreateSnapshot(context.Background(), &versioningSvc.CreateSnapshotRequest{
		SessionID: "s1",
		Source:    "manual",
	})
	if !errors.Is(err, domain.ErrSequencing) {
		t.Fatalf("got %v, want sequencing failure", err)
	}
	if len(env.state.snaps) != 0 {
		t.Errorf("failed allocation left %d snapshots behind", len(env.state.snaps))
	}
	if env.state.counters[lineageSnapshot+"/s1"] != 0 {
		t.Error("failed allocation consumed a sequence number")
	}
}
