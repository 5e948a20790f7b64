package versioning

import (
	"context"
	"errors"
	"testing"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	versioningSvc "sitesmith/internal/domain/services/versioning"
)

// setupRollbackTarget seeds a session, takes a manual snapshot of its initial
// state, then mutates the doc and first page so a rollback has something to
// undo. Returns the snapshot to roll back to.
func setupRollbackTarget(t *testing.T, env *testEnv) *models.ProjectSnapshot {
	t.Helper()
	ctx := context.Background()
	doc := env.seedSession("s1", 2)

	snap, err := env.snapshots.CreateSnapshot(ctx, &versioningSvc.CreateSnapshotRequest{
		SessionID: "s1",
		Source:    "manual",
	})
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	if _, err := env.docHistory.UpdateDoc(ctx, doc.ID, &versioningSvc.UpdateDocRequest{
		Content: "# Product\n\nRevised draft.",
		Spec:    map[string]any{"theme": map[string]any{"color": "green"}},
	}); err != nil {
		t.Fatalf("update doc: %v", err)
	}
	if _, err := env.pageEdits.UpdatePage(ctx, "s1-page-1", &versioningSvc.UpdatePageRequest{
		HTML: "<html><body>rewritten</body></html>",
	}); err != nil {
		t.Fatalf("update page: %v", err)
	}

	return snap
}

func TestRollbackRestoresCapturedState(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	target := setupRollbackTarget(t, env)

	result, err := env.rollback.Rollback(ctx, "s1", target.ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	doc := env.state.docs["doc-s1"]
	if doc.Content != "# Product\n\nInitial draft." {
		t.Errorf("doc content = %q, want the captured draft", doc.Content)
	}
	page := env.state.pages["s1-page-1"]
	if page.HTML != "<html><body>page 1</body></html>" {
		t.Errorf("page html = %q, want the captured html", page.HTML)
	}

	// Forward replay: new records, new identities, higher sequence numbers.
	if result.NewSnapshot.ID == target.ID {
		t.Error("rollback must mint a new snapshot, not reuse the target")
	}
	if result.NewSnapshot.SnapshotNumber <= target.SnapshotNumber {
		t.Errorf("new snapshot number %d not past target %d",
			result.NewSnapshot.SnapshotNumber, target.SnapshotNumber)
	}
	if result.NewSnapshot.Source != models.SourceRollback {
		t.Errorf("new snapshot source = %s, want rollback", result.NewSnapshot.Source)
	}
	if len(result.RestoredPages) != 2 {
		t.Errorf("restored pages = %v, want both captured pages", result.RestoredPages)
	}
	if result.NewSnapshot.DocContent != target.DocContent {
		t.Error("new snapshot content differs from the target's")
	}

	if doc.CurrentHistoryID == nil {
		t.Fatal("doc current pointer not set")
	}
	hist := env.state.history[*doc.CurrentHistoryID]
	if hist.Source != models.SourceRollback {
		t.Errorf("current history source = %s, want rollback", hist.Source)
	}
	if hist.ChangeSummary == nil || *hist.ChangeSummary != "restored from snapshot 1" {
		t.Errorf("change summary = %v", hist.ChangeSummary)
	}

	if page.CurrentVersionID == nil {
		t.Fatal("page current pointer not set")
	}
	ver := env.state.versions[*page.CurrentVersionID]
	if ver.Source != models.SourceRollback || ver.HTML != page.HTML {
		t.Errorf("current page version = %+v", ver)
	}
}

func TestRollbackRecreatesDeletedPage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	target := setupRollbackTarget(t, env)

	delete(env.state.pages, "s1-page-2")

	if _, err := env.rollback.Rollback(ctx, "s1", target.ID); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	page, ok := env.state.pages["s1-page-2"]
	if !ok {
		t.Fatal("deleted page not recreated")
	}
	if page.HTML != "<html><body>page 2</body></html>" {
		t.Errorf("recreated page html = %q", page.HTML)
	}
	if page.SessionID != "s1" {
		t.Errorf("recreated page session = %q", page.SessionID)
	}
}

func TestRollbackToReleasedSnapshotIsRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	target := setupRollbackTarget(t, env)

	if err := env.snaps.MarkReleased(ctx, target.ID, true); err != nil {
		t.Fatalf("release target: %v", err)
	}

	_, err := env.rollback.Rollback(ctx, "s1", target.ID)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("got %v, want unavailable", err)
	}
}

func TestRollbackUnknownSnapshot(t *testing.T) {
	env := newTestEnv()
	env.seedSession("s1", 1)

	_, err := env.rollback.Rollback(context.Background(), "s1", "no-such-snapshot")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestRollbackCrossSessionSnapshot(t *testing.T) {
	env := newTestEnv()
	env.seedSession("s1", 1)
	env.seedSession("s2", 1)
	snap := env.seedSnapshot("s2", 1, models.SourceManual)

	_, err := env.rollback.Rollback(context.Background(), "s1", snap.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want not found for another session's snapshot", err)
	}
}

func TestRollbackIsAllOrNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	target := setupRollbackTarget(t, env)

	snapsBefore := len(env.state.snaps)
	histBefore := len(env.state.history)
	versBefore := len(env.state.versions)
	docPointer := *env.state.docs["doc-s1"].CurrentHistoryID
	pageHTML := env.state.pages["s1-page-1"].HTML
	counterBefore := env.state.counters[lineagePageVersion+"/s1-page-2"]

	// Fail while materializing the second page's version: the doc history
	// and first page version have already been written inside the tx.
	boom := errors.New("storage gone")
	created := 0
	env.versions.failCreate = func(*models.PageVersion) error {
		created++
		if created == 2 {
			return boom
		}
		return nil
	}

	_, err := env.rollback.Rollback(ctx, "s1", target.ID)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want injected failure", err)
	}

	if len(env.state.snaps) != snapsBefore {
		t.Errorf("snapshots leaked: %d, want %d", len(env.state.snaps), snapsBefore)
	}
	if len(env.state.history) != histBefore {
		t.Errorf("doc history leaked: %d, want %d", len(env.state.history), histBefore)
	}
	if len(env.state.versions) != versBefore {
		t.Errorf("page versions leaked: %d, want %d", len(env.state.versions), versBefore)
	}
	if got := *env.state.docs["doc-s1"].CurrentHistoryID; got != docPointer {
		t.Errorf("doc pointer moved to %s", got)
	}
	if got := env.state.pages["s1-page-1"].HTML; got != pageHTML {
		t.Errorf("page content changed to %q", got)
	}
	if got := env.state.counters[lineagePageVersion+"/s1-page-2"]; got != counterBefore {
		t.Errorf("sequence counter moved to %d", got)
	}
}

func TestRollbackAllocationFailureLeavesNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	target := setupRollbackTarget(t, env)

	snapsBefore := len(env.state.snaps)
	histBefore := len(env.state.history)
	versBefore := len(env.state.versions)
	docPointer := *env.state.docs["doc-s1"].CurrentHistoryID

	// Fail numbering the second page's version: the doc history and first
	// page version have already been written inside the tx.
	allocated := 0
	env.seq.failNext = func(lineage, parentID string) error {
		if lineage != lineagePageVersion {
			return nil
		}
		allocated++
		if allocated == 2 {
			return &domain.SequencingError{
				Lineage:  lineage,
				ParentID: parentID,
				Attempts: 1,
				Err:      errors.New("counter conflict"),
			}
		}
		return nil
	}

	_, err := env.rollback.Rollback(ctx, "s1", target.ID)
	if !errors.Is(err, domain.ErrSequencing) {
		t.Fatalf("got %v, want sequencing failure", err)
	}

	if len(env.state.snaps) != snapsBefore {
		t.Errorf("snapshots leaked: %d, want %d", len(env.state.snaps), snapsBefore)
	}
	if len(env.state.history) != histBefore {
		t.Errorf("doc history leaked: %d, want %d", len(env.state.history), histBefore)
	}
	if len(env.state.versions) != versBefore {
		t.Errorf("page versions leaked: %d, want %d", len(env.state.versions), versBefore)
	}
	if got := *env.state.docs["doc-s1"].CurrentHistoryID; got != docPointer {
		t.Errorf("doc pointer moved to %s", got)
	}
}
