package versioning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
	versioningSvc "sitesmith/internal/domain/services/versioning"
)

// seedTime is the base timestamp for seeded records; seeded version n is
// created n minutes after it.
var seedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeState is the whole in-memory database. The fake transaction manager
// snapshots and restores it around each unit of work, so service-level
// atomicity guarantees are observable in tests.
type fakeState struct {
	docs     map[string]*models.ProductDoc
	pages    map[string]*models.Page
	snaps    map[string]*models.ProjectSnapshot
	history  map[string]*models.ProductDocHistory
	versions map[string]*models.PageVersion
	counters map[string]int
	claims   map[string]bool
}

func newFakeState() *fakeState {
	return &fakeState{
		docs:     make(map[string]*models.ProductDoc),
		pages:    make(map[string]*models.Page),
		snaps:    make(map[string]*models.ProjectSnapshot),
		history:  make(map[string]*models.ProductDocHistory),
		versions: make(map[string]*models.PageVersion),
		counters: make(map[string]int),
		claims:   make(map[string]bool),
	}
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	for k, v := range s.docs {
		d := *v
		d.Spec = maps.Clone(v.Spec)
		c.docs[k] = &d
	}
	for k, v := range s.pages {
		p := *v
		c.pages[k] = &p
	}
	for k, v := range s.snaps {
		sn := *v
		sn.DocSpec = maps.Clone(v.DocSpec)
		sn.Pages = append([]models.PageCapture(nil), v.Pages...)
		c.snaps[k] = &sn
	}
	for k, v := range s.history {
		h := *v
		h.Spec = maps.Clone(v.Spec)
		c.history[k] = &h
	}
	for k, v := range s.versions {
		pv := *v
		c.versions[k] = &pv
	}
	c.counters = maps.Clone(s.counters)
	c.claims = maps.Clone(s.claims)
	return c
}

// txMarker marks a context as already inside a fake transaction.
type txMarker struct{}

// fakeTxManager serializes units of work with a mutex and rolls the state
// back when the function fails, mirroring the commit/rollback semantics the
// services rely on.
type fakeTxManager struct {
	mu    sync.Mutex
	state *fakeState
}

func (m *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return m.run(ctx, fn)
}

func (m *fakeTxManager) ExecSerializableTx(ctx context.Context, fn repositories.TxFn) error {
	return m.run(ctx, fn)
}

func (m *fakeTxManager) run(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.state.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		*m.state = *backup
		return err
	}
	return nil
}

// fakeSnapshotRepo implements repositories.SnapshotRepository over fakeState.
type fakeSnapshotRepo struct {
	s *fakeState

	failCreate   func(*models.ProjectSnapshot) error
	releaseCalls int
}

func (r *fakeSnapshotRepo) Create(_ context.Context, snap *models.ProjectSnapshot) error {
	if r.failCreate != nil {
		if err := r.failCreate(snap); err != nil {
			return err
		}
	}
	c := *snap
	r.s.snaps[snap.ID] = &c
	return nil
}

func (r *fakeSnapshotRepo) GetByID(_ context.Context, id string) (*models.ProjectSnapshot, error) {
	snap, ok := r.s.snaps[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	c := *snap
	return &c, nil
}

func (r *fakeSnapshotRepo) ListBySession(_ context.Context, sessionID string, includeReleased bool) ([]models.ProjectSnapshot, error) {
	var out []models.ProjectSnapshot
	for _, snap := range r.s.snaps {
		if snap.SessionID != sessionID {
			continue
		}
		if snap.Released && !includeReleased {
			continue
		}
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotNumber > out[j].SnapshotNumber })
	return out, nil
}

func (r *fakeSnapshotRepo) ListEntries(_ context.Context, parentID string) ([]repositories.VersionEntry, error) {
	var out []repositories.VersionEntry
	for _, snap := range r.s.snaps {
		if snap.SessionID != parentID {
			continue
		}
		out = append(out, repositories.VersionEntry{
			ID:        snap.ID,
			ParentID:  snap.SessionID,
			Sequence:  snap.SnapshotNumber,
			Source:    snap.Source,
			Pinned:    snap.Pinned,
			Released:  snap.Released,
			CreatedAt: snap.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out, nil
}

func (r *fakeSnapshotRepo) GetEntry(ctx context.Context, id string) (repositories.VersionEntry, error) {
	snap, ok := r.s.snaps[id]
	if !ok {
		return repositories.VersionEntry{}, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	return repositories.VersionEntry{
		ID:        snap.ID,
		ParentID:  snap.SessionID,
		Sequence:  snap.SnapshotNumber,
		Source:    snap.Source,
		Pinned:    snap.Pinned,
		Released:  snap.Released,
		CreatedAt: snap.CreatedAt,
	}, nil
}

func (r *fakeSnapshotRepo) ListPinned(_ context.Context, parentID string) ([]string, error) {
	type pinned struct {
		id  string
		seq int
	}
	var hits []pinned
	for _, snap := range r.s.snaps {
		if snap.SessionID == parentID && snap.Pinned {
			hits = append(hits, pinned{snap.ID, snap.SnapshotNumber})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return ids, nil
}

func (r *fakeSnapshotRepo) SetPinned(_ context.Context, id string, pinned bool) error {
	snap, ok := r.s.snaps[id]
	if !ok {
		return fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	snap.Pinned = pinned
	return nil
}

func (r *fakeSnapshotRepo) MarkReleased(_ context.Context, id string, clearPayload bool) error {
	snap, ok := r.s.snaps[id]
	if !ok {
		return fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	r.releaseCalls++
	snap.Released = true
	if clearPayload {
		snap.DocContent = ""
		snap.DocSpec = map[string]any{}
		snap.Pages = nil
		snap.ContentCleared = true
	}
	return nil
}

func (r *fakeSnapshotRepo) MarkRetained(_ context.Context, id string) error {
	snap, ok := r.s.snaps[id]
	if !ok {
		return fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	snap.Released = false
	return nil
}

// fakeDocHistoryRepo implements repositories.DocHistoryRepository.
type fakeDocHistoryRepo struct {
	s *fakeState
}

func (r *fakeDocHistoryRepo) Create(_ context.Context, hist *models.ProductDocHistory) error {
	c := *hist
	r.s.history[hist.ID] = &c
	return nil
}

func (r *fakeDocHistoryRepo) GetByID(_ context.Context, id string) (*models.ProductDocHistory, error) {
	hist, ok := r.s.history[id]
	if !ok {
		return nil, fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
	}
	c := *hist
	return &c, nil
}

func (r *fakeDocHistoryRepo) ListByDoc(_ context.Context, docID string, includeReleased bool) ([]models.ProductDocHistory, error) {
	var out []models.ProductDocHistory
	for _, hist := range r.s.history {
		if hist.DocID != docID {
			continue
		}
		if hist.Released && !includeReleased {
			continue
		}
		out = append(out, *hist)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (r *fakeDocHistoryRepo) ListEntries(_ context.Context, parentID string) ([]repositories.VersionEntry, error) {
	var out []repositories.VersionEntry
	for _, hist := range r.s.history {
		if hist.DocID != parentID {
			continue
		}
		out = append(out, repositories.VersionEntry{
			ID:        hist.ID,
			ParentID:  hist.DocID,
			Sequence:  hist.VersionNumber,
			Source:    hist.Source,
			Pinned:    hist.Pinned,
			Released:  hist.Released,
			CreatedAt: hist.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out, nil
}

func (r *fakeDocHistoryRepo) GetEntry(_ context.Context, id string) (repositories.VersionEntry, error) {
	hist, ok := r.s.history[id]
	if !ok {
		return repositories.VersionEntry{}, fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
	}
	return repositories.VersionEntry{
		ID:        hist.ID,
		ParentID:  hist.DocID,
		Sequence:  hist.VersionNumber,
		Source:    hist.Source,
		Pinned:    hist.Pinned,
		Released:  hist.Released,
		CreatedAt: hist.CreatedAt,
	}, nil
}

func (r *fakeDocHistoryRepo) ListPinned(_ context.Context, parentID string) ([]string, error) {
	type pinned struct {
		id  string
		seq int
	}
	var hits []pinned
	for _, hist := range r.s.history {
		if hist.DocID == parentID && hist.Pinned {
			hits = append(hits, pinned{hist.ID, hist.VersionNumber})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return ids, nil
}

func (r *fakeDocHistoryRepo) SetPinned(_ context.Context, id string, pinned bool) error {
	hist, ok := r.s.history[id]
	if !ok {
		return fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
	}
	hist.Pinned = pinned
	return nil
}

func (r *fakeDocHistoryRepo) MarkReleased(_ context.Context, id string, clearPayload bool) error {
	hist, ok := r.s.history[id]
	if !ok {
		return fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
	}
	hist.Released = true
	if clearPayload {
		hist.Content = ""
		hist.Spec = map[string]any{}
	}
	return nil
}

func (r *fakeDocHistoryRepo) MarkRetained(_ context.Context, id string) error {
	hist, ok := r.s.history[id]
	if !ok {
		return fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
	}
	hist.Released = false
	return nil
}

// fakePageVersionRepo implements repositories.PageVersionRepository.
type fakePageVersionRepo struct {
	s *fakeState

	failCreate func(*models.PageVersion) error
}

func (r *fakePageVersionRepo) Create(_ context.Context, ver *models.PageVersion) error {
	if r.failCreate != nil {
		if err := r.failCreate(ver); err != nil {
			return err
		}
	}
	c := *ver
	r.s.versions[ver.ID] = &c
	return nil
}

func (r *fakePageVersionRepo) GetByID(_ context.Context, id string) (*models.PageVersion, error) {
	ver, ok := r.s.versions[id]
	if !ok {
		return nil, fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
	}
	c := *ver
	return &c, nil
}

func (r *fakePageVersionRepo) ListByPage(_ context.Context, pageID string, includeReleased bool) ([]models.PageVersion, error) {
	var out []models.PageVersion
	for _, ver := range r.s.versions {
		if ver.PageID != pageID {
			continue
		}
		if ver.Released && !includeReleased {
			continue
		}
		out = append(out, *ver)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (r *fakePageVersionRepo) ListEntries(_ context.Context, parentID string) ([]repositories.VersionEntry, error) {
	var out []repositories.VersionEntry
	for _, ver := range r.s.versions {
		if ver.PageID != parentID {
			continue
		}
		out = append(out, repositories.VersionEntry{
			ID:        ver.ID,
			ParentID:  ver.PageID,
			Sequence:  ver.VersionNumber,
			Source:    ver.Source,
			Pinned:    ver.Pinned,
			Released:  ver.Released,
			CreatedAt: ver.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out, nil
}

func (r *fakePageVersionRepo) GetEntry(_ context.Context, id string) (repositories.VersionEntry, error) {
	ver, ok := r.s.versions[id]
	if !ok {
		return repositories.VersionEntry{}, fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
	}
	return repositories.VersionEntry{
		ID:        ver.ID,
		ParentID:  ver.PageID,
		Sequence:  ver.VersionNumber,
		Source:    ver.Source,
		Pinned:    ver.Pinned,
		Released:  ver.Released,
		CreatedAt: ver.CreatedAt,
	}, nil
}

func (r *fakePageVersionRepo) ListPinned(_ context.Context, parentID string) ([]string, error) {
	type pinned struct {
		id  string
		seq int
	}
	var hits []pinned
	for _, ver := range r.s.versions {
		if ver.PageID == parentID && ver.Pinned {
			hits = append(hits, pinned{ver.ID, ver.VersionNumber})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return ids, nil
}

func (r *fakePageVersionRepo) SetPinned(_ context.Context, id string, pinned bool) error {
	ver, ok := r.s.versions[id]
	if !ok {
		return fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
	}
	ver.Pinned = pinned
	return nil
}

func (r *fakePageVersionRepo) MarkReleased(_ context.Context, id string, clearPayload bool) error {
	ver, ok := r.s.versions[id]
	if !ok {
		return fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
	}
	ver.Released = true
	if clearPayload {
		ver.HTML = ""
		ver.ContentCleared = true
	}
	return nil
}

func (r *fakePageVersionRepo) MarkRetained(_ context.Context, id string) error {
	ver, ok := r.s.versions[id]
	if !ok {
		return fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
	}
	ver.Released = false
	return nil
}

// fakeDocRepo implements repositories.ProductDocRepository.
type fakeDocRepo struct {
	s *fakeState
}

func (r *fakeDocRepo) Create(_ context.Context, doc *models.ProductDoc) error {
	c := *doc
	c.Spec = maps.Clone(doc.Spec)
	r.s.docs[doc.ID] = &c
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, id string) (*models.ProductDoc, error) {
	doc, ok := r.s.docs[id]
	if !ok {
		return nil, fmt.Errorf("product doc %s: %w", id, domain.ErrNotFound)
	}
	c := *doc
	return &c, nil
}

func (r *fakeDocRepo) GetBySession(_ context.Context, sessionID string) (*models.ProductDoc, error) {
	for _, doc := range r.s.docs {
		if doc.SessionID == sessionID {
			c := *doc
			return &c, nil
		}
	}
	return nil, fmt.Errorf("product doc for session %s: %w", sessionID, domain.ErrNotFound)
}

func (r *fakeDocRepo) Update(_ context.Context, doc *models.ProductDoc) error {
	if _, ok := r.s.docs[doc.ID]; !ok {
		return fmt.Errorf("product doc %s: %w", doc.ID, domain.ErrNotFound)
	}
	c := *doc
	c.Spec = maps.Clone(doc.Spec)
	r.s.docs[doc.ID] = &c
	return nil
}

// fakePageRepo implements repositories.PageRepository.
type fakePageRepo struct {
	s *fakeState
}

func (r *fakePageRepo) GetByID(_ context.Context, id string) (*models.Page, error) {
	page, ok := r.s.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	c := *page
	return &c, nil
}

func (r *fakePageRepo) ListBySession(_ context.Context, sessionID string) ([]models.Page, error) {
	var out []models.Page
	for _, page := range r.s.pages {
		if page.SessionID == sessionID {
			out = append(out, *page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePageRepo) Upsert(_ context.Context, page *models.Page) error {
	c := *page
	r.s.pages[page.ID] = &c
	return nil
}

// fakeSeq implements repositories.SequenceAllocator over the state's counter
// map, so allocations roll back with the rest of a failed unit of work.
// failNext injects an allocation failure for one lineage.
type fakeSeq struct {
	s        *fakeState
	failNext func(lineage, parentID string) error
}

func (a *fakeSeq) Next(_ context.Context, lineage, parentID string) (int, error) {
	if a.failNext != nil {
		if err := a.failNext(lineage, parentID); err != nil {
			return 0, err
		}
	}
	key := lineage + "/" + parentID
	a.s.counters[key]++
	return a.s.counters[key], nil
}

// fakeTriggerRepo implements repositories.SnapshotTriggerRepository.
type fakeTriggerRepo struct {
	s *fakeState
}

func (r *fakeTriggerRepo) Claim(_ context.Context, planID string) (bool, error) {
	if r.s.claims[planID] {
		return false, nil
	}
	r.s.claims[planID] = true
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires the whole service layer over the in-memory fakes.
type testEnv struct {
	state    *fakeState
	tx       *fakeTxManager
	snaps    *fakeSnapshotRepo
	history  *fakeDocHistoryRepo
	versions *fakePageVersionRepo
	docs     *fakeDocRepo
	pages    *fakePageRepo
	seq      *fakeSeq
	retainer *Retainer
	pins     *PinManager

	snapshots   versioningSvc.SnapshotService
	docHistory  versioningSvc.DocHistoryService
	pageEdits   versioningSvc.PageVersionService
	rollback    versioningSvc.RollbackService
	planEvents  versioningSvc.PlanListener
}

func newTestEnv() *testEnv {
	state := newFakeState()
	tx := &fakeTxManager{state: state}
	logger := discardLogger()
	policy := DefaultPolicy()

	env := &testEnv{
		state:    state,
		tx:       tx,
		snaps:    &fakeSnapshotRepo{s: state},
		history:  &fakeDocHistoryRepo{s: state},
		versions: &fakePageVersionRepo{s: state},
		docs:     &fakeDocRepo{s: state},
		pages:    &fakePageRepo{s: state},
	}
	seq := &fakeSeq{s: state}
	env.seq = seq
	env.retainer = NewRetainer(policy, logger)
	env.pins = NewPinManager(policy, tx, env.retainer, logger)

	env.snapshots = NewSnapshotService(env.snaps, env.docs, env.pages, seq, tx, env.retainer, env.pins, logger)
	env.docHistory = NewDocHistoryService(env.history, env.docs, seq, tx, env.retainer, env.pins, logger)
	env.pageEdits = NewPageVersionService(env.versions, env.pages, seq, tx, env.retainer, env.pins, logger)
	env.rollback = NewRollbackService(env.snaps, env.history, env.versions, env.docs, env.pages, seq, tx, env.retainer, logger)
	env.planEvents = NewAutoSnapshotTrigger(&fakeTriggerRepo{s: state}, env.snapshots, tx, logger)

	return env
}

// seedSession creates a product doc and pageCount pages for a session.
func (env *testEnv) seedSession(sessionID string, pageCount int) *models.ProductDoc {
	doc := &models.ProductDoc{
		ID:        "doc-" + sessionID,
		SessionID: sessionID,
		Content:   "# Product\n\nInitial draft.",
		Spec:      map[string]any{"theme": map[string]any{"color": "blue"}},
		CreatedAt: seedTime,
		UpdatedAt: seedTime,
	}
	env.state.docs[doc.ID] = doc

	for i := 1; i <= pageCount; i++ {
		id := fmt.Sprintf("%s-page-%d", sessionID, i)
		env.state.pages[id] = &models.Page{
			ID:        id,
			SessionID: sessionID,
			Title:     fmt.Sprintf("Page %d", i),
			HTML:      fmt.Sprintf("<html><body>page %d</body></html>", i),
			CreatedAt: seedTime,
			UpdatedAt: seedTime,
		}
	}
	return doc
}

// seedSnapshot inserts a snapshot record directly, keeping the sequence
// counter in step so later service calls allocate past it.
func (env *testEnv) seedSnapshot(sessionID string, n int, source models.Source, mutate ...func(*models.ProjectSnapshot)) *models.ProjectSnapshot {
	snap := &models.ProjectSnapshot{
		ID:             fmt.Sprintf("%s-snap-%d", sessionID, n),
		SessionID:      sessionID,
		SnapshotNumber: n,
		Source:         source,
		DocContent:     fmt.Sprintf("content %d", n),
		DocSpec:        map[string]any{"rev": float64(n)},
		Pages:          []models.PageCapture{{PageID: "p1", Title: "Home", HTML: fmt.Sprintf("<p>%d</p>", n)}},
		CreatedAt:      seedTime.Add(time.Duration(n) * time.Minute),
	}
	for _, fn := range mutate {
		fn(snap)
	}
	env.state.snaps[snap.ID] = snap

	key := lineageSnapshot + "/" + sessionID
	if env.state.counters[key] < n {
		env.state.counters[key] = n
	}
	return snap
}
