package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/classcheck/internal/correlate"
	"github.com/rpattn/classcheck/internal/domain"
)

type stubHost struct {
	aliveErr    error
	elements    []uuid.UUID
	defs        []domain.PropertyDefinition
	rows        []domain.PropertyRow
	rowsErr     error
	blockRows   bool
	systems     []domain.ClassificationSystem
	tree        []domain.ClassificationNode
	assignments [][]domain.ClassificationAssignment

	requestedDefs []domain.PropertyDefinition
	calls         []string
}

func (h *stubHost) IsAlive(ctx context.Context) error {
	h.calls = append(h.calls, "IsAlive")
	return h.aliveErr
}

func (h *stubHost) GetAllElements(ctx context.Context) ([]uuid.UUID, error) {
	h.calls = append(h.calls, "GetAllElements")
	return h.elements, nil
}

func (h *stubHost) GetAllPropertyNames(ctx context.Context) ([]domain.PropertyDefinition, error) {
	h.calls = append(h.calls, "GetAllPropertyNames")
	return h.defs, nil
}

func (h *stubHost) GetPropertyIDs(ctx context.Context, defs []domain.PropertyDefinition) ([]uuid.UUID, error) {
	h.calls = append(h.calls, "GetPropertyIDs")
	h.requestedDefs = defs
	ids := make([]uuid.UUID, len(defs))
	for i := range defs {
		ids[i] = uuid.New()
	}
	return ids, nil
}

func (h *stubHost) GetPropertyValuesOfElements(ctx context.Context, elements []uuid.UUID, propertyIDs []uuid.UUID) ([]domain.PropertyRow, error) {
	h.calls = append(h.calls, "GetPropertyValuesOfElements")
	if h.blockRows {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.rows, h.rowsErr
}

func (h *stubHost) GetAllClassificationSystems(ctx context.Context) ([]domain.ClassificationSystem, error) {
	h.calls = append(h.calls, "GetAllClassificationSystems")
	return h.systems, nil
}

func (h *stubHost) GetAllClassificationsInSystem(ctx context.Context, systemID uuid.UUID) ([]domain.ClassificationNode, error) {
	h.calls = append(h.calls, "GetAllClassificationsInSystem")
	return h.tree, nil
}

func (h *stubHost) GetClassificationsOfElements(ctx context.Context, elements []uuid.UUID, systemIDs []uuid.UUID) ([][]domain.ClassificationAssignment, error) {
	h.calls = append(h.calls, "GetClassificationsOfElements")
	return h.assignments, nil
}

type stubSnapshotRepo struct {
	replaced []domain.Snapshot
	err      error
}

func (r *stubSnapshotRepo) Replace(ctx context.Context, snapshot domain.Snapshot) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.replaced = append(r.replaced, snapshot)
	return int64(len(snapshot.Elements)), nil
}

func (r *stubSnapshotRepo) List(ctx context.Context) ([]domain.Element, error) {
	if len(r.replaced) == 0 {
		return nil, nil
	}
	return r.replaced[len(r.replaced)-1].Elements, nil
}

func (r *stubSnapshotRepo) ListItems(ctx context.Context) ([]domain.ClassificationItem, error) {
	if len(r.replaced) == 0 {
		return nil, nil
	}
	return r.replaced[len(r.replaced)-1].Items, nil
}

type stubRunLogRepo struct {
	entries []domain.RunLogEntry
	err     error
}

func (r *stubRunLogRepo) Record(ctx context.Context, entry domain.RunLogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubRunLogRepo) List(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	return r.entries, nil
}

type stubObserver struct {
	entries []domain.RunLogEntry
}

func (o *stubObserver) ObserveRun(entry domain.RunLogEntry) {
	o.entries = append(o.entries, entry)
}

type fixture struct {
	system   uuid.UUID
	wallItem uuid.UUID
	classed  uuid.UUID
	plain    uuid.UUID
}

func row(elemType, id string) domain.PropertyRow {
	return domain.PropertyRow{Values: []domain.PropertyValue{
		{Status: domain.PropertyValueNormal, Value: elemType},
		{Status: domain.PropertyValueNormal, Value: id},
	}}
}

// newHost returns a host with two elements: one classified as Ss_25, one without any
// classification. The type property is listed before the id property so that the
// resolved positions differ from the configured order.
func newHost() (*stubHost, fixture) {
	f := fixture{
		system:   uuid.New(),
		wallItem: uuid.New(),
		classed:  uuid.New(),
		plain:    uuid.New(),
	}
	host := &stubHost{
		elements: []uuid.UUID{f.classed, f.plain},
		defs: []domain.PropertyDefinition{
			{Type: domain.PropertyTypeUserDefined, NonLocalizedName: "General_ElementID"},
			{Type: domain.PropertyTypeBuiltIn, NonLocalizedName: "General_Type"},
			{Type: domain.PropertyTypeBuiltIn, NonLocalizedName: "General_Height"},
			{Type: domain.PropertyTypeBuiltIn, NonLocalizedName: "General_ElementID"},
		},
		rows: []domain.PropertyRow{row("Wall", "E-100"), row("Slab", "E-200")},
		systems: []domain.ClassificationSystem{
			{GUID: uuid.New(), Name: "ARCHICAD Classification"},
			{GUID: f.system, Name: "Uniclass 2015"},
		},
		tree: []domain.ClassificationNode{{
			GUID: uuid.New(), ID: "Ss", Name: "Systems",
			Children: []domain.ClassificationNode{{GUID: f.wallItem, ID: "Ss_25", Name: "Wall systems"}},
		}},
		assignments: [][]domain.ClassificationAssignment{
			{{SystemGUID: f.system, ItemGUID: f.wallItem}},
			{},
		},
	}
	return host, f
}

func newTestService(host Host, snapshots *stubSnapshotRepo, runs *stubRunLogRepo, opts ...Option) *Service {
	settings := Settings{SystemName: "Uniclass 2015", IDProperty: "General_ElementID", TypeProperty: "General_Type"}
	if runs == nil {
		return NewService(host, snapshots, nil, settings, opts...)
	}
	return NewService(host, snapshots, runs, settings, opts...)
}

func TestRunWritesCorrelatedSnapshot(t *testing.T) {
	host, f := newHost()
	snapshots := &stubSnapshotRepo{}
	runs := &stubRunLogRepo{}

	summary, err := newTestService(host, snapshots, runs).Run(context.Background())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if summary.Elements != 2 || summary.Classified != 1 || summary.Unclassified != 1 || summary.RowsWritten != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.TaxonomyItems != 2 {
		t.Fatalf("expected 2 taxonomy items, got %d", summary.TaxonomyItems)
	}

	if len(host.requestedDefs) != 2 || host.requestedDefs[0].NonLocalizedName != "General_Type" {
		t.Fatalf("expected ids requested for the BuiltIn subset in host order, got %+v", host.requestedDefs)
	}

	if len(snapshots.replaced) != 1 {
		t.Fatalf("expected one snapshot write, got %d", len(snapshots.replaced))
	}
	elements := snapshots.replaced[0].Elements
	classed := elements[0]
	if classed.GUID != f.classed || classed.ID != "E-100" || classed.Type != "Wall" || classed.ClassificationLabel != "Ss_25" {
		t.Fatalf("unexpected classified element: %+v", classed)
	}
	if classed.ClassificationGUID == nil || *classed.ClassificationGUID != f.wallItem {
		t.Fatalf("expected classification guid %s, got %v", f.wallItem, classed.ClassificationGUID)
	}
	if classed.ClassificationSystemGUID == nil || *classed.ClassificationSystemGUID != f.system {
		t.Fatalf("expected system guid %s, got %v", f.system, classed.ClassificationSystemGUID)
	}

	plain := elements[1]
	if plain.ClassificationLabel != domain.UnclassifiedLabel || plain.ClassificationGUID != nil || plain.ClassificationSystemGUID != nil {
		t.Fatalf("unexpected unclassified element: %+v", plain)
	}
	if plain.ID != "E-200" || plain.Type != "Slab" {
		t.Fatalf("expected id/type from resolved positions, got %+v", plain)
	}

	if len(snapshots.replaced[0].Items) != 2 {
		t.Fatalf("expected taxonomy items in snapshot, got %d", len(snapshots.replaced[0].Items))
	}

	if len(runs.entries) != 1 || runs.entries[0].Status != domain.RunStatusSucceeded {
		t.Fatalf("expected one succeeded run log entry, got %+v", runs.entries)
	}
	if runs.entries[0].RowsWritten != 2 || runs.entries[0].ClassificationSystem != "Uniclass 2015" {
		t.Fatalf("unexpected run log entry: %+v", runs.entries[0])
	}
}

func TestRunTwiceProducesSameSnapshot(t *testing.T) {
	host, _ := newHost()
	snapshots := &stubSnapshotRepo{}
	service := newTestService(host, snapshots, nil)

	for i := 0; i < 2; i++ {
		if _, err := service.Run(context.Background()); err != nil {
			t.Fatalf("run %d returned error: %v", i, err)
		}
	}

	first, second := snapshots.replaced[0].Elements, snapshots.replaced[1].Elements
	if len(first) != len(second) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].GUID != second[i].GUID || first[i].ClassificationLabel != second[i].ClassificationLabel {
			t.Fatalf("snapshots differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRunLengthMismatchWritesNothing(t *testing.T) {
	host, _ := newHost()
	host.elements = append(host.elements, uuid.New(), uuid.New(), uuid.New())
	host.rows = append(host.rows, row("Door", "E-300"), row("Door", "E-301"), row("Door", "E-302"))
	host.assignments = append(host.assignments, nil, nil)

	snapshots := &stubSnapshotRepo{}
	runs := &stubRunLogRepo{}

	_, err := newTestService(host, snapshots, runs).Run(context.Background())
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if !errors.Is(err, domain.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if domain.KindOf(err) != domain.KindDataInconsistency {
		t.Fatalf("expected data inconsistency kind, got %q", domain.KindOf(err))
	}
	var inconsistency *domain.InconsistencyError
	if !errors.As(err, &inconsistency) || inconsistency.Classification != 4 || inconsistency.Elements != 5 {
		t.Fatalf("expected counts 5/5/4, got %+v", inconsistency)
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write")
	}
	if len(runs.entries) != 1 || runs.entries[0].Status != domain.RunStatusFailed || runs.entries[0].Stage != domain.StageCorrelation {
		t.Fatalf("expected failed run log at correlation stage, got %+v", runs.entries)
	}
}

func TestRunUnknownSystemIsConfigurationError(t *testing.T) {
	host, _ := newHost()
	snapshots := &stubSnapshotRepo{}
	settings := Settings{SystemName: "OmniClass", IDProperty: "General_ElementID", TypeProperty: "General_Type"}

	_, err := NewService(host, snapshots, nil, settings).Run(context.Background())
	if !errors.Is(err, domain.ErrClassificationSystemNotFound) {
		t.Fatalf("expected system not found, got %v", err)
	}
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("expected configuration kind, got %q", domain.KindOf(err))
	}
	for _, call := range host.calls {
		if call == "GetAllElements" {
			t.Fatalf("expected no per-element calls after configuration error, got %v", host.calls)
		}
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write")
	}
}

func TestRunUnresolvedPropertyIsConfigurationError(t *testing.T) {
	host, _ := newHost()
	settings := Settings{SystemName: "Uniclass 2015", IDProperty: "General_ElementID", TypeProperty: "General_Material"}

	_, err := NewService(host, &stubSnapshotRepo{}, nil, settings).Run(context.Background())
	if !errors.Is(err, domain.ErrUnresolvedProperty) {
		t.Fatalf("expected unresolved property, got %v", err)
	}
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != domain.StageProperties || stageErr.Kind != domain.KindConfiguration {
		t.Fatalf("unexpected stage error: %+v", stageErr)
	}
}

func TestRunHostFailureIsHostError(t *testing.T) {
	host, _ := newHost()
	host.aliveErr = errors.New("connection refused")
	snapshots := &stubSnapshotRepo{}
	runs := &stubRunLogRepo{}

	_, err := newTestService(host, snapshots, runs).Run(context.Background())
	if domain.KindOf(err) != domain.KindHost {
		t.Fatalf("expected host kind, got %v", err)
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write")
	}
	if len(runs.entries) != 1 || runs.entries[0].Stage != domain.StageConnect || runs.entries[0].ErrorKind != domain.KindHost {
		t.Fatalf("unexpected run log: %+v", runs.entries)
	}
}

func TestRunHostLengthMismatchIsDataInconsistency(t *testing.T) {
	host, _ := newHost()
	host.rowsErr = domain.ErrLengthMismatch

	_, err := newTestService(host, &stubSnapshotRepo{}, nil).Run(context.Background())
	if domain.KindOf(err) != domain.KindDataInconsistency {
		t.Fatalf("expected data inconsistency kind, got %v", err)
	}
}

func TestRunMalformedTaxonomyAborts(t *testing.T) {
	host, _ := newHost()
	host.tree[0].Children = append(host.tree[0].Children, domain.ClassificationNode{GUID: uuid.New()})
	snapshots := &stubSnapshotRepo{}

	_, err := newTestService(host, snapshots, nil).Run(context.Background())
	if !errors.Is(err, domain.ErrMalformedClassification) || domain.KindOf(err) != domain.KindTaxonomy {
		t.Fatalf("expected malformed taxonomy error, got %v", err)
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write")
	}
}

func TestRunUnresolvedItemPolicies(t *testing.T) {
	host, f := newHost()
	host.assignments[1] = []domain.ClassificationAssignment{{SystemGUID: f.system, ItemGUID: uuid.New()}}

	snapshots := &stubSnapshotRepo{}
	summary, err := newTestService(host, snapshots, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("fallback run returned error: %v", err)
	}
	if summary.Unresolved != 1 || summary.Unclassified != 1 {
		t.Fatalf("expected one unresolved unclassified element, got %+v", summary)
	}
	stored := snapshots.replaced[0].Elements[1]
	if stored.ClassificationLabel != domain.UnclassifiedLabel || stored.ClassificationSystemGUID == nil {
		t.Fatalf("expected unclassified element keeping its system, got %+v", stored)
	}

	strict := &stubSnapshotRepo{}
	settings := Settings{
		SystemName:   "Uniclass 2015",
		IDProperty:   "General_ElementID",
		TypeProperty: "General_Type",
		Policy:       correlate.PolicyError,
	}
	_, err = NewService(host, strict, nil, settings).Run(context.Background())
	if !errors.Is(err, domain.ErrUnresolvedClassification) {
		t.Fatalf("expected unresolved classification error, got %v", err)
	}
	if len(strict.replaced) != 0 {
		t.Fatalf("expected no snapshot write under strict policy")
	}
}

func TestRunDryRunSkipsWrite(t *testing.T) {
	host, _ := newHost()
	snapshots := &stubSnapshotRepo{}
	runs := &stubRunLogRepo{}
	observer := &stubObserver{}

	summary, err := newTestService(host, snapshots, runs, WithDryRun(true), WithObserver(observer)).Run(context.Background())
	if err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
	if !summary.DryRun || summary.RowsWritten != 0 || summary.Elements != 2 {
		t.Fatalf("unexpected dry run summary: %+v", summary)
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write during dry run")
	}
	if len(runs.entries) != 1 || runs.entries[0].Status != domain.RunStatusDryRun {
		t.Fatalf("expected dry run log entry, got %+v", runs.entries)
	}
	if len(observer.entries) != 1 || observer.entries[0].Elements != 2 {
		t.Fatalf("expected observer to see the run, got %+v", observer.entries)
	}
}

func TestRunStorageFailureIsStorageError(t *testing.T) {
	host, _ := newHost()
	snapshots := &stubSnapshotRepo{err: errors.New("connection reset")}
	runs := &stubRunLogRepo{}

	_, err := newTestService(host, snapshots, runs).Run(context.Background())
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != domain.StageSnapshot || stageErr.Kind != domain.KindStorage {
		t.Fatalf("expected storage error at snapshot stage, got %v", err)
	}
	if runs.entries[0].Status != domain.RunStatusFailed || runs.entries[0].RowsWritten != 0 {
		t.Fatalf("unexpected run log: %+v", runs.entries[0])
	}
}

func TestRunLogFailureDoesNotFailRun(t *testing.T) {
	host, _ := newHost()
	runs := &stubRunLogRepo{err: errors.New("table missing")}

	if _, err := newTestService(host, &stubSnapshotRepo{}, runs).Run(context.Background()); err != nil {
		t.Fatalf("expected run to succeed despite run log failure, got %v", err)
	}
}

func TestRunRecordsDuration(t *testing.T) {
	host, _ := newHost()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(3 * time.Second)}
	clock := func() time.Time {
		now := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return now
	}
	runs := &stubRunLogRepo{}

	summary, err := newTestService(host, &stubSnapshotRepo{}, runs, WithClock(clock)).Run(context.Background())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if summary.Duration != 3*time.Second || runs.entries[0].Duration() != 3*time.Second {
		t.Fatalf("expected 3s duration, got %s / %s", summary.Duration, runs.entries[0].Duration())
	}
}

func TestRunHostTimeoutAbortsWithoutWrite(t *testing.T) {
	host, _ := newHost()
	host.blockRows = true
	snapshots := &stubSnapshotRepo{}
	runs := &stubRunLogRepo{}

	_, err := newTestService(host, snapshots, runs, WithCallTimeout(20*time.Millisecond)).Run(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != domain.KindHost || stageErr.Stage != domain.StageProperties {
		t.Fatalf("expected host error at properties stage, got %v", err)
	}
	if len(snapshots.replaced) != 0 {
		t.Fatalf("expected no snapshot write after a timeout")
	}
	if len(runs.entries) != 1 || runs.entries[0].Status != domain.RunStatusFailed {
		t.Fatalf("expected failed run log entry, got %+v", runs.entries)
	}
}
