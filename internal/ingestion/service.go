// Package ingestion runs one classification snapshot: it pulls elements, property
// values and the classification taxonomy from the host, correlates them and replaces
// the stored snapshot.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/classcheck/internal/correlate"
	"github.com/rpattn/classcheck/internal/domain"
	"github.com/rpattn/classcheck/internal/logging"
	"github.com/rpattn/classcheck/internal/properties"
	"github.com/rpattn/classcheck/internal/repository"
	"github.com/rpattn/classcheck/internal/taxonomy"
)

// Host is the subset of the host API a run needs. Implemented by host.Client.
type Host interface {
	IsAlive(ctx context.Context) error
	GetAllElements(ctx context.Context) ([]uuid.UUID, error)
	GetAllPropertyNames(ctx context.Context) ([]domain.PropertyDefinition, error)
	GetPropertyIDs(ctx context.Context, defs []domain.PropertyDefinition) ([]uuid.UUID, error)
	GetPropertyValuesOfElements(ctx context.Context, elements []uuid.UUID, propertyIDs []uuid.UUID) ([]domain.PropertyRow, error)
	GetAllClassificationSystems(ctx context.Context) ([]domain.ClassificationSystem, error)
	GetAllClassificationsInSystem(ctx context.Context, systemID uuid.UUID) ([]domain.ClassificationNode, error)
	GetClassificationsOfElements(ctx context.Context, elements []uuid.UUID, systemIDs []uuid.UUID) ([][]domain.ClassificationAssignment, error)
}

// RunObserver receives the log entry of every finished run.
type RunObserver interface {
	ObserveRun(entry domain.RunLogEntry)
}

// Settings selects what a run extracts.
type Settings struct {
	SystemName   string
	IDProperty   string
	TypeProperty string
	Policy       correlate.UnresolvedPolicy
}

// Summary describes a finished run.
type Summary struct {
	RunID                uuid.UUID     `json:"runId"`
	ClassificationSystem string        `json:"classificationSystem"`
	Elements             int           `json:"elements"`
	Classified           int           `json:"classified"`
	Unclassified         int           `json:"unclassified"`
	Unresolved           int           `json:"unresolved"`
	MultiAssigned        int           `json:"multiAssigned"`
	TaxonomyItems        int           `json:"taxonomyItems"`
	RowsWritten          int64         `json:"rowsWritten"`
	DryRun               bool          `json:"dryRun"`
	Duration             time.Duration `json:"duration"`
}

// Service orchestrates snapshot runs.
type Service struct {
	host           Host
	snapshotRepo   repository.SnapshotRepository
	runLogRepo     repository.RunLogRepository
	settings       Settings
	logger         *slog.Logger
	observer       RunObserver
	callTimeout    time.Duration
	storageTimeout time.Duration
	dryRun         bool
	now            func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallTimeout bounds every host command as a whole, across all of its batches.
// Single requests are bounded by the host client.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.callTimeout = d }
}

// WithStorageTimeout bounds the snapshot write and the run log write.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) { s.storageTimeout = d }
}

// WithObserver registers a RunObserver, typically the metrics collector.
func WithObserver(observer RunObserver) Option {
	return func(s *Service) { s.observer = observer }
}

// WithDryRun skips the snapshot write.
func WithDryRun(dryRun bool) Option {
	return func(s *Service) { s.dryRun = dryRun }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new ingestion service. runLogRepo may be nil.
func NewService(
	host Host,
	snapshotRepo repository.SnapshotRepository,
	runLogRepo repository.RunLogRepository,
	settings Settings,
	opts ...Option,
) *Service {
	if settings.Policy == "" {
		settings.Policy = correlate.PolicyFallback
	}
	s := &Service{
		host:         host,
		snapshotRepo: snapshotRepo,
		runLogRepo:   runLogRepo,
		settings:     settings,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// extraction is everything pulled from the host in one run.
type extraction struct {
	system      domain.ClassificationSystem
	resolution  properties.Resolution
	elements    []uuid.UUID
	rows        []domain.PropertyRow
	items       []domain.ClassificationItem
	assignments [][]domain.ClassificationAssignment
}

// Run performs one full snapshot. On any failure nothing is written and the returned
// error is a *domain.StageError.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	runID := uuid.New()
	ctx = logging.WithRunID(ctx, runID.String())
	logger := logging.FromContext(ctx, s.logger)

	entry := domain.RunLogEntry{
		ID:                   runID,
		ClassificationSystem: s.settings.SystemName,
		StartedAt:            s.now(),
	}
	summary := Summary{RunID: runID, ClassificationSystem: s.settings.SystemName, DryRun: s.dryRun}

	logger.Info("snapshot run started", "system", s.settings.SystemName, "dry_run", s.dryRun)

	err := s.run(ctx, logger, &summary)

	entry.FinishedAt = s.now()
	summary.Duration = entry.FinishedAt.Sub(entry.StartedAt)
	entry.Elements = summary.Elements
	entry.Classified = summary.Classified
	entry.Unclassified = summary.Unclassified
	entry.Unresolved = summary.Unresolved
	entry.TaxonomyItems = summary.TaxonomyItems
	entry.RowsWritten = summary.RowsWritten

	switch {
	case err != nil:
		entry.Status = domain.RunStatusFailed
		entry.ErrorMessage = err.Error()
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			entry.Stage = stageErr.Stage
			entry.ErrorKind = stageErr.Kind
		}
		logger.Error("snapshot run failed",
			"stage", entry.Stage,
			"kind", entry.ErrorKind,
			"error", err,
		)
	case s.dryRun:
		entry.Status = domain.RunStatusDryRun
		logger.Info("snapshot dry run completed",
			"elements", summary.Elements,
			"classified", summary.Classified,
			"unclassified", summary.Unclassified,
			"duration", summary.Duration,
		)
	default:
		entry.Status = domain.RunStatusSucceeded
		logger.Info("snapshot run completed",
			"elements", summary.Elements,
			"classified", summary.Classified,
			"unclassified", summary.Unclassified,
			"unresolved", summary.Unresolved,
			"rows_written", summary.RowsWritten,
			"duration", summary.Duration,
		)
	}

	s.recordRun(ctx, logger, entry)
	if s.observer != nil {
		s.observer.ObserveRun(entry)
	}

	if err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	ex, err := s.extract(ctx, logger)
	if err != nil {
		return err
	}
	summary.TaxonomyItems = len(ex.items)

	index := taxonomy.NewIndex(ex.items)
	correlator := correlate.New(index,
		ex.resolution.Index(0),
		ex.resolution.Index(1),
		correlate.WithPolicy(s.settings.Policy),
		correlate.WithLogger(logger),
	)
	result, err := correlator.Correlate(correlate.Input{
		Elements:     ex.elements,
		PropertyRows: ex.rows,
		Assignments:  ex.assignments,
	})
	if err != nil {
		kind := domain.KindDataInconsistency
		if errors.Is(err, domain.ErrUnresolvedClassification) {
			kind = domain.KindTaxonomy
		}
		return domain.NewStageError(domain.StageCorrelation, kind, err)
	}

	summary.Elements = len(result.Elements)
	summary.Classified = result.Classified
	summary.Unclassified = result.Unclassified
	summary.Unresolved = result.Unresolved
	summary.MultiAssigned = result.MultiAssigned
	if result.MultiAssigned > 0 {
		logger.Warn("elements with more than one classification; first one used",
			"count", result.MultiAssigned,
		)
	}
	if result.Unresolved > 0 {
		logger.Warn("classification items missing from taxonomy; elements stored as unclassified",
			"count", result.Unresolved,
		)
	}

	if s.dryRun {
		return nil
	}

	storeCtx, cancel := s.withTimeout(ctx, s.storageTimeout)
	defer cancel()
	written, err := s.snapshotRepo.Replace(storeCtx, domain.Snapshot{Elements: result.Elements, Items: ex.items})
	if err != nil {
		return domain.NewStageError(domain.StageSnapshot, domain.KindStorage, err)
	}
	summary.RowsWritten = written
	return nil
}

// extract pulls everything from the host, one command at a time.
func (s *Service) extract(ctx context.Context, logger *slog.Logger) (extraction, error) {
	var ex extraction

	if err := s.call(ctx, func(ctx context.Context) error { return s.host.IsAlive(ctx) }); err != nil {
		return ex, hostError(domain.StageConnect, err)
	}

	// Resolve configuration against the host before pulling per-element data.
	var systems []domain.ClassificationSystem
	err := s.call(ctx, func(ctx context.Context) (err error) {
		systems, err = s.host.GetAllClassificationSystems(ctx)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageClassification, err)
	}
	system, ok := findSystem(systems, s.settings.SystemName)
	if !ok {
		return ex, domain.NewStageError(domain.StageClassification, domain.KindConfiguration,
			fmt.Errorf("%w: %q", domain.ErrClassificationSystemNotFound, s.settings.SystemName))
	}
	ex.system = system
	logger.Debug("classification system resolved", "system", system.Name, "guid", system.GUID)

	var defs []domain.PropertyDefinition
	err = s.call(ctx, func(ctx context.Context) (err error) {
		defs, err = s.host.GetAllPropertyNames(ctx)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageProperties, err)
	}
	resolution, err := properties.Resolve(defs, []string{s.settings.IDProperty, s.settings.TypeProperty})
	if err != nil {
		return ex, domain.NewStageError(domain.StageProperties, domain.KindConfiguration, err)
	}
	ex.resolution = resolution

	var propertyIDs []uuid.UUID
	err = s.call(ctx, func(ctx context.Context) (err error) {
		propertyIDs, err = s.host.GetPropertyIDs(ctx, resolution.Subset)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageProperties, err)
	}

	err = s.call(ctx, func(ctx context.Context) (err error) {
		ex.elements, err = s.host.GetAllElements(ctx)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageElements, err)
	}
	logger.Info("elements fetched", "count", len(ex.elements))

	err = s.call(ctx, func(ctx context.Context) (err error) {
		ex.rows, err = s.host.GetPropertyValuesOfElements(ctx, ex.elements, propertyIDs)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageProperties, err)
	}

	var roots []domain.ClassificationNode
	err = s.call(ctx, func(ctx context.Context) (err error) {
		roots, err = s.host.GetAllClassificationsInSystem(ctx, system.GUID)
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageTaxonomy, err)
	}
	ex.items, err = taxonomy.Flatten(roots)
	if err != nil {
		return ex, domain.NewStageError(domain.StageTaxonomy, domain.KindTaxonomy, err)
	}
	logger.Info("taxonomy flattened", "items", len(ex.items))

	err = s.call(ctx, func(ctx context.Context) (err error) {
		ex.assignments, err = s.host.GetClassificationsOfElements(ctx, ex.elements, []uuid.UUID{system.GUID})
		return err
	})
	if err != nil {
		return ex, hostError(domain.StageClassification, err)
	}

	return ex, nil
}

// call runs fn under the per-call timeout.
func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := s.withTimeout(ctx, s.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func (s *Service) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// recordRun stores the run log entry. Failures are logged and otherwise ignored.
func (s *Service) recordRun(ctx context.Context, logger *slog.Logger, entry domain.RunLogEntry) {
	if s.runLogRepo == nil {
		return
	}
	// The run context may already be cancelled; the log entry should still land.
	recordCtx, cancel := s.withTimeout(context.WithoutCancel(ctx), s.storageTimeout)
	defer cancel()
	if err := s.runLogRepo.Record(recordCtx, entry); err != nil {
		logger.Warn("failed to record run log", "error", err)
	}
}

// hostError tags a host failure. Mismatched reply lengths are data inconsistencies.
func hostError(stage domain.Stage, err error) error {
	if errors.Is(err, domain.ErrLengthMismatch) {
		return domain.NewStageError(stage, domain.KindDataInconsistency, err)
	}
	return domain.NewStageError(stage, domain.KindHost, err)
}

func findSystem(systems []domain.ClassificationSystem, name string) (domain.ClassificationSystem, bool) {
	for _, system := range systems {
		if system.Name == name {
			return system, true
		}
	}
	return domain.ClassificationSystem{}, false
}
