package allocation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotProvider is the data access seam of the engine. The sqlite-backed
// Provider implements it; tests substitute fixtures.
type SnapshotProvider interface {
	Snapshot(userID int64, ov *Overrides) (*Snapshot, error)
}

// Engine orchestrates the calculation pipeline: snapshot, target resolution,
// aggregation, variance annotation, presentation. Every call is a
// self-contained pure computation over its own snapshot; concurrent calls
// share nothing mutable.
type Engine struct {
	provider  SnapshotProvider
	resolver  *Resolver
	calc      *Calculator
	variance  *VarianceCalculator
	formatter *Formatter
	log       zerolog.Logger
}

// NewEngine creates a new allocation engine
func NewEngine(provider SnapshotProvider, log zerolog.Logger) *Engine {
	return &Engine{
		provider:  provider,
		resolver:  NewResolver(log),
		calc:      NewCalculator(log),
		variance:  NewVarianceCalculator(log),
		formatter: NewFormatter(log),
		log:       log.With().Str("service", "allocation_engine").Logger(),
	}
}

// Compute produces the ordered presentation rows for one user. Overrides,
// when supplied, replace the holdings/policy-target inputs for this call only
// and are never written back. A user without accounts gets an empty row
// sequence, not an error.
func (e *Engine) Compute(userID int64, ov *Overrides) ([]Row, error) {
	start := time.Now()
	log := e.log.With().
		Str("run_id", uuid.New().String()).
		Int64("user_id", userID).
		Bool("preview", ov != nil).
		Logger()

	arena, snap, err := e.buildArena(userID, ov)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			log.Info().Msg("No accounts, returning empty rows")
			return []Row{}, nil
		}
		return nil, err
	}

	if err := e.calc.VerifyAdditivity(arena); err != nil {
		log.Error().Err(err).Msg("Rollup additivity check failed")
		return nil, err
	}

	rows := e.formatter.Rows(arena, snap)

	log.Info().
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Allocation computed")

	return rows, nil
}

// buildArena runs the pipeline up to and including variance annotation
func (e *Engine) buildArena(userID int64, ov *Overrides) (*Arena, *Snapshot, error) {
	snap, err := e.provider.Snapshot(userID, ov)
	if err != nil {
		return nil, nil, err
	}

	resolved, err := e.resolver.Resolve(snap)
	if err != nil {
		return nil, nil, err
	}

	arena, err := e.calc.Build(snap, resolved)
	if err != nil {
		return nil, nil, err
	}

	e.variance.Annotate(arena)

	return arena, snap, nil
}
