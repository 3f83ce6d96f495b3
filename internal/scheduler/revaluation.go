package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/quantfolio/allocator/internal/modules/pricing"
)

// RevaluationJob periodically recomputes holding values from stored prices,
// so allocation snapshots keep tracking the latest valuations without an
// explicit revalue call.
type RevaluationJob struct {
	service *pricing.RevaluationService
	log     zerolog.Logger
}

// NewRevaluationJob creates a new revaluation job
func NewRevaluationJob(service *pricing.RevaluationService, log zerolog.Logger) *RevaluationJob {
	return &RevaluationJob{
		service: service,
		log:     log.With().Str("job", "revaluation").Logger(),
	}
}

// Name returns the job name
func (j *RevaluationJob) Name() string {
	return "holdings_revaluation"
}

// Run revalues all holdings once
func (j *RevaluationJob) Run() error {
	result, err := j.service.RevalueHoldings()
	if err != nil {
		return err
	}

	j.log.Info().
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Scheduled revaluation complete")

	return nil
}
