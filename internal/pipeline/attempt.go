package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
)

// recordAttempt writes one attempt audit row. Audit failures are logged,
// never propagated: losing a row must not fail a pipeline run.
func recordAttempt(
	ctx context.Context,
	recorder AttemptRecorder,
	jobID, noteID uuid.UUID,
	providerName string,
	stage domain.PipelineStage,
	outcome domain.AttemptOutcome,
	errKind string,
	confidence *float64,
	startedAt, endedAt time.Time,
) {
	attempt, err := domain.NewProviderAttempt(jobID, noteID, providerName,
		stage, outcome, startedAt, endedAt)
	if err != nil {
		logger.FromContext(ctx).Error("failed to build provider attempt record",
			"provider", providerName,
			"stage", stage,
			"error", err)
		return
	}
	if errKind != "" {
		attempt.ErrorKind = &errKind
	}
	attempt.Confidence = confidence

	if err := recorder.Record(ctx, attempt); err != nil {
		logger.FromContext(ctx).Error("failed to record provider attempt",
			"provider", providerName,
			"stage", stage,
			"outcome", outcome,
			"error", err)
	}
}
