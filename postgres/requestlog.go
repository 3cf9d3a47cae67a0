package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/interview"
)

// AddRequestLog inserts a new request log with pending status.
func (s *PGStore) AddRequestLog(ctx context.Context, log interview.RequestLog) (*interview.RequestLog, error) {
	id := uuid.New().String()
	now := time.Now()

	err := s.db.QueryRow(ctx, `
		INSERT INTO model_request_logs (
			id, session_id, provider, schema_kind, retry_count,
			final_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`,
		id, log.SessionID, log.Provider, string(log.Schema), log.RetryCount,
		interview.StatusPending, now, now,
	).Scan(&log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return nil, err
	}

	log.ID = id
	log.FinalStatus = interview.StatusPending
	return &log, nil
}

// UpdateRequestLog records the outcome of a request.
func (s *PGStore) UpdateRequestLog(ctx context.Context, log interview.RequestLog) error {
	_, err := s.db.Exec(ctx, `
		UPDATE model_request_logs
		SET
			final_status = $1,
			fail_reason = $2,
			error_message = $3,
			retry_count = $4,
			prompt_tokens = $5,
			response_tokens = $6,
			total_tokens = $7,
			thought_tokens = $8,
			latency_ms = $9,
			updated_at = NOW()
		WHERE id = $10
	`,
		log.FinalStatus, log.FailReason, log.ErrorMsg, log.RetryCount,
		log.Usage.PromptTokens, log.Usage.ResponseTokens, log.Usage.TotalTokens, log.Usage.ThoughtTokens,
		log.LatencyMS,
		log.ID,
	)
	return err
}
