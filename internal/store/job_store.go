package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
)

var ErrJobNotFound = errors.New("deposit job not found")

// DepositJob is the durable checkpoint for a queued deposit. The row is
// created in Pending state before any external call, so a crash or restart
// can always recover the request, and the unique transaction_id index keeps
// at most one non-failed job per caller-supplied id.
type DepositJob struct {
	ID                string          `db:"id"`
	TransactionID     string          `db:"transaction_id"`
	TransactionNumber string          `db:"transaction_number"`
	WalletID          string          `db:"wallet_id"`
	CRNumber          string          `db:"cr_number"`
	AmountLocal       decimal.Decimal `db:"amount_local"`
	AmountUSD         decimal.Decimal `db:"amount_usd"`
	Rate              decimal.Decimal `db:"rate"`
	BoughtAt          decimal.Decimal `db:"bought_at"`
	Status            bridge.Status   `db:"status"`
	Attempts          int             `db:"attempts"`
	MaxAttempts       int             `db:"max_attempts"`
	NextAttemptAt     time.Time       `db:"next_attempt_at"`
	ErrorMessage      *string         `db:"error_message"`
	ProviderResponse  []byte          `db:"provider_response"`
	CreatedAt         time.Time       `db:"created_at"`
	ProcessedAt       *time.Time      `db:"processed_at"`
}

type JobStore struct {
	db DB
}

func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

type DepositJobInput struct {
	ID                string
	TransactionID     string
	TransactionNumber string
	WalletID          string
	CRNumber          string
	AmountLocal       decimal.Decimal
	AmountUSD         decimal.Decimal
	Rate              decimal.Decimal
	BoughtAt          decimal.Decimal
	MaxAttempts       int
}

func (s *JobStore) Create(ctx context.Context, input DepositJobInput) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deposit_jobs
			(id, transaction_id, transaction_number, wallet_id, cr_number,
			 amount_local, amount_usd, rate, bought_at, status, attempts,
			 max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, now())
	`,
		input.ID, input.TransactionID, input.TransactionNumber, input.WalletID,
		input.CRNumber, input.AmountLocal, input.AmountUSD, input.Rate,
		input.BoughtAt, bridge.StatusPending, input.MaxAttempts,
	)
	return err
}

func (s *JobStore) GetByID(ctx context.Context, id string) (DepositJob, error) {
	var job DepositJob
	err := s.db.GetContext(ctx, &job, `
		SELECT id, transaction_id, transaction_number, wallet_id, cr_number,
		       amount_local, amount_usd, rate, bought_at, status, attempts,
		       max_attempts, next_attempt_at, error_message, provider_response,
		       created_at, processed_at
		FROM deposit_jobs WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return DepositJob{}, ErrJobNotFound
	}
	return job, err
}

func (s *JobStore) GetByTransactionID(ctx context.Context, transactionID string) (DepositJob, error) {
	var job DepositJob
	err := s.db.GetContext(ctx, &job, `
		SELECT id, transaction_id, transaction_number, wallet_id, cr_number,
		       amount_local, amount_usd, rate, bought_at, status, attempts,
		       max_attempts, next_attempt_at, error_message, provider_response,
		       created_at, processed_at
		FROM deposit_jobs WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, transactionID)
	if err == sql.ErrNoRows {
		return DepositJob{}, ErrJobNotFound
	}
	return job, err
}

// MarkProcessing claims a pending job, incrementing its attempt counter.
// A second concurrent claim sees zero rows and backs off.
func (s *JobStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deposit_jobs
		SET status = $1, attempts = attempts + 1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, bridge.StatusProcessing, id, bridge.StatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id string, providerResponse []byte, note string) error {
	var message *string
	if note != "" {
		message = &note
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE deposit_jobs
		SET status = $1, provider_response = $2, error_message = $3,
		    processed_at = now(), updated_at = now()
		WHERE id = $4
	`, bridge.StatusCompleted, providerResponse, message, id)
	return err
}

func (s *JobStore) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE deposit_jobs
		SET status = $1, error_message = $2, processed_at = now(), updated_at = now()
		WHERE id = $3
	`, bridge.StatusFailed, message, id)
	return err
}

// ScheduleRetry returns a processing job to the pending pool with a delay.
func (s *JobStore) ScheduleRetry(ctx context.Context, id string, at time.Time, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE deposit_jobs
		SET status = $1, next_attempt_at = $2, error_message = $3, updated_at = now()
		WHERE id = $4
	`, bridge.StatusPending, at.UTC(), message, id)
	return err
}

// FailStaleProcessing fails processing jobs last touched before the cutoff
// and returns them. A job stuck at processing means the runner died between
// claiming it and writing a terminal state; the transfer may or may not have
// gone out, so reclaiming it for another attempt could double-credit. It is
// handled like an unknown transfer outcome instead.
func (s *JobStore) FailStaleProcessing(ctx context.Context, cutoff time.Time) ([]DepositJob, error) {
	var jobs []DepositJob
	err := s.db.SelectContext(ctx, &jobs, `
		UPDATE deposit_jobs
		SET status = $1, error_message = $2, processed_at = now(), updated_at = now()
		WHERE status = $3 AND updated_at < $4
		RETURNING id, transaction_id, transaction_number, wallet_id, cr_number,
		          amount_local, amount_usd, rate, bought_at, status, attempts,
		          max_attempts, next_attempt_at, error_message, provider_response,
		          created_at, processed_at
	`, bridge.StatusFailed, "crashed mid-transfer - status unknown, manual reconciliation required",
		bridge.StatusProcessing, cutoff.UTC())
	return jobs, err
}

// Due lists pending jobs whose next attempt time has passed, oldest first.
func (s *JobStore) Due(ctx context.Context, limit int) ([]DepositJob, error) {
	var jobs []DepositJob
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT id, transaction_id, transaction_number, wallet_id, cr_number,
		       amount_local, amount_usd, rate, bought_at, status, attempts,
		       max_attempts, next_attempt_at, error_message, provider_response,
		       created_at, processed_at
		FROM deposit_jobs
		WHERE status = $1 AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`, bridge.StatusPending, limit)
	return jobs, err
}
