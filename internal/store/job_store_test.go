package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apelisol/stepakash-wallet/internal/bridge"
)

type stubDB struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) {
	return 0, r.err
}

func (r stubResult) RowsAffected() (int64, error) {
	return r.rows, r.err
}

func TestCreateInsertsPending(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	db := stubDB{execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		gotQuery = query
		gotArgs = args
		return stubResult{rows: 1}, nil
	}}
	jobs := NewJobStore(db)

	err := jobs.Create(context.Background(), DepositJobInput{
		ID:            "job-1",
		TransactionID: "tx-1",
		AmountUSD:     decimal.RequireFromString("10"),
		MaxAttempts:   3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "INSERT INTO deposit_jobs") {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	found := false
	for _, arg := range gotArgs {
		if arg == bridge.StatusPending {
			found = true
		}
	}
	if !found {
		t.Fatalf("new jobs must be created pending, args: %v", gotArgs)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := stubDB{getFn: func(ctx context.Context, dest any, query string, args ...any) error {
		return sql.ErrNoRows
	}}
	jobs := NewJobStore(db)

	_, err := jobs.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetByTransactionIDNotFound(t *testing.T) {
	db := stubDB{getFn: func(ctx context.Context, dest any, query string, args ...any) error {
		return sql.ErrNoRows
	}}
	jobs := NewJobStore(db)

	_, err := jobs.GetByTransactionID(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMarkProcessingClaims(t *testing.T) {
	db := stubDB{execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		if !strings.Contains(query, "attempts = attempts + 1") {
			t.Fatalf("claim must bump the attempt counter: %s", query)
		}
		return stubResult{rows: 1}, nil
	}}
	jobs := NewJobStore(db)

	claimed, err := jobs.MarkProcessing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected the claim to succeed")
	}
}

func TestMarkProcessingLosesRace(t *testing.T) {
	db := stubDB{execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		return stubResult{rows: 0}, nil
	}}
	jobs := NewJobStore(db)

	claimed, err := jobs.MarkProcessing(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("a second claimer must back off")
	}
}

func TestScheduleRetryReturnsJobToPending(t *testing.T) {
	var gotArgs []any
	db := stubDB{execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		gotArgs = args
		return stubResult{rows: 1}, nil
	}}
	jobs := NewJobStore(db)

	at := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	if err := jobs.ScheduleRetry(context.Background(), "job-1", at, "provider connection failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotArgs[0] != bridge.StatusPending {
		t.Fatalf("retry must return the job to pending, got %v", gotArgs[0])
	}
}

func TestFailStaleProcessing(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	db := stubDB{selectFn: func(ctx context.Context, dest any, query string, args ...any) error {
		gotQuery = query
		gotArgs = args
		return nil
	}}
	jobs := NewJobStore(db)

	cutoff := time.Date(2025, 6, 1, 11, 55, 0, 0, time.UTC)
	if _, err := jobs.FailStaleProcessing(context.Background(), cutoff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "RETURNING") {
		t.Fatalf("reclaim must report which jobs it failed: %s", gotQuery)
	}
	if gotArgs[0] != bridge.StatusFailed {
		t.Fatalf("abandoned jobs must be failed, got %v", gotArgs[0])
	}
	message, _ := gotArgs[1].(string)
	if !strings.Contains(message, "manual reconciliation") {
		t.Fatalf("failure message must direct to reconciliation, got %q", message)
	}
	if gotArgs[2] != bridge.StatusProcessing {
		t.Fatalf("only processing rows may be reclaimed, got %v", gotArgs[2])
	}
	if gotArgs[3] != cutoff {
		t.Fatalf("expected cutoff %v, got %v", cutoff, gotArgs[3])
	}
}

func TestDueQueriesPendingOnly(t *testing.T) {
	db := stubDB{selectFn: func(ctx context.Context, dest any, query string, args ...any) error {
		if !strings.Contains(query, "next_attempt_at <= now()") {
			t.Fatalf("due query must respect the backoff window: %s", query)
		}
		if args[0] != bridge.StatusPending {
			t.Fatalf("due query must select pending jobs, got %v", args[0])
		}
		return nil
	}}
	jobs := NewJobStore(db)

	if _, err := jobs.Due(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
