package metadatastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codesearch-core/codesearch/internal/errs"
)

func TestWithTxnRetry_SucceedsWithoutRetryOnFirstTry(t *testing.T) {
	calls := 0
	err := withTxnRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestWithTxnRetry_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := withTxnRetry(context.Background(), 2*time.Second, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.Wrap(errs.StorageTransient, "op", errors.New("lock timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts before success, got %d", calls)
	}
}

func TestWithTxnRetry_StopsImmediatelyOnFatalError(t *testing.T) {
	calls := 0
	err := withTxnRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return errs.Wrap(errs.StorageFatal, "op", errors.New("constraint violation"))
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected no retries for a fatal error, got %d calls", calls)
	}
}

func TestWithTxnRetry_StopsOnUntaggedError(t *testing.T) {
	calls := 0
	err := withTxnRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return errors.New("untagged")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected no retries for an untagged error, got %d calls", calls)
	}
}
