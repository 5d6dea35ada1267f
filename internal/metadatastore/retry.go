package metadatastore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codesearch-core/codesearch/internal/errs"
)

// withTxnRetry retries fn on storage-transient failures with exponential
// backoff and jitter (spec §7: "Storage-transient ... Retried with
// exponential backoff+jitter up to configured cap"). The teacher's
// surrealdb_code_symbols.go calls s.withTxnRetry(ctx, fn) throughout but
// never defines it in any file available to this pack; this is new code
// filling that gap, grounded on the already-declared backoff/v4 dependency
// rather than a hand-rolled retry loop.
//
// Errors errs.Retryable rejects (anything not tagged errs.StorageTransient
// or errs.EmbeddingTransient, and any untagged error) return immediately
// without retry.
func withTxnRetry(ctx context.Context, maxElapsed time.Duration, fn func(ctx context.Context) error) error {
	if maxElapsed <= 0 {
		maxElapsed = 10 * time.Second
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = maxElapsed

	operation := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
