package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/latticedb/store/pkg/storeconfig"
	"github.com/latticedb/store/pkg/storeerr"
)

// Retry runs op with exponential backoff until it succeeds, ctx is done
// (failing with storeerr.ErrAdapterTimeout), or the configured retry budget
// is exhausted (failing with storeerr.ErrAdapterUnavailable) (spec §4.7 "On transport failure retries
// with exponential backoff; after the retry budget is exhausted, fails
// with AdapterUnavailable"). Shared by memadapter (where op practically
// never fails) and wsadapter (where it guards the real network round trip).
//
// op may wrap a non-transient failure (a missing patch id, say) in
// backoff.Permanent to stop retrying immediately; that inner error is
// returned as-is, bypassing the ErrAdapterUnavailable wrap, so callers can
// still errors.Is against the original sentinel.
func Retry(ctx context.Context, opts storeconfig.AdapterOptions, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInitialInterval
	b.MaxElapsedTime = opts.RetryMaxElapsedTime
	bctx := backoff.WithContext(b, ctx)

	var permanent error
	wrapped := func() error {
		err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = perm.Err
		}
		return err
	}

	if err := backoff.Retry(wrapped, bctx); err != nil {
		if permanent != nil {
			return permanent
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", storeerr.ErrAdapterTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %v", storeerr.ErrAdapterUnavailable, err)
	}
	return nil
}
