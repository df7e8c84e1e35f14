package storeconfig

import (
	"time"

	"github.com/latticedb/store/pkg/logging"
)

// StoreOptions configures a Store. Built by applying StoreOption functions
// over the zero value returned by NewStoreOptions, following the teacher's
// functional-options idiom (NewStateStore(options...) in pkg/state/store.go).
type StoreOptions struct {
	Logger          logging.Logger
	SubscriptionTTL time.Duration
	MetricsEnabled  bool
}

// StoreOption mutates a StoreOptions in place.
type StoreOption func(*StoreOptions)

// NewStoreOptions builds the default StoreOptions and applies opts in order.
func NewStoreOptions(opts ...StoreOption) StoreOptions {
	o := StoreOptions{
		Logger:          logging.NewNop(),
		SubscriptionTTL: DefaultSubscriptionTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger overrides the Store's logger.
func WithLogger(l logging.Logger) StoreOption {
	return func(o *StoreOptions) { o.Logger = l }
}

// WithSubscriptionTTL overrides how long an un-notified observer survives
// before the next delivered change notification prunes it.
func WithSubscriptionTTL(ttl time.Duration) StoreOption {
	return func(o *StoreOptions) { o.SubscriptionTTL = ttl }
}

// WithMetrics turns on the Prometheus counters/histograms in store/metrics.go.
func WithMetrics(enabled bool) StoreOption {
	return func(o *StoreOptions) { o.MetricsEnabled = enabled }
}

// HistoryOptions configures a History.
type HistoryOptions struct {
	Logger       logging.Logger
	MaxUndoDepth int
}

type HistoryOption func(*HistoryOptions)

func NewHistoryOptions(opts ...HistoryOption) HistoryOptions {
	o := HistoryOptions{
		Logger:       logging.NewNop(),
		MaxUndoDepth: DefaultMaxUndoDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxUndoDepth bounds the number of retained undo/redo entries.
func WithMaxUndoDepth(n int) HistoryOption {
	return func(o *HistoryOptions) { o.MaxUndoDepth = n }
}

// WithHistoryLogger overrides the History's logger.
func WithHistoryLogger(l logging.Logger) HistoryOption {
	return func(o *HistoryOptions) { o.Logger = l }
}

// AdapterOptions configures the adapter implementations (memadapter,
// wsadapter).
type AdapterOptions struct {
	Logger               logging.Logger
	CreateStoreIDTimeout time.Duration
	FetchTimeout         time.Duration
	RetryInitialInterval time.Duration
	RetryMaxElapsedTime  time.Duration
}

type AdapterOption func(*AdapterOptions)

func NewAdapterOptions(opts ...AdapterOption) AdapterOptions {
	o := AdapterOptions{
		Logger:               logging.NewNop(),
		CreateStoreIDTimeout: DefaultCreateStoreIDTimeout,
		FetchTimeout:         DefaultFetchTimeout,
		RetryInitialInterval: DefaultRetryInitialInterval,
		RetryMaxElapsedTime:  DefaultRetryMaxElapsedTime,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithAdapterLogger(l logging.Logger) AdapterOption {
	return func(o *AdapterOptions) { o.Logger = l }
}

// WithRetryBackoff overrides the exponential-backoff envelope used by
// createStoreId/fetchPatches before failing with ErrAdapterUnavailable.
func WithRetryBackoff(initial, maxElapsed time.Duration) AdapterOption {
	return func(o *AdapterOptions) {
		o.RetryInitialInterval = initial
		o.RetryMaxElapsedTime = maxElapsed
	}
}
