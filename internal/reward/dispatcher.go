// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package reward credits kills and spins to player profiles off the
// combat path.
package reward

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/gachafight/arena/pkg/errutil"
)

// Credit outcome labels reported to Metrics.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Store persists reward credits.
type Store interface {
	// CreditKillAndSpin adds one kill and one spin to a profile.
	CreditKillAndSpin(ctx context.Context, identityID string) error
}

// TransientClassifier is implemented by stores that can tell retryable
// failures apart. Without it every failure is retried.
type TransientClassifier interface {
	IsTransient(err error) bool
}

// Metrics records credit outcomes.
type Metrics interface {
	RewardCredit(status string)
}

// Config controls the worker pool and retry policy.
type Config struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Workers:    2,
		QueueSize:  256,
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher queues credits and applies them on a pool of workers. The
// caller never waits for the store.
type Dispatcher struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers.
func NewDispatcher(store Store, cfg Config, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		queue:  make(chan string, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.work()
	}
	return d
}

// Dispatch queues one kill and spin credit for identityID. It never
// blocks; it reports false if the credit was dropped.
func (d *Dispatcher) Dispatch(identityID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || identityID == "" {
		d.record(StatusDropped)
		return false
	}
	select {
	case d.queue <- identityID:
		return true
	default:
		d.logger.Warn("reward credit dropped: queue full", "identity_id", identityID)
		d.record(StatusDropped)
		return false
	}
}

// Close stops accepting credits and waits for queued ones to finish. If
// ctx ends first, in-flight credits are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return oops.Code("REWARD_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for id := range d.queue {
		if err := d.credit(id); err != nil {
			errutil.LogError(d.logger, "reward credit failed", err, "identity_id", id)
			d.record(StatusFailed)
			continue
		}
		d.record(StatusOK)
	}
}

func (d *Dispatcher) credit(identityID string) error {
	backoff := retry.NewExponential(d.cfg.BaseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(d.cfg.MaxRetries, backoff)

	attempt := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempt++
		ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()

		err := d.store.CreditKillAndSpin(ctx, identityID)
		if err == nil {
			return nil
		}
		if d.transient(err) {
			d.logger.Debug("reward credit attempt failed, retrying",
				"identity_id", identityID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return oops.Code("REWARD_CREDIT_FAILED").
			With("identity_id", identityID).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

func (d *Dispatcher) transient(err error) bool {
	if c, ok := d.store.(TransientClassifier); ok {
		return c.IsTransient(err)
	}
	return true
}

func (d *Dispatcher) record(status string) {
	if d.metrics != nil {
		d.metrics.RewardCredit(status)
	}
}
