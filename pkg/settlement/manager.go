package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/pkg/config"
)

const initialBackoff = 100 * time.Millisecond

// retryPolicy bounds the submission attempts of a single commitment.
type retryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// nextBackoff doubles the backoff within the policy bounds.
func (p retryPolicy) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return p.MinBackoff
	}
	return min(current*2, p.MaxBackoff)
}

// Manager queues commitments for submission and turns submission and acceptance outcomes
// into events.
type Manager struct {
	client Client
	logger zerolog.Logger
	policy retryPolicy
	poll   time.Duration

	queue  chan Commitment
	events chan Event

	// pending holds submitted commitments awaiting acceptance, by ToHeight.
	mu      sync.Mutex
	pending map[uint64]Commitment

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a manager around client. The returned stream carries the outcome of
// every commitment posted to the manager.
func NewManager(client Client, cfg config.SettlementConfig, logger zerolog.Logger) (*Manager, EventStream) {
	queueSize := max(cfg.QueueSize, 1)
	poll := cfg.PollInterval.Duration
	if poll <= 0 {
		poll = time.Second
	}

	m := &Manager{
		client: client,
		logger: logger.With().Str("component", "settlement_manager").Logger(),
		policy: retryPolicy{
			MaxAttempts: max(cfg.MaxAttempts, 1),
			MinBackoff:  min(initialBackoff, poll),
			MaxBackoff:  poll,
		},
		poll:    poll,
		queue:   make(chan Commitment, queueSize),
		events:  make(chan Event, 2*queueSize),
		pending: make(map[uint64]Commitment),
		stopCh:  make(chan struct{}),
	}
	return m, m.events
}

// Start launches the submission and acceptance loops.
func (m *Manager) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return ErrManagerStopped
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrManagerStarted
	}

	ctx, m.cancel = context.WithCancel(ctx)
	accepted, errs, err := m.client.StreamAccepted(ctx)
	if err != nil {
		m.cancel()
		return fmt.Errorf("failed to stream accepted commitments: %w", err)
	}

	m.wg.Add(2)
	go m.submitLoop(ctx)
	go m.acceptLoop(ctx, accepted, errs)
	return nil
}

// PostCommitment enqueues a commitment for submission. It never blocks: a full queue is
// reported as ErrQueueFull.
func (m *Manager) PostCommitment(ctx context.Context, c Commitment) error {
	if m.stopped.Load() {
		return ErrManagerStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case m.queue <- c:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, c)
	}
}

// Stop stops the loops, closes the client and closes the event stream.
// It is safe to call Stop multiple times.
func (m *Manager) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.stopCh)
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		close(m.events)
		err = m.client.Close()
	})
	return err
}

func (m *Manager) submitLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case c := <-m.queue:
			m.submit(ctx, c)
		}
	}
}

// submit posts a commitment, retrying transient failures with exponential backoff.
func (m *Manager) submit(ctx context.Context, c Commitment) {
	m.mu.Lock()
	m.pending[c.ToHeight] = c
	m.mu.Unlock()

	var (
		backoff time.Duration
		lastErr error
	)
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		err := m.client.PostCommitment(ctx, c)
		if err == nil {
			m.logger.Debug().Uint64("height", c.ToHeight).Int("attempt", attempt).Msg("commitment submitted")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrCommitmentRejected) {
			m.forget(c.ToHeight)
			m.emit(Event{Kind: EventRejected, Commitment: c, Err: err})
			return
		}

		lastErr = err
		m.logger.Warn().Err(err).Uint64("height", c.ToHeight).Int("attempt", attempt).Msg("failed to submit commitment")
		if attempt == m.policy.MaxAttempts {
			break
		}

		backoff = m.policy.nextBackoff(backoff)
		if err := m.wait(ctx, backoff); err != nil {
			return
		}
	}

	m.forget(c.ToHeight)
	m.emit(Event{
		Kind:       EventFailed,
		Commitment: c,
		Err:        fmt.Errorf("giving up after %d attempts: %w", m.policy.MaxAttempts, lastErr),
	})
}

func (m *Manager) acceptLoop(ctx context.Context, accepted <-chan Commitment, errs <-chan error) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.logger.Warn().Err(err).Msg("error while streaming accepted commitments")
		case c, ok := <-accepted:
			if !ok {
				m.logger.Warn().Msg("accepted commitment stream ended, resubscribing")
				if accepted, errs = m.resubscribe(ctx); accepted == nil {
					return
				}
				continue
			}
			m.handleAccepted(c)
		}
	}
}

// resubscribe retries StreamAccepted every poll interval until it succeeds or the manager stops.
func (m *Manager) resubscribe(ctx context.Context) (<-chan Commitment, <-chan error) {
	for {
		if err := m.wait(ctx, m.poll); err != nil {
			return nil, nil
		}
		accepted, errs, err := m.client.StreamAccepted(ctx)
		if err == nil {
			return accepted, errs
		}
		m.logger.Error().Err(err).Msg("failed to resubscribe to accepted commitments")
	}
}

func (m *Manager) handleAccepted(c Commitment) {
	m.mu.Lock()
	local, ok := m.pending[c.ToHeight]
	if ok {
		delete(m.pending, c.ToHeight)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug().Uint64("height", c.ToHeight).Msg("ignoring acceptance of unknown commitment")
		return
	}
	if !local.Matches(c) {
		m.emit(Event{
			Kind:       EventRejected,
			Commitment: local,
			Err:        fmt.Errorf("%w: accepted %s", ErrCommitmentMismatch, c),
		})
		return
	}
	m.emit(Event{Kind: EventAccepted, Commitment: local})
}

func (m *Manager) forget(height uint64) {
	m.mu.Lock()
	delete(m.pending, height)
	m.mu.Unlock()
}

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	case <-m.stopCh:
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return ErrManagerStopped
	}
}
