// Package mock provides an in-memory settlement client for development networks and tests.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/inertialabsxyz/movement/pkg/settlement"
)

var _ settlement.Client = (*Client)(nil)

// ErrClosed is returned by a closed client.
var ErrClosed = errors.New("mock settlement client closed")

// Client accepts commitments in memory.
// By default every posted commitment is accepted immediately.
type Client struct {
	mu       sync.Mutex
	posted   []settlement.Commitment
	manual   bool
	rejected map[uint64]struct{}
	failures int
	failErr  error
	subs     []*subscription
	closed   bool
}

// Option configures a Client.
type Option func(*Client)

// WithManualAcceptance disables automatic acceptance. Commitments are accepted through Accept.
func WithManualAcceptance() Option {
	return func(c *Client) { c.manual = true }
}

// WithRejectedHeights makes the client reject commitments ending at the given heights.
func WithRejectedHeights(heights ...uint64) Option {
	return func(c *Client) {
		for _, h := range heights {
			c.rejected[h] = struct{}{}
		}
	}
}

// WithFailures makes the next n PostCommitment calls fail with a transient error.
func WithFailures(n int) Option {
	return func(c *Client) { c.failures = n }
}

// NewClient creates an in-memory settlement client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		rejected: make(map[uint64]struct{}),
		failErr:  errors.New("mock settlement: transient failure"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostCommitment records the commitment and, unless acceptance is manual, accepts it.
func (c *Client) PostCommitment(ctx context.Context, com settlement.Commitment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return c.failErr
	}
	if _, ok := c.rejected[com.ToHeight]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: height %d", settlement.ErrCommitmentRejected, com.ToHeight)
	}
	c.posted = append(c.posted, com)
	manual := c.manual
	c.mu.Unlock()

	if !manual {
		c.Accept(com)
	}
	return nil
}

// Accept publishes com as accepted to every subscriber.
func (c *Client) Accept(com settlement.Commitment) {
	c.mu.Lock()
	subs := append([]*subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.push(com)
	}
}

// Posted returns the commitments posted so far, in order.
func (c *Client) Posted() []settlement.Commitment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]settlement.Commitment(nil), c.posted...)
}

// StreamAccepted subscribes to accepted commitments until ctx is done.
func (c *Client) StreamAccepted(ctx context.Context) (<-chan settlement.Commitment, <-chan error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	s := &subscription{notify: make(chan struct{}, 1)}
	c.subs = append(c.subs, s)

	out := make(chan settlement.Commitment)
	errs := make(chan error)
	go func() {
		defer close(errs)
		defer close(out)
		defer c.unsubscribe(s)
		s.forward(ctx, out)
	}()
	return out, errs, nil
}

// Close marks the client closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) unsubscribe(s *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if sub == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// subscription buffers accepted commitments for one subscriber without blocking the publisher.
type subscription struct {
	mu     sync.Mutex
	queue  []settlement.Commitment
	notify chan struct{}
}

func (s *subscription) push(com settlement.Commitment) {
	s.mu.Lock()
	s.queue = append(s.queue, com)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) forward(ctx context.Context, out chan<- settlement.Commitment) {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, com := range batch {
			select {
			case out <- com:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return
		}
	}
}
