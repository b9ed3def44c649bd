package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
)

// Priorities, lower values are served first.
const (
	PriorityCritical = 0
	PriorityNormal   = 10
)

const (
	defaultSettleDelay    = 500 * time.Millisecond
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 7
	defaultBaseRetryDelay = 100 * time.Millisecond
	defaultMaxRetryDelay  = 5 * time.Second
	defaultDedupWindow    = 1 * time.Second
)

// NoRetries set as Config.MaxRetries runs every operation once, a zero MaxRetries
// uses the default.
const NoRetries = -1

var (
	// ErrDuplicate is returned by Enqueue when an operation with the same key is already queued.
	ErrDuplicate = errors.New("duplicate operation")
	// ErrTimeout is returned when an operation attempt exceeds its deadline.
	ErrTimeout = errors.New("operation attempt timed out")
	// ErrRetriesExhausted is returned when an operation kept conflicting after all the retries.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Operation is a unit of work submitted to the coordinator.
type Operation struct {
	// Type is a symbolic tag used only for diagnostics.
	Type string
	// Key deduplicates operations, empty disables deduplication.
	Key string
	// Priority of the operation, see PriorityCritical and PriorityNormal.
	Priority int
	// Execute does the whole fetch, transform and write back sequence. It can be
	// called more than once, so it must fetch fresh state on every call.
	Execute func(ctx context.Context) (any, error)
	// OnRetry is called before every retry with the retry number (starting at 1).
	OnRetry func(attempt, maxRetries int)
	// OnSuccess is called with the result when the operation succeeds.
	OnSuccess func(result any)
	// OnError is called with the final error when the operation fails.
	OnError func(err error)
	// Timeout of each attempt, zero uses the coordinator default.
	Timeout time.Duration
}

// OperationRef identifies an operation on the status feed.
type OperationRef struct {
	ID   string
	Type string
}

// Status is a snapshot of the coordinator state.
type Status struct {
	IsProcessing bool
	Current      *OperationRef
	QueueLength  int
}

// Config is the coordinator configuration.
type Config struct {
	// SettleDelay is the wait after a successful operation before running the next one,
	// gives the backing store time to serve the just written state on reads.
	SettleDelay time.Duration
	// DefaultTimeout is the per attempt timeout of operations that don't set one.
	DefaultTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt, use NoRetries to disable them.
	MaxRetries int
	// BaseRetryDelay is the base of the exponential backoff.
	BaseRetryDelay time.Duration
	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration
	// DedupWindow is the time an operation key blocks other operations with the same key.
	DedupWindow time.Duration
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.SettleDelay < 0 || c.DefaultTimeout < 0 || c.MaxRetries < NoRetries ||
		c.BaseRetryDelay < 0 || c.MaxRetryDelay < 0 || c.DedupWindow < 0 {
		return fmt.Errorf("durations and retries can't be negative")
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaultTimeout
	}
	switch c.MaxRetries {
	case 0:
		c.MaxRetries = defaultMaxRetries
	case NoRetries:
		c.MaxRetries = 0
	}
	if c.BaseRetryDelay == 0 {
		c.BaseRetryDelay = defaultBaseRetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		return fmt.Errorf("max retry delay can't be lower than the base retry delay")
	}
	if c.DedupWindow == 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "coordinator.Coordinator"})
	return nil
}

type entry struct {
	id        string
	op        Operation
	createdAt time.Time
	finished  bool
	future    *Future
}

// Coordinator serializes mutations against the document store: one operation
// runs at a time, in priority order, retrying the ones that lost a version race.
//
// Create a single one per process and share it with every caller that mutates the store.
type Coordinator struct {
	settleDelay    time.Duration
	defaultTimeout time.Duration
	maxRetries     int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
	dedupWindow    time.Duration
	logger         log.Logger

	mu         sync.Mutex
	pending    []*entry
	current    *entry
	processing bool
	// Status snapshots waiting to be delivered, in the order they were taken.
	outbox     []Status
	delivering bool

	listenersMu sync.RWMutex
	listeners   map[uint64]func(Status)
	listenerSeq uint64
}

// New returns a new coordinator.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Coordinator{
		settleDelay:    cfg.SettleDelay,
		defaultTimeout: cfg.DefaultTimeout,
		maxRetries:     cfg.MaxRetries,
		baseRetryDelay: cfg.BaseRetryDelay,
		maxRetryDelay:  cfg.MaxRetryDelay,
		dedupWindow:    cfg.DedupWindow,
		logger:         cfg.Logger,
		listeners:      map[uint64]func(Status){},
	}, nil
}

// Enqueue queues an operation and returns the future of its result.
//
// If an operation with the same key was enqueued less than the dedup window ago
// and is still queued or running, nothing is queued and ErrDuplicate is returned.
func (c *Coordinator) Enqueue(op Operation) (*Future, error) {
	if op.Execute == nil {
		return nil, fmt.Errorf("operation execute func is required: %w", model.ErrNotValid)
	}

	now := time.Now()

	c.mu.Lock()
	if c.isDuplicate(op.Key, now) {
		c.mu.Unlock()
		c.logger.Debugf("Rejected duplicate %s operation with key %q", op.Type, op.Key)
		return nil, fmt.Errorf("%s operation with key %q: %w", op.Type, op.Key, ErrDuplicate)
	}

	e := &entry{
		id:        ulid.Make().String(),
		op:        op,
		createdAt: now,
	}
	e.future = newFuture(e.id)

	// Stable insert: before the first operation with a bigger priority value.
	idx := slices.IndexFunc(c.pending, func(p *entry) bool { return p.op.Priority > op.Priority })
	if idx < 0 {
		idx = len(c.pending)
	}
	c.pending = slices.Insert(c.pending, idx, e)

	startLoop := !c.processing
	c.processing = true
	c.unlockAndNotify()

	c.logger.Debugf("Enqueued %s operation %s (priority %d, position %d)", op.Type, e.id, op.Priority, idx)

	if startLoop {
		go c.process()
	}

	return e.future, nil
}

// Do enqueues the operation and waits for its result.
func (c *Coordinator) Do(ctx context.Context, op Operation) (any, error) {
	f, err := c.Enqueue(op)
	if err != nil {
		return nil, err
	}

	return f.Wait(ctx)
}

// Status returns the current coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Subscribe registers a listener that receives a status snapshot on every state
// change. Listeners are called synchronously by the goroutine that changed the
// state and they must not block.
func (c *Coordinator) Subscribe(fn func(Status)) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.listenerSeq++
	id := c.listenerSeq
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

// IsRetryable returns true if the error is a version conflict worth retrying.
func IsRetryable(err error) bool {
	return err != nil && errors.Is(err, model.ErrConflict) && !errors.Is(err, ErrTimeout)
}

func (c *Coordinator) process() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.current = nil
			c.processing = false
			c.unlockAndNotify()
			return
		}

		e := c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		c.current = e
		c.unlockAndNotify()

		logger := c.logger.WithValues(log.Kv{"op-id": e.id, "op-type": e.op.Type})
		logger.Debugf("Executing operation")

		res, err := c.executeWithRetry(logger, e)
		if err != nil {
			logger.Errorf("Operation failed: %s", err)
			c.callback(logger, "OnError", func() {
				if e.op.OnError != nil {
					e.op.OnError(err)
				}
			})
		} else {
			logger.Debugf("Operation succeeded")
			c.callback(logger, "OnSuccess", func() {
				if e.op.OnSuccess != nil {
					e.op.OnSuccess(res)
				}
			})
		}

		c.mu.Lock()
		e.finished = true
		more := len(c.pending) > 0
		c.mu.Unlock()
		e.future.settle(res, err)

		if err == nil && more {
			time.Sleep(c.settleDelay)
		}
	}
}

func (c *Coordinator) executeWithRetry(logger log.Logger, e *entry) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		res, err := c.executeAttempt(e)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}

		retry := attempt + 1
		delay := c.backoff(attempt)
		logger.Warningf("Conflict detected, retrying (%d/%d) in %s: %s", retry, c.maxRetries, delay, err)
		c.callback(logger, "OnRetry", func() {
			if e.op.OnRetry != nil {
				e.op.OnRetry(retry, c.maxRetries)
			}
		})
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s operation failed after %d retries: %w: %w", e.op.Type, c.maxRetries, ErrRetriesExhausted, lastErr)
}

type attemptResult struct {
	res any
	err error
}

// executeAttempt races the operation against its timeout. On timeout the
// attempt context is cancelled and whatever it returns later is ignored.
func (c *Coordinator) executeAttempt(e *entry) (any, error) {
	timeout := e.op.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resC := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resC <- attemptResult{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		res, err := e.op.Execute(ctx)
		resC <- attemptResult{res: res, err: err}
	}()

	select {
	case r := <-resC:
		return r.res, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s operation exceeded %s: %w", e.op.Type, timeout, ErrTimeout)
	}
}

// backoff returns min(base*2^attempt + jitter, max).
func (c *Coordinator) backoff(attempt int) time.Duration {
	d := c.baseRetryDelay << attempt
	if d <= 0 || d > c.maxRetryDelay {
		return c.maxRetryDelay
	}
	if c.baseRetryDelay > 0 {
		d += rand.N(c.baseRetryDelay)
	}
	if d > c.maxRetryDelay {
		d = c.maxRetryDelay
	}

	return d
}

func (c *Coordinator) callback(logger log.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("%s callback panicked: %v", name, r)
		}
	}()
	fn()
}

// isDuplicate must be called with the lock held.
func (c *Coordinator) isDuplicate(key string, now time.Time) bool {
	if key == "" {
		return false
	}

	match := func(e *entry) bool {
		return e != nil && !e.finished && e.op.Key == key && now.Sub(e.createdAt) < c.dedupWindow
	}
	if match(c.current) {
		return true
	}

	return slices.ContainsFunc(c.pending, match)
}

// statusLocked must be called with the lock held.
func (c *Coordinator) statusLocked() Status {
	st := Status{
		IsProcessing: c.processing,
		QueueLength:  len(c.pending),
	}
	if c.current != nil {
		st.Current = &OperationRef{ID: c.current.id, Type: c.current.op.Type}
	}

	return st
}

// unlockAndNotify queues a status snapshot, releases the state lock and delivers
// the queued snapshots unless another goroutine is already delivering them. Must
// be called with the lock held.
func (c *Coordinator) unlockAndNotify() {
	c.outbox = append(c.outbox, c.statusLocked())
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.outbox) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()

		c.listenersMu.RLock()
		listeners := make([]func(Status), 0, len(c.listeners))
		for _, l := range c.listeners {
			listeners = append(listeners, l)
		}
		c.listenersMu.RUnlock()

		for _, st := range batch {
			for _, l := range listeners {
				c.callback(c.logger, "status listener", func() { l(st) })
			}
		}
	}
}
