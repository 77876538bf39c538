package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/notify/internal/domain"
	"github.com/gatherly/notify/internal/observability"
	"github.com/gatherly/notify/internal/ratelimit"
)

const (
	defaultMaxConcurrent  = 5
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 5 * time.Second
	defaultRateLimitDelay = time.Minute
)

// DeliveryService sends a message across its channel candidates and reports
// one result per chunk.
type DeliveryService interface {
	SendMessage(ctx context.Context, msg domain.Message) []domain.MessageResult
}

// CompletionHook is invoked after a message reaches a terminal state. It runs
// on the dispatch goroutine, so implementations must return quickly.
type CompletionHook func(msg domain.QueuedMessage, results []domain.MessageResult)

// Options tunes the dispatch pipeline. Zero values fall back to defaults.
type Options struct {
	MaxConcurrent  int
	MaxAttempts    int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	Total      int            `json:"total"`
	Processing int            `json:"processing"`
	Waiting    int            `json:"waiting"`
	ByPriority map[string]int `json:"byPriority"`
}

type completion struct {
	msg     *domain.QueuedMessage
	results []domain.MessageResult
}

// Scheduler buffers messages in a priority queue and dispatches them to the
// delivery service. A single loop goroutine owns every scheduling decision:
// ordering, eligibility, rate-limit deferral, backoff, and dead-lettering.
// Workers only perform delivery and report back on the completions channel.
type Scheduler struct {
	delivery DeliveryService
	limiter  ratelimit.Limiter
	logger   *zap.Logger
	metrics  *observability.Metrics
	hook     CompletionHook

	maxConcurrent  int
	maxAttempts    int
	retryDelay     time.Duration
	rateLimitDelay time.Duration

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	buffer   *buffer
	inFlight map[string]*domain.QueuedMessage
	running  int
	paused   bool

	wake        chan struct{}
	completions chan completion
	wg          sync.WaitGroup
}

func NewScheduler(delivery DeliveryService, limiter ratelimit.Limiter, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.NewWindowLimiter(0)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = defaultRateLimitDelay
	}

	return &Scheduler{
		delivery:       delivery,
		limiter:        limiter,
		logger:         logger,
		maxConcurrent:  opts.MaxConcurrent,
		maxAttempts:    opts.MaxAttempts,
		retryDelay:     opts.RetryDelay,
		rateLimitDelay: opts.RateLimitDelay,
		now:            time.Now,
		newID:          uuid.NewString,
		buffer:         newBuffer(),
		inFlight:       make(map[string]*domain.QueuedMessage),
		wake:           make(chan struct{}, 1),
		completions:    make(chan completion, opts.MaxConcurrent),
	}
}

// SetMetrics attaches Prometheus collectors. Safe to skip in tests.
func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetCompletionHook registers a callback for terminal message outcomes.
func (s *Scheduler) SetCompletionHook(hook CompletionHook) {
	s.hook = hook
}

// Enqueue admits a message into the buffer and returns its queue id. An
// explicit priority overrides the one carried by the message.
func (s *Scheduler) Enqueue(msg domain.Message, priority domain.Priority) (string, error) {
	if priority != "" {
		if !priority.IsValid() {
			return "", fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, priority)
		}
		msg.Priority = priority
	}
	if msg.Priority == "" {
		msg.Priority = domain.PriorityNormal
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	queued := &domain.QueuedMessage{
		ID:          s.newID(),
		Message:     msg,
		Priority:    msg.Priority,
		EnqueuedAt:  s.now(),
		MaxAttempts: s.maxAttempts,
		State:       domain.StateQueued,
	}

	s.mu.Lock()
	s.buffer.push(queued)
	s.updateDepthLocked()
	s.mu.Unlock()
	s.signal()

	s.logger.Debug("message enqueued",
		zap.String("messageId", queued.ID),
		zap.String("channel", msg.Channel.String()),
		zap.String("priority", msg.Priority.String()),
	)
	return queued.ID, nil
}

// EnqueueBatch validates every message first and admits all of them only when
// the whole batch is valid.
func (s *Scheduler) EnqueueBatch(msgs []domain.Message, priority domain.Priority) ([]string, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", domain.ErrValidation)
	}
	for i, msg := range msgs {
		check := msg
		if priority != "" {
			if !priority.IsValid() {
				return nil, fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, priority)
			}
			check.Priority = priority
		}
		if check.Priority == "" {
			check.Priority = domain.PriorityNormal
		}
		if err := check.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		id, err := s.Enqueue(msg, priority)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Status reports queue depth and in-flight counts. ByPriority covers waiting
// messages only.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPriority := make(map[string]int)
	for p, n := range s.buffer.countByPriority() {
		byPriority[p.String()] = n
	}

	waiting := s.buffer.len()
	processing := len(s.inFlight)
	return Status{
		Total:      waiting + processing,
		Processing: processing,
		Waiting:    waiting,
		ByPriority: byPriority,
	}
}

// Pause stops dispatching new messages. In-flight deliveries run to completion.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.logger.Info("scheduler paused")
}

// Resume restarts dispatching.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.signal()
	s.logger.Info("scheduler resumed")
}

// Clear drops every buffered message and forgets in-flight ones; their
// completions are discarded when the workers return. It reports how many
// messages were dropped.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	dropped := s.buffer.len() + len(s.inFlight)
	s.buffer.clear()
	s.inFlight = make(map[string]*domain.QueuedMessage)
	s.updateDepthLocked()
	s.mu.Unlock()

	s.logger.Info("queue cleared", zap.Int("dropped", dropped))
	return dropped
}

// Run drives the dispatch loop until ctx is cancelled, then waits for
// in-flight workers to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.Info("scheduler started",
		zap.Int("maxConcurrent", s.maxConcurrent),
		zap.Int("maxAttempts", s.maxAttempts),
		zap.Duration("retryDelay", s.retryDelay),
	)

	for {
		headWait := s.dispatchReady(ctx)

		var timer *time.Timer
		var timerC <-chan time.Time
		if headWait > 0 {
			timer = time.NewTimer(headWait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.shutdown()
			s.logger.Info("scheduler stopped")
			return nil
		case <-s.wake:
		case c := <-s.completions:
			s.handleCompletion(c)
		case <-timerC:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// shutdown waits for in-flight workers while still consuming their
// completions, so a worker blocked on the completions channel cannot stall
// the exit. Late completions are processed normally; anything they requeue is
// dropped with the process.
func (s *Scheduler) shutdown() {
	workersDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workersDone)
	}()

	for {
		select {
		case c := <-s.completions:
			s.handleCompletion(c)
		case <-workersDone:
			return
		}
	}
}

// dispatchReady pops eligible messages in priority order and hands them to
// workers until the queue is empty, the concurrency cap is reached, or the
// head is waiting on a retry time. An ineligible head blocks dispatch even
// when lower-priority messages behind it are ready; the returned duration is
// how long until that head becomes eligible.
//
// The cap is enforced on running, a counter of claimed worker slots, not on
// the inFlight map: Clear forgets in-flight entries but their workers still
// hold slots until their completions arrive, keeping outstanding sends within
// the completions channel capacity.
func (s *Scheduler) dispatchReady(ctx context.Context) time.Duration {
	for {
		s.mu.Lock()
		if s.paused || s.running >= s.maxConcurrent {
			s.mu.Unlock()
			return 0
		}
		head := s.buffer.peek()
		if head == nil {
			s.mu.Unlock()
			return 0
		}
		now := s.now()
		if !head.EligibleAt(now) {
			wait := head.NextRetryAt.Sub(now)
			s.mu.Unlock()
			if wait <= 0 {
				wait = time.Millisecond
			}
			return wait
		}

		msg := s.buffer.pop()
		msg.State = domain.StateInFlight
		s.inFlight[msg.ID] = msg
		s.running++
		s.updateDepthLocked()
		s.mu.Unlock()

		allowed, err := s.limiter.Allow(ctx, msg.Message.Channel.String())
		if err != nil {
			s.logger.Warn("rate limiter check failed, admitting send",
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
			allowed = true
		}
		if !allowed {
			s.deferForRateLimit(msg)
			continue
		}

		s.metrics.IncInFlight()
		s.wg.Add(1)
		go s.deliver(ctx, msg)
	}
}

func (s *Scheduler) deliver(ctx context.Context, msg *domain.QueuedMessage) {
	defer s.wg.Done()

	results := s.delivery.SendMessage(observability.WithMessageID(ctx, msg.ID), msg.Message)

	// Outstanding workers never exceed maxConcurrent slots, which is the
	// channel capacity, so this send never blocks.
	s.completions <- completion{msg: msg, results: results}
}

// deferForRateLimit puts the message back without consuming an attempt; the
// channel budget, not the message, caused the delay.
func (s *Scheduler) deferForRateLimit(msg *domain.QueuedMessage) {
	retryAt := s.now().Add(s.rateLimitDelay)

	s.mu.Lock()
	s.running--
	if _, tracked := s.inFlight[msg.ID]; !tracked {
		// Cleared while the limiter was consulted.
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, msg.ID)
	msg.State = domain.StateQueued
	msg.NextRetryAt = &retryAt
	s.buffer.push(msg)
	s.updateDepthLocked()
	s.mu.Unlock()

	s.metrics.IncRateLimitDeferred(msg.Message.Channel.String())
	s.logger.Info("channel rate limit reached, deferring message",
		zap.String("messageId", msg.ID),
		zap.String("channel", msg.Message.Channel.String()),
		zap.Time("nextRetryAt", retryAt),
	)
}

func (s *Scheduler) handleCompletion(c completion) {
	msg := c.msg
	s.metrics.DecInFlight()

	s.mu.Lock()
	s.running--
	if _, tracked := s.inFlight[msg.ID]; !tracked {
		// Cleared while in flight; drop the outcome, release the slot.
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, msg.ID)

	if anySuccess(c.results) {
		msg.State = domain.StateDelivered
		s.mu.Unlock()

		s.logger.Info("message delivered",
			zap.String("messageId", msg.ID),
			zap.String("channel", msg.Message.Channel.String()),
			zap.Int("attempts", msg.Attempts+1),
		)
		s.notify(msg, c.results)
		return
	}

	msg.Attempts++
	if msg.Attempts >= msg.MaxAttempts {
		msg.State = domain.StateDeadLettered
		s.mu.Unlock()

		s.metrics.IncDeadLettered(msg.Message.Channel.String())
		s.logger.Error("message dead-lettered after exhausting attempts",
			zap.String("messageId", msg.ID),
			zap.String("channel", msg.Message.Channel.String()),
			zap.String("to", msg.Message.To),
			zap.Int("attempts", msg.Attempts),
			zap.String("lastError", lastError(c.results)),
		)
		s.notify(msg, c.results)
		return
	}

	delay := s.retryDelay * time.Duration(1<<(msg.Attempts-1))
	retryAt := s.now().Add(delay)
	msg.State = domain.StateRequeued
	msg.NextRetryAt = &retryAt
	s.buffer.push(msg)
	s.updateDepthLocked()
	s.mu.Unlock()

	s.metrics.IncRequeued(msg.Message.Channel.String())
	s.logger.Warn("delivery failed, requeueing with backoff",
		zap.String("messageId", msg.ID),
		zap.String("channel", msg.Message.Channel.String()),
		zap.Int("attempts", msg.Attempts),
		zap.Duration("retryIn", delay),
		zap.String("lastError", lastError(c.results)),
	)
}

func (s *Scheduler) notify(msg *domain.QueuedMessage, results []domain.MessageResult) {
	if s.hook == nil {
		return
	}
	s.hook(*msg, results)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) updateDepthLocked() {
	if s.metrics == nil {
		return
	}
	counts := s.buffer.countByPriority()
	for _, p := range domain.Priorities() {
		s.metrics.SetQueueDepth(p.String(), counts[p])
	}
}

func anySuccess(results []domain.MessageResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

func lastError(results []domain.MessageResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Error != "" {
			return results[i].Error
		}
	}
	return "unknown error"
}
