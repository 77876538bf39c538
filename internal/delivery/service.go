package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gatherly/notify/internal/adapter"
	"github.com/gatherly/notify/internal/domain"
	"github.com/gatherly/notify/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultMaxChunkLength    = 4000
	defaultChunkSeparator    = "\n"
	defaultMaxRetries        = 3
	defaultBaseDelay         = 500 * time.Millisecond
	defaultBackoffMultiplier = 2
)

// DefaultFallbacks is the channel fallback cascade. It is configuration data:
// deployments may swap it, and tests assert against it directly.
func DefaultFallbacks() map[domain.Channel][]domain.Channel {
	return map[domain.Channel][]domain.Channel{
		domain.ChannelEmail:    {domain.ChannelTelegram, domain.ChannelWhatsApp, domain.ChannelSMS},
		domain.ChannelTelegram: {domain.ChannelWhatsApp, domain.ChannelEmail, domain.ChannelSMS},
		domain.ChannelWhatsApp: {domain.ChannelTelegram, domain.ChannelSMS, domain.ChannelEmail},
		domain.ChannelSMS:      {domain.ChannelWhatsApp, domain.ChannelTelegram, domain.ChannelEmail},
	}
}

// Options tunes chunking and per-adapter retry behaviour.
type Options struct {
	MaxChunkLength    int
	ChunkSeparator    string
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier int
	Fallbacks         map[domain.Channel][]domain.Channel
}

// Service resolves adapter candidates, chunks oversized content, and drives
// per-adapter retries with exponential backoff.
type Service struct {
	registry          *adapter.Registry
	fallbacks         map[domain.Channel][]domain.Channel
	maxChunkLength    int
	chunkSeparator    string
	maxRetries        int
	baseDelay         time.Duration
	backoffMultiplier int
	logger            *zap.Logger
	metrics           *observability.Metrics
	sleep             func(ctx context.Context, d time.Duration) error
}

func NewService(registry *adapter.Registry, opts Options, logger *zap.Logger) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxChunkLength <= 0 {
		opts.MaxChunkLength = defaultMaxChunkLength
	}
	if opts.ChunkSeparator == "" {
		opts.ChunkSeparator = defaultChunkSeparator
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = defaultBackoffMultiplier
	}
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultFallbacks()
	}

	return &Service{
		registry:          registry,
		fallbacks:         opts.Fallbacks,
		maxChunkLength:    opts.MaxChunkLength,
		chunkSeparator:    opts.ChunkSeparator,
		maxRetries:        opts.MaxRetries,
		baseDelay:         opts.BaseDelay,
		backoffMultiplier: opts.BackoffMultiplier,
		logger:            logger,
		metrics:           nil,
		sleep:             sleepWithContext,
	}, nil
}

func (s *Service) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Candidates returns the adapters eligible for a message on the given
// channel: the primary first, then each fallback channel in table order,
// filtered by credential availability.
func (s *Service) Candidates(channel domain.Channel) []adapter.Adapter {
	var candidates []adapter.Adapter
	if a := s.registry.Get(channel); a != nil && a.IsAvailable() {
		candidates = append(candidates, a)
	}
	for _, fallback := range s.fallbacks[channel] {
		if a := s.registry.Get(fallback); a != nil && a.IsAvailable() {
			candidates = append(candidates, a)
		}
	}
	return candidates
}

// SendMessage delivers the message, returning one result per content chunk
// ultimately attempted. Chunk failures are independent: an earlier delivered
// chunk is never rolled back by a later failure.
func (s *Service) SendMessage(ctx context.Context, msg domain.Message) []domain.MessageResult {
	logger := observability.WithContextLogger(s.logger, ctx)

	candidates := s.Candidates(msg.Channel)
	if len(candidates) == 0 {
		logger.Warn("no adapters available",
			zap.String("channel", msg.Channel.String()),
			zap.String("to", msg.To),
		)
		s.metrics.IncMessageFailed(msg.Channel.String(), "no_adapters_available")
		return []domain.MessageResult{{
			Success:   false,
			Error:     fmt.Sprintf("no adapters available for channel %s", msg.Channel),
			Channel:   msg.Channel,
			Timestamp: time.Now().UTC(),
		}}
	}

	chunks := SplitContent(msg.Content, s.chunkSeparator, s.maxChunkLength)
	if len(chunks) > 1 {
		s.metrics.AddChunksProduced(msg.Channel.String(), len(chunks))
	}

	results := make([]domain.MessageResult, 0, len(chunks))
	for i, chunk := range chunks {
		chunkMsg := s.chunkMessage(msg, chunk, i, len(chunks))
		if oversized := len([]rune(chunk)) > s.maxChunkLength; oversized {
			logger.Warn("chunk exceeds length limit, passing through un-truncated",
				zap.String("channel", msg.Channel.String()),
				zap.Int("chunkIndex", i),
				zap.Int("length", len([]rune(chunk))),
				zap.Int("limit", s.maxChunkLength),
			)
		}
		results = append(results, s.sendChunk(ctx, chunkMsg, candidates))
	}
	return results
}

func (s *Service) chunkMessage(msg domain.Message, chunk string, index, total int) domain.Message {
	if total <= 1 {
		return msg
	}
	chunkMsg := msg.WithContent(chunk)
	if chunkMsg.Metadata == nil {
		chunkMsg.Metadata = make(map[string]string, 2)
	}
	chunkMsg.Metadata[domain.MetaChunkIndex] = strconv.Itoa(index)
	chunkMsg.Metadata[domain.MetaTotalChunks] = strconv.Itoa(total)
	return chunkMsg
}

// sendChunk tries each candidate adapter in turn. Every adapter gets its own
// full retry allotment; the budget does not carry over between adapters.
func (s *Service) sendChunk(ctx context.Context, msg domain.Message, candidates []adapter.Adapter) domain.MessageResult {
	logger := observability.WithContextLogger(s.logger, ctx)

	var last domain.MessageResult

	for _, a := range candidates {
		result, attempts := s.sendWithRetries(ctx, a, msg)
		result.AttemptCount = attempts

		if result.Success {
			if a.Channel() != msg.Channel {
				s.metrics.IncFallbackUsed(msg.Channel.String(), a.Channel().String())
				logger.Info("delivered via fallback channel",
					zap.String("primary", msg.Channel.String()),
					zap.String("fallback", a.Channel().String()),
					zap.Int("attempts", attempts),
				)
			}
			s.metrics.IncMessageSent(a.Channel().String())
			return result
		}

		logger.Warn("adapter exhausted retries",
			zap.String("channel", a.Channel().String()),
			zap.Int("attempts", attempts),
			zap.String("error", result.Error),
		)
		last = result
	}

	s.metrics.IncMessageFailed(msg.Channel.String(), "retry_exhausted")
	// Keep the provider's own error text first; consumers match on it.
	last.Error = fmt.Sprintf("%s (all %d candidate adapters exhausted)", last.Error, len(candidates))
	return last
}

// sendWithRetries performs the initial attempt plus up to maxRetries retries
// against one adapter, sleeping baseDelay * multiplier^(n-1) before retry n.
func (s *Service) sendWithRetries(ctx context.Context, a adapter.Adapter, msg domain.Message) (domain.MessageResult, int) {
	var result domain.MessageResult

	attempts := 0
	for retry := 0; retry <= s.maxRetries; retry++ {
		if retry > 0 {
			if err := s.sleep(ctx, s.retryDelay(retry)); err != nil {
				result.Error = fmt.Sprintf("send aborted: %v", err)
				return result, attempts
			}
		}

		start := time.Now()
		result = a.Send(ctx, msg)
		s.metrics.ObserveSendDuration(a.Channel().String(), time.Since(start))
		attempts++

		if result.Success {
			return result, attempts
		}
	}

	return result, attempts
}

func (s *Service) retryDelay(retry int) time.Duration {
	delay := s.baseDelay
	for i := 1; i < retry; i++ {
		delay *= time.Duration(s.backoffMultiplier)
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
