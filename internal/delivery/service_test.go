package delivery

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gatherly/notify/internal/adapter"
	"github.com/gatherly/notify/internal/domain"
	"github.com/gatherly/notify/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAdapter struct {
	channel   domain.Channel
	available bool
	sendFn    func(ctx context.Context, msg domain.Message) domain.MessageResult
	calls     int
}

func (f *fakeAdapter) Send(ctx context.Context, msg domain.Message) domain.MessageResult {
	f.calls++
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return domain.MessageResult{
		Success:   true,
		MessageID: "ok-" + strconv.Itoa(f.calls),
		Channel:   f.channel,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
}

func (f *fakeAdapter) IsAvailable() bool       { return f.available }
func (f *fakeAdapter) Channel() domain.Channel { return f.channel }

func failing(channel domain.Channel) *fakeAdapter {
	return &fakeAdapter{
		channel:   channel,
		available: true,
		sendFn: func(ctx context.Context, msg domain.Message) domain.MessageResult {
			return domain.MessageResult{
				Success:   false,
				Error:     "provider down",
				Channel:   channel,
				Timestamp: time.Unix(1_700_000_000, 0),
			}
		},
	}
}

func newTestService(t *testing.T, registry *adapter.Registry, opts Options) (*Service, *[]time.Duration) {
	t.Helper()

	s, err := NewService(registry, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func emailMessage(content string) domain.Message {
	return domain.Message{
		To:       "user@example.com",
		Content:  content,
		Channel:  domain.ChannelEmail,
		Priority: domain.PriorityNormal,
	}
}

func TestSendMessageSuccessOnPrimary(t *testing.T) {
	t.Parallel()

	email := &fakeAdapter{channel: domain.ChannelEmail, available: true}
	telegram := &fakeAdapter{channel: domain.ChannelTelegram, available: true}
	s, _ := newTestService(t, adapter.NewRegistry(email, telegram), Options{})

	results := s.SendMessage(context.Background(), emailMessage("hello"))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if !results[0].Success {
		t.Fatalf("result failed: %s", results[0].Error)
	}
	if results[0].AttemptCount != 1 {
		t.Fatalf("AttemptCount = %d, want 1", results[0].AttemptCount)
	}
	if telegram.calls != 0 {
		t.Fatal("fallback adapter should not be tried when primary succeeds")
	}
}

func TestCandidatesFallbackOrder(t *testing.T) {
	t.Parallel()

	// Email adapter unavailable: the chat adapter must be the first candidate,
	// then the rest of the table in order.
	email := &fakeAdapter{channel: domain.ChannelEmail, available: false}
	telegram := &fakeAdapter{channel: domain.ChannelTelegram, available: true}
	whatsapp := &fakeAdapter{channel: domain.ChannelWhatsApp, available: true}
	sms := &fakeAdapter{channel: domain.ChannelSMS, available: true}
	s, _ := newTestService(t, adapter.NewRegistry(email, telegram, whatsapp, sms), Options{})

	candidates := s.Candidates(domain.ChannelEmail)
	want := []domain.Channel{domain.ChannelTelegram, domain.ChannelWhatsApp, domain.ChannelSMS}
	if len(candidates) != len(want) {
		t.Fatalf("candidates = %d, want %d", len(candidates), len(want))
	}
	for i := range want {
		if candidates[i].Channel() != want[i] {
			t.Fatalf("candidates[%d] = %s, want %s", i, candidates[i].Channel(), want[i])
		}
	}
}

func TestSendMessageFallbackCascade(t *testing.T) {
	t.Parallel()

	email := failing(domain.ChannelEmail)
	telegram := &fakeAdapter{channel: domain.ChannelTelegram, available: true}
	s, _ := newTestService(t, adapter.NewRegistry(email, telegram), Options{MaxRetries: 1})

	results := s.SendMessage(context.Background(), emailMessage("hello"))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if !results[0].Success {
		t.Fatalf("result failed: %s", results[0].Error)
	}
	if results[0].Channel != domain.ChannelTelegram {
		t.Fatalf("Channel = %s, want TELEGRAM fallback", results[0].Channel)
	}
	if email.calls != 2 {
		t.Fatalf("email calls = %d, want 2 (initial + 1 retry)", email.calls)
	}
}

func TestSendMessageNoAdaptersAvailable(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, adapter.NewRegistry(), Options{})

	results := s.SendMessage(context.Background(), emailMessage("hello"))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Success {
		t.Fatal("result should fail with no adapters")
	}
	if !strings.Contains(results[0].Error, "no adapters available") {
		t.Fatalf("Error = %q, want no-adapters message", results[0].Error)
	}
	if results[0].Channel != domain.ChannelEmail {
		t.Fatalf("Channel = %s, want the requested channel", results[0].Channel)
	}
}

func TestSendMessageRetryBackoffDelays(t *testing.T) {
	t.Parallel()

	email := failing(domain.ChannelEmail)
	s, slept := newTestService(t, adapter.NewRegistry(email), Options{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		BackoffMultiplier: 2,
	})

	results := s.SendMessage(context.Background(), emailMessage("hello"))
	if results[0].Success {
		t.Fatal("result should fail")
	}
	if email.calls != 4 {
		t.Fatalf("calls = %d, want 4 (initial + 3 retries)", email.calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("sleep[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
	if results[0].AttemptCount != 4 {
		t.Fatalf("AttemptCount = %d, want 4", results[0].AttemptCount)
	}
}

func TestSendMessageEachAdapterGetsFullRetryBudget(t *testing.T) {
	t.Parallel()

	email := failing(domain.ChannelEmail)
	telegram := failing(domain.ChannelTelegram)
	sms := failing(domain.ChannelSMS)
	s, _ := newTestService(t, adapter.NewRegistry(email, telegram, sms), Options{MaxRetries: 2})

	results := s.SendMessage(context.Background(), emailMessage("hello"))
	if results[0].Success {
		t.Fatal("result should fail")
	}

	for _, a := range []*fakeAdapter{email, telegram, sms} {
		if a.calls != 3 {
			t.Fatalf("%s calls = %d, want 3 (fresh budget per adapter)", a.channel, a.calls)
		}
	}
	if !strings.Contains(results[0].Error, "candidate adapters exhausted") {
		t.Fatalf("Error = %q, want exhaustion message", results[0].Error)
	}
	// The provider's own error stays at the front of the result.
	if !strings.HasPrefix(results[0].Error, "provider down") {
		t.Fatalf("Error = %q, want the raw provider error first", results[0].Error)
	}
}

func TestSendMessageLogsCarryMessageID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewService(adapter.NewRegistry(), Options{}, zap.New(core))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx := observability.WithMessageID(context.Background(), "queued-42")
	results := s.SendMessage(ctx, emailMessage("hello"))
	if results[0].Success {
		t.Fatal("result should fail with no adapters")
	}

	entries := logs.All()
	if len(entries) == 0 {
		t.Fatal("expected a warn log")
	}
	for _, entry := range entries {
		fields := entry.ContextMap()
		if fields["messageId"] != "queued-42" {
			t.Fatalf("log %q messageId = %v, want queued-42", entry.Message, fields["messageId"])
		}
	}
}

func TestSendMessageChunksStampedAndIndependent(t *testing.T) {
	t.Parallel()

	var gotChunks []domain.Message
	email := &fakeAdapter{
		channel:   domain.ChannelEmail,
		available: true,
	}
	email.sendFn = func(ctx context.Context, msg domain.Message) domain.MessageResult {
		gotChunks = append(gotChunks, msg)
		// Second chunk fails; the rest succeed.
		if msg.Metadata[domain.MetaChunkIndex] == "1" {
			return domain.MessageResult{Success: false, Error: "boom", Channel: email.channel, Timestamp: time.Now()}
		}
		return domain.MessageResult{Success: true, MessageID: "id", Channel: email.channel, Timestamp: time.Now()}
	}

	s, _ := newTestService(t, adapter.NewRegistry(email), Options{
		MaxChunkLength: 10,
		MaxRetries:     0,
	})

	content := "aaaa\nbbbb\ncccc\ndddd"
	results := s.SendMessage(context.Background(), emailMessage(content))

	if len(results) < 2 {
		t.Fatalf("results = %d, want one per chunk", len(results))
	}

	total := strconv.Itoa(len(results))
	for i, msg := range gotChunks {
		if msg.Metadata[domain.MetaTotalChunks] != total {
			t.Fatalf("chunk %d totalChunks = %q, want %q", i, msg.Metadata[domain.MetaTotalChunks], total)
		}
	}

	// One failed chunk must not abort the others.
	successes := 0
	failures := 0
	for _, r := range results {
		if r.Success {
			successes++
		} else {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want exactly 1", failures)
	}
	if successes != len(results)-1 {
		t.Fatalf("successes = %d, want %d", successes, len(results)-1)
	}

	if got := strings.Join(chunkContents(gotChunks), "\n"); got != content {
		t.Fatalf("reassembled chunk contents = %q, want original", got)
	}
}

func chunkContents(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestDefaultFallbacksCoverEveryChannel(t *testing.T) {
	t.Parallel()

	fallbacks := DefaultFallbacks()
	for _, ch := range domain.Channels() {
		cascade, ok := fallbacks[ch]
		if !ok {
			t.Fatalf("channel %s missing from fallback table", ch)
		}
		if len(cascade) != len(domain.Channels())-1 {
			t.Fatalf("channel %s cascade = %v, want every other channel", ch, cascade)
		}
		for _, fb := range cascade {
			if fb == ch {
				t.Fatalf("channel %s lists itself as fallback", ch)
			}
		}
	}
}
