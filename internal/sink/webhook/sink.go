package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/observable/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/observable/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidURL is returned for webhook URLs that are not absolute http(s)
	ErrInvalidURL = errors.New("invalid webhook url")
	// ErrDelivery is returned when the endpoint answers with an error status
	ErrDelivery = errors.New("webhook delivery failed")
)

// WebhookHeader carries the id of the sending webhook
const WebhookHeader = "X-Webhook-ID"

// Config configures one sink
type Config struct {
	URL               string
	Timeout           time.Duration // per attempt
	Retries           int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	QueueSize         int
	RequestsPerSecond float64 // 0 means unlimited
}

// DefaultConfig returns the defaults used for sinks created over HTTP
func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Second,
		Retries:           3,
		RetryWaitMin:      500 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		QueueSize:         256,
		RequestsPerSecond: 50,
	}
}

// Stats counts what a sink did with the messages it was handed
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
	Breaker   string `json:"breaker"`
}

// payload is the JSON body posted for each message
type payload struct {
	Webhook id.WebhookID `json:"webhook"`
	topic.Message
}

// Sink posts every message it handles to a URL. Handle only enqueues;
// a single goroutine delivers in order, so a slow endpoint never blocks
// the publisher. Messages arriving while the queue is full are dropped.
type Sink struct {
	id      id.WebhookID
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	queue  chan topic.Message // Protected by mu for send and close
	closed bool               // Protected by mu
	done   chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// New validates cfg and starts the delivery goroutine. Close stops it.
func New(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Sink, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaults.RetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	webhookID := id.NewWebhookID()
	logger = logging.OrNop(logger).Named("webhook").With(
		zap.String("webhook_id", webhookID.String()),
		zap.String("url", cfg.URL))

	// Retries and backoff live in the transport; resty builds the requests
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = leveledLogger{logger.Sugar()}

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetHeader("User-Agent", "observable-webhook/1.0").
		SetHeader("Content-Type", "application/json").
		SetHeader(WebhookHeader, webhookID.String()).
		SetJSONMarshaler(sonic.Marshal)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := resilience.New("webhook-"+webhookID.String(), resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Webhook circuit changed state",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	s := &Sink{
		id:      webhookID,
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan topic.Message, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	go s.run()

	return s, nil
}

// ID returns the sink identifier
func (s *Sink) ID() id.WebhookID {
	return s.id
}

// URL returns the endpoint messages are posted to
func (s *Sink) URL() string {
	return s.cfg.URL
}

// Handle enqueues msg for delivery without blocking
func (s *Sink) Handle(msg topic.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(msg, "closed")
		return
	}

	select {
	case s.queue <- msg:
	default:
		s.drop(msg, "queue full")
	}
}

func (s *Sink) drop(msg topic.Message, reason string) {
	s.dropped.Add(1)
	s.metrics.IncWebhookDrops()
	s.logger.Debug("Dropped webhook message",
		zap.String("topic", msg.Topic),
		zap.String("reason", reason))
}

func (s *Sink) run() {
	defer close(s.done)

	for msg := range s.queue {
		s.deliver(msg)
	}
}

func (s *Sink) deliver(msg topic.Message) {
	ctx := tracing.WithTraceID(context.Background(), tracing.TraceID(msg.TraceID))

	if err := s.limiter.Wait(ctx); err != nil {
		s.record(msg, "rate_limited", err)
		return
	}

	err := s.breaker.Execute(func() error {
		return s.post(ctx, msg)
	})

	switch {
	case err == nil:
		s.record(msg, "success", nil)
	case resilience.Rejected(err):
		s.record(msg, "rejected", err)
	default:
		s.record(msg, "failure", err)
	}
}

func (s *Sink) post(ctx context.Context, msg topic.Message) error {
	req := s.client.R().
		SetContext(ctx).
		SetBody(payload{Webhook: s.id, Message: msg})

	headers := make(map[string]string, 2)
	tracing.InjectTraceContext(ctx, headers)
	req.SetHeaders(headers)

	resp, err := req.Post(s.cfg.URL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s", ErrDelivery, resp.Status())
	}
	return nil
}

func (s *Sink) record(msg topic.Message, status string, err error) {
	s.metrics.RecordWebhookDelivery(status)

	if err == nil {
		s.delivered.Add(1)
		return
	}

	s.failed.Add(1)
	s.logger.Warn("Webhook delivery failed",
		zap.String("topic", msg.Topic),
		zap.String("trace", tracing.FormatTrace(tracing.TraceID(msg.TraceID), "")),
		zap.String("status", status),
		zap.Error(err))
}

// Stats returns delivery counters
func (s *Sink) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
		Queued:    len(s.queue),
		Breaker:   s.breaker.State().String(),
	}
}

// Close stops accepting messages, delivers what is queued, and waits
// for the delivery goroutine to exit. Safe to call repeatedly.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	<-s.done
}
