package topic

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/observable/internal/domain/stream"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/observable/internal/shared/id"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

var (
	// ErrBadTopic is returned for malformed topic names
	ErrBadTopic = errors.New("invalid topic name")
	// ErrBadPattern is returned for malformed subscription patterns
	ErrBadPattern = errors.New("invalid topic pattern")
	// ErrBadExpression is returned when a derivation does not compile
	ErrBadExpression = errors.New("invalid expression")
	// ErrTopicExists is returned when deriving onto a name already in use
	ErrTopicExists = errors.New("topic already exists")
	// ErrDerivedTopic is returned when publishing directly to a derived topic
	ErrDerivedTopic = errors.New("cannot publish to derived topic")
	// ErrClosed is returned after the hub is closed
	ErrClosed = errors.New("hub closed")
)

// Options configures a Hub
type Options struct {
	StatsWindow int           // numeric values kept per topic for Stats
	EvalTimeout time.Duration // limit for one expression evaluation
}

// DefaultOptions returns the options used by the server by default
func DefaultOptions() Options {
	return Options{StatsWindow: 100, EvalTimeout: 100 * time.Millisecond}
}

// Derivation describes a derived topic
type Derivation struct {
	Expression string // JavaScript over x, e.g. "x * 2"
	Cache      bool   // suppress values equal to the previous one
}

// topic is one named publisher plus the bookkeeping the hub reports
type topic struct {
	name      string
	publisher *stream.Publisher[Message]
	derived   bool
	source    string
	expr      *expression
	cached    bool

	tap      *stream.Subscription
	messages atomic.Uint64
	drops    atomic.Uint64

	mu     sync.Mutex
	last   *Message // Protected by mu
	window *window  // Protected by mu
}

func (t *topic) record(msg Message) {
	t.messages.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &msg
	if v, ok := numeric(msg.Value); ok {
		t.window.add(v)
	}
}

func (t *topic) info() Info {
	t.mu.Lock()
	var last *Message
	if t.last != nil {
		copied := *t.last
		last = &copied
	}
	stats := t.window.stats()
	t.mu.Unlock()

	info := Info{
		Name:        t.name,
		Derived:     t.derived,
		Source:      t.source,
		Cached:      t.cached,
		Subscribers: t.publisher.SubscriberCount() - 1, // minus the hub's own tap
		Messages:    t.messages.Load(),
		Drops:       t.drops.Load(),
		Last:        last,
		Stats:       stats,
	}
	if t.expr != nil {
		info.Expression = t.expr.source
	}
	return info
}

// Hub is a registry of named publishers that can be driven from outside
// the process. Topics are created on first publish and live as long as
// the hub.
type Hub struct {
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	topics  map[string]*topic     // Protected by mu
	watches map[id.WatchID]*Watch // Protected by mu
	closed  bool                  // Protected by mu
}

// NewHub creates an empty hub
func NewHub(opts Options) *Hub {
	defaults := DefaultOptions()
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = defaults.StatsWindow
	}
	if opts.EvalTimeout <= 0 {
		opts.EvalTimeout = defaults.EvalTimeout
	}

	return &Hub{
		opts:    opts,
		logger:  logging.NewNop(),
		topics:  make(map[string]*topic),
		watches: make(map[id.WatchID]*Watch),
	}
}

// WithLogger adds logging of dropped derived values
func (h *Hub) WithLogger(logger *logging.Logger) *Hub {
	h.logger = logging.OrNop(logger).Named("topic")
	return h
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Publish pushes value to every subscriber of the named topic, creating
// the topic if needed. The trace id carried by ctx travels with the
// message. Delivery is synchronous.
func (h *Hub) Publish(ctx context.Context, name string, value any) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrBadTopic, name)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	t := h.topics[name]
	if t == nil {
		t = h.addLocked(&topic{name: name, publisher: stream.NewPublisher[Message]()})
	}
	h.mu.Unlock()

	if t.derived {
		return fmt.Errorf("%w: %s", ErrDerivedTopic, name)
	}

	h.metrics.IncTopicPublishes(name)
	t.publisher.NotifyNextValue(Message{
		Topic:   name,
		Value:   value,
		TraceID: string(tracing.GetTraceID(ctx)),
		At:      time.Now(),
	})
	return nil
}

// Derive creates topic name whose values are the JavaScript expression
// d.Expression applied to each value of source. A missing source topic is
// created. Values for which the expression yields undefined are filtered
// out; evaluation errors drop the value and are logged.
func (h *Hub) Derive(name, source string, d Derivation) (Info, error) {
	if !validName(name) {
		return Info{}, fmt.Errorf("%w: %q", ErrBadTopic, name)
	}
	if !validName(source) {
		return Info{}, fmt.Errorf("%w: source %q", ErrBadTopic, source)
	}
	if name == source {
		return Info{}, fmt.Errorf("%w: %q cannot derive from itself", ErrBadTopic, name)
	}

	expr, err := compileExpression(d.Expression, h.opts.EvalTimeout)
	if err != nil {
		return Info{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Info{}, ErrClosed
	}
	if _, exists := h.topics[name]; exists {
		return Info{}, fmt.Errorf("%w: %s", ErrTopicExists, name)
	}
	upstream := h.topics[source]
	if upstream == nil {
		upstream = h.addLocked(&topic{name: source, publisher: stream.NewPublisher[Message]()})
	}

	t := &topic{name: name, derived: true, source: source, expr: expr, cached: d.Cache}
	publisher := stream.FilterMap(upstream.publisher, func(msg Message) (Message, bool) {
		return h.evaluate(t, msg)
	})
	if d.Cache {
		publisher = stream.CacheFunc(publisher, func(a, b Message) bool {
			return reflect.DeepEqual(a.Value, b.Value)
		})
	}
	t.publisher = publisher

	h.addLocked(t)
	h.logger.Info("Derived topic",
		zap.String("topic", name),
		zap.String("source", source),
		zap.String("expression", d.Expression),
		zap.Bool("cache", d.Cache))
	return t.info(), nil
}

func (h *Hub) evaluate(t *topic, msg Message) (Message, bool) {
	value, ok, err := t.expr.eval(msg.Value)
	if err != nil {
		t.drops.Add(1)
		h.metrics.IncTopicDrops(t.name)
		h.logger.Warn("Dropped derived value",
			zap.String("topic", t.name),
			zap.String("trace_id", msg.TraceID),
			zap.Error(err))
		return Message{}, false
	}
	if !ok {
		return Message{}, false
	}
	return Message{Topic: t.name, Value: value, TraceID: msg.TraceID, At: msg.At}, true
}

// addLocked registers t, attaches the stats tap and every matching watch.
// Caller must hold h.mu.
func (h *Hub) addLocked(t *topic) *topic {
	t.window = newWindow(h.opts.StatsWindow)
	t.tap = t.publisher.Subscribe(stream.NewSubscriber(t.record))
	h.topics[t.name] = t

	for _, w := range h.watches {
		w.attachLocked(t)
	}

	h.metrics.SetTopicsActive(len(h.topics))
	return t
}

// Subscribe delivers messages of every topic matching pattern, existing
// or created later, to sink. Patterns use doublestar syntax, so
// "sensors/**" matches every topic below sensors.
func (h *Hub) Subscribe(pattern string, sink stream.Subscriber[Message]) (*Watch, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil subscriber", ErrBadPattern)
	}
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}

	w := &Watch{
		id:      id.NewWatchID(),
		pattern: pattern,
		sink:    sink,
		hub:     h,
		subs:    make(map[string]*stream.Subscription),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	h.watches[w.id] = w
	for _, t := range h.topics {
		w.attachLocked(t)
	}

	h.metrics.IncStreamSubscriptions()
	return w, nil
}

// Publisher returns the publisher behind a topic for in-process use
func (h *Hub) Publisher(name string) (*stream.Publisher[Message], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.topics[name]
	if !ok {
		return nil, false
	}
	return t.publisher, true
}

// Topic returns the description of one topic
func (h *Hub) Topic(name string) (Info, bool) {
	h.mu.RLock()
	t, ok := h.topics[name]
	h.mu.RUnlock()

	if !ok {
		return Info{}, false
	}
	return t.info(), true
}

// Topics returns every topic sorted by name
func (h *Hub) Topics() []Info {
	h.mu.RLock()
	topics := make([]*topic, 0, len(h.topics))
	for _, t := range h.topics {
		topics = append(topics, t)
	}
	h.mu.RUnlock()

	infos := make([]Info, 0, len(topics))
	for _, t := range topics {
		infos = append(infos, t.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Watches returns the number of open watches
func (h *Hub) Watches() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watches)
}

// Close detaches every watch and stats tap. Publish, Derive and Subscribe
// fail with ErrClosed afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	watches := h.watches
	topics := h.topics
	h.watches = make(map[id.WatchID]*Watch)
	h.mu.Unlock()

	for _, w := range watches {
		w.release()
	}
	for _, t := range topics {
		t.tap.Close()
	}
}

// Watch is a pattern subscription across topics
type Watch struct {
	id      id.WatchID
	pattern string
	sink    stream.Subscriber[Message]
	hub     *Hub

	subs   map[string]*stream.Subscription // Protected by hub.mu
	closed bool                            // Protected by hub.mu
}

// ID returns the watch identifier
func (w *Watch) ID() id.WatchID {
	return w.id
}

// Pattern returns the glob the watch was created with
func (w *Watch) Pattern() string {
	return w.pattern
}

// Topics returns the names of the topics currently attached
func (w *Watch) Topics() []string {
	w.hub.mu.RLock()
	defer w.hub.mu.RUnlock()

	names := make([]string, 0, len(w.subs))
	for name := range w.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close detaches the watch from every topic. Safe to call repeatedly.
func (w *Watch) Close() {
	w.hub.mu.Lock()
	if _, ok := w.hub.watches[w.id]; !ok {
		w.hub.mu.Unlock()
		return
	}
	delete(w.hub.watches, w.id)
	w.hub.mu.Unlock()

	w.release()
}

// release closes every subscription of a watch already removed from the hub
func (w *Watch) release() {
	w.hub.mu.Lock()
	if w.closed {
		w.hub.mu.Unlock()
		return
	}
	w.closed = true
	subs := w.subs
	w.subs = make(map[string]*stream.Subscription)
	w.hub.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	w.hub.metrics.DecStreamSubscriptions()
}

// attachLocked subscribes the watch to t when the pattern matches.
// Caller must hold hub.mu.
func (w *Watch) attachLocked(t *topic) {
	if w.closed {
		return
	}
	if _, attached := w.subs[t.name]; attached {
		return
	}
	if matched, _ := doublestar.Match(w.pattern, t.name); matched {
		w.subs[t.name] = t.publisher.Subscribe(w.sink)
	}
}
