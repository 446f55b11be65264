package webhook

import (
	"errors"
	"sort"
	"sync"

	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/shared/id"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown webhook ids
var ErrNotFound = errors.New("webhook not found")

// Info describes a registered webhook
type Info struct {
	ID      id.WebhookID `json:"id"`
	Pattern string       `json:"pattern"`
	URL     string       `json:"url"`
	Stats   Stats        `json:"stats"`
}

type registration struct {
	sink  *Sink
	watch *topic.Watch
}

// Registry binds webhook sinks to topic patterns of a hub
type Registry struct {
	hub      *topic.Hub
	defaults Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu    sync.Mutex
	hooks map[id.WebhookID]*registration // Protected by mu
}

// NewRegistry creates a registry whose sinks use defaults for everything
// but the URL
func NewRegistry(hub *topic.Hub, defaults Config, logger *logging.Logger, metrics *monitoring.Metrics) *Registry {
	return &Registry{
		hub:      hub,
		defaults: defaults,
		logger:   logging.OrNop(logger),
		metrics:  metrics,
		hooks:    make(map[id.WebhookID]*registration),
	}
}

// Add starts posting messages of topics matching pattern to rawURL
func (r *Registry) Add(pattern, rawURL string) (Info, error) {
	cfg := r.defaults
	cfg.URL = rawURL

	sink, err := New(cfg, r.logger, r.metrics)
	if err != nil {
		return Info{}, err
	}

	watch, err := r.hub.Subscribe(pattern, sink)
	if err != nil {
		sink.Close()
		return Info{}, err
	}

	r.mu.Lock()
	r.hooks[sink.ID()] = &registration{sink: sink, watch: watch}
	r.mu.Unlock()

	r.logger.Info("Webhook added",
		zap.String("webhook_id", sink.ID().String()),
		zap.String("pattern", pattern),
		zap.String("url", rawURL))

	return infoFor(sink, watch), nil
}

// Remove detaches the webhook and waits for its queue to drain
func (r *Registry) Remove(webhookID id.WebhookID) error {
	r.mu.Lock()
	reg, ok := r.hooks[webhookID]
	delete(r.hooks, webhookID)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	reg.watch.Close()
	reg.sink.Close()
	r.logger.Info("Webhook removed", zap.String("webhook_id", webhookID.String()))
	return nil
}

// Get returns one webhook
func (r *Registry) Get(webhookID id.WebhookID) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.hooks[webhookID]
	if !ok {
		return Info{}, ErrNotFound
	}
	return infoFor(reg.sink, reg.watch), nil
}

// List returns every webhook ordered by id, which is creation order
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.hooks))
	for _, reg := range r.hooks {
		infos = append(infos, infoFor(reg.sink, reg.watch))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close removes every webhook
func (r *Registry) Close() {
	r.mu.Lock()
	hooks := r.hooks
	r.hooks = make(map[id.WebhookID]*registration)
	r.mu.Unlock()

	for _, reg := range hooks {
		reg.watch.Close()
		reg.sink.Close()
	}
}

func infoFor(sink *Sink, watch *topic.Watch) Info {
	return Info{
		ID:      sink.ID(),
		Pattern: watch.Pattern(),
		URL:     sink.URL(),
		Stats:   sink.Stats(),
	}
}
