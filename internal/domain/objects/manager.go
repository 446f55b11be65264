package objects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/observable/internal/domain/archive"
	"github.com/GriffinCanCode/observable/internal/domain/managed"
	"github.com/GriffinCanCode/observable/internal/domain/property"
	"github.com/GriffinCanCode/observable/internal/domain/stream"
	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for UUIDs with no live object
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned when creating an object whose UUID is live
	ErrExists = errors.New("object already exists")
	// ErrBadUUID is returned for malformed object ids
	ErrBadUUID = errors.New("invalid object uuid")
	// ErrBusy is returned while the UUID is being released or deleted
	ErrBusy = errors.New("object is being released")
)

// TopicPrefix is the first segment of the topics property changes go to
const TopicPrefix = "objects"

// Snapshot is the external view of a live object
type Snapshot struct {
	UUID       uuid.UUID      `json:"uuid"`
	Properties map[string]any `json:"properties"`
	Archived   bool           `json:"archived"`
}

// Stats summarises the manager
type Stats struct {
	Live     int           `json:"live"`
	Registry managed.Stats `json:"registry"`
}

// live is one object the manager owns and the handles that keep it wired
type live struct {
	object  *property.Object
	owner   *managed.Owner
	binding *managed.Subscription // archiver follows registration, nil without one
	bridge  *stream.Subscription  // property changes onto the hub
}

func (l *live) release() {
	l.bridge.Close()
	l.owner.Release()
	if l.binding != nil {
		l.binding.Close()
	}
}

// Manager orchestrates the lifecycle of property objects created from
// outside the process: registration in the managed context, archiving,
// and forwarding of every property change to the topic
// "objects/<uuid>/<property>".
type Manager struct {
	mu       sync.RWMutex
	objects  map[uuid.UUID]*live    // Protected by mu
	leaving  map[uuid.UUID]struct{} // Protected by mu
	registry *managed.Context
	archiver *archive.Archiver
	hub      *topic.Hub
	logger   *logging.Logger
}

// NewManager creates a manager. archiver and hub may be nil, which
// disables persistence and change forwarding respectively.
func NewManager(registry *managed.Context, archiver *archive.Archiver, hub *topic.Hub) *Manager {
	return &Manager{
		objects:  make(map[uuid.UUID]*live),
		leaving:  make(map[uuid.UUID]struct{}),
		registry: registry,
		archiver: archiver,
		hub:      hub,
		logger:   logging.NewNop(),
	}
}

// WithLogger adds logging of object lifecycle events
func (m *Manager) WithLogger(logger *logging.Logger) *Manager {
	m.logger = logging.OrNop(logger).Named("objects")
	return m
}

// Create builds an object from a dictionary in the archive format
// ({"uuid": ..., "properties": {...}}) and registers it. Without a uuid
// the object gets a fresh identity.
func (m *Manager) Create(dict map[string]any) (Snapshot, error) {
	if raw, ok := dict[property.KeyUUID]; ok {
		s, isString := raw.(string)
		if !isString {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrBadUUID, raw)
		}
		if _, err := uuid.Parse(s); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrBadUUID, s)
		}
	}

	obj := property.FromDict(dict)
	if err := m.adopt(obj); err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(obj), nil
}

// Restore recreates a released object from its archive and registers it
func (m *Manager) Restore(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	if m.archiver == nil {
		return Snapshot{}, fmt.Errorf("%w: archiving disabled", ErrNotFound)
	}
	if m.has(id) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrExists, id)
	}

	dict, err := m.archiver.Store().Load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	dict[property.KeyUUID] = id.String()

	obj := property.FromDict(dict)
	if err := m.adopt(obj); err != nil {
		return Snapshot{}, err
	}
	m.logger.Info("Object restored", zap.String("uuid", id.String()))
	return m.snapshot(obj), nil
}

func (m *Manager) adopt(obj *property.Object) error {
	id := obj.UUID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[id]; exists {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	if _, busy := m.leaving[id]; busy {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}

	l := &live{object: obj}
	l.bridge = obj.Changes().Subscribe(stream.NewSubscriber(m.forward))
	if m.archiver != nil {
		l.binding = m.archiver.Attach(m.registry, id)
	}
	l.owner = m.registry.Own(obj)
	m.objects[id] = l

	m.logger.Info("Object created",
		zap.String("uuid", id.String()),
		zap.Strings("properties", obj.PropertyNames()))
	return nil
}

// forward publishes a property change on the object's topic
func (m *Manager) forward(change property.Change) {
	if m.hub == nil {
		return
	}
	name := TopicPrefix + "/" + change.Object.String() + "/" + change.Name
	if err := m.hub.Publish(context.Background(), name, change.New); err != nil {
		m.logger.Debug("Change not forwarded",
			zap.String("topic", name),
			zap.Error(err))
	}
}

// Get returns the live object with id
func (m *Manager) Get(id uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	l, ok := m.objects[id]
	m.mu.RUnlock()

	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.snapshot(l.object), nil
}

// Object returns the live object for in-process use
func (m *Manager) Object(id uuid.UUID) (*property.Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.objects[id]
	if !ok {
		return nil, false
	}
	return l.object, true
}

// List returns every live object ordered by UUID
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	objs := make([]*property.Object, 0, len(m.objects))
	for _, l := range m.objects {
		objs = append(objs, l.object)
	}
	m.mu.RUnlock()

	sort.Slice(objs, func(i, j int) bool {
		return objs[i].UUID().String() < objs[j].UUID().String()
	})

	snapshots := make([]Snapshot, 0, len(objs))
	for _, obj := range objs {
		snapshots = append(snapshots, m.snapshot(obj))
	}
	return snapshots
}

// Set assigns one property of a live object. Changing the value archives
// the object and publishes the new value on its topic.
func (m *Manager) Set(id uuid.UUID, name string, value any) (Snapshot, error) {
	obj, ok := m.Object(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := obj.Set(name, value); err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(obj), nil
}

// Release unregisters a live object and keeps its archive
func (m *Manager) Release(id uuid.UUID) error {
	l, err := m.claim(id)
	if err != nil {
		return err
	}
	defer m.unclaim(id)

	if l == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.release()
	m.logger.Info("Object released", zap.String("uuid", id.String()))
	return nil
}

// Delete releases the object if it is live and removes its archive.
// It fails with ErrNotFound only when neither exists.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	l, err := m.claim(id)
	if err != nil {
		return err
	}
	defer m.unclaim(id)

	if l != nil {
		l.release()
		m.logger.Info("Object released", zap.String("uuid", id.String()))
	}
	if m.archiver == nil {
		if l == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	}

	err = m.archiver.Remove(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, archive.ErrNotFound) && l != nil:
		return nil
	case errors.Is(err, archive.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return err
	}
}

// claim takes id out of the live set and holds it until unclaim, so the
// UUID cannot be adopted again while its old object is being torn down.
// The returned live is nil when no object was live.
func (m *Manager) claim(id uuid.UUID) (*live, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.leaving[id]; busy {
		return nil, fmt.Errorf("%w: %s", ErrBusy, id)
	}
	l := m.objects[id]
	delete(m.objects, id)
	m.leaving[id] = struct{}{}
	return l, nil
}

func (m *Manager) unclaim(id uuid.UUID) {
	m.mu.Lock()
	delete(m.leaving, id)
	m.mu.Unlock()
}

// Archives lists stored archives, live or not
func (m *Manager) Archives(ctx context.Context) ([]archive.Entry, error) {
	if m.archiver == nil {
		return nil, nil
	}
	return m.archiver.Store().List(ctx)
}

// Stats returns object counts
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	n := len(m.objects)
	m.mu.RUnlock()

	return Stats{Live: n, Registry: m.registry.Stats()}
}

// Close releases every live object. Archives are kept.
func (m *Manager) Close() {
	m.mu.Lock()
	objects := m.objects
	m.objects = make(map[uuid.UUID]*live)
	m.mu.Unlock()

	for _, l := range objects {
		l.release()
	}
}

func (m *Manager) has(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}

func (m *Manager) snapshot(obj *property.Object) Snapshot {
	dict := obj.WriteToDict()
	props, _ := dict[property.KeyProperties].(map[string]any)

	s := Snapshot{UUID: obj.UUID(), Properties: props}
	if m.archiver != nil {
		s.Archived = m.archiver.Tracked(obj.UUID())
	}
	return s
}
