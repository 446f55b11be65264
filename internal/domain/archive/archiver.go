package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/observable/internal/domain/managed"
	"github.com/GriffinCanCode/observable/internal/domain/property"
	"github.com/GriffinCanCode/observable/internal/domain/stream"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned when tracking on a closed Archiver
var ErrClosed = errors.New("archiver closed")

// Archivable is an object whose properties can be persisted and observed.
// *property.Object satisfies it.
type Archivable interface {
	managed.Object
	WriteToDict() map[string]any
	ReadFromDict(dict map[string]any)
	Changes() *stream.Publisher[property.Change]
}

// Archiver keeps a Store in step with live objects: every tracked object
// is saved when tracking starts and again after each property change.
type Archiver struct {
	store       Store
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	saveTimeout time.Duration

	mu      sync.Mutex
	tracked map[uuid.UUID]tracking // Protected by mu
	closed  bool                   // Protected by mu
}

// tracking is the object saved under a UUID and its change subscription
type tracking struct {
	obj Archivable
	sub *stream.Subscription
}

// NewArchiver creates an archiver over store
func NewArchiver(store Store) *Archiver {
	return &Archiver{
		store:       store,
		logger:      logging.NewNop(),
		saveTimeout: 5 * time.Second,
		tracked:     make(map[uuid.UUID]tracking),
	}
}

// WithLogger adds logging of background save failures
func (a *Archiver) WithLogger(logger *logging.Logger) *Archiver {
	a.logger = logging.OrNop(logger).Named("archive")
	return a
}

// WithMetrics adds metrics tracking to the archiver
func (a *Archiver) WithMetrics(metrics *monitoring.Metrics) *Archiver {
	a.metrics = metrics
	return a
}

// Store returns the underlying store
func (a *Archiver) Store() Store {
	return a.store
}

// Track saves obj now and on every later property change. Tracking an
// already tracked UUID replaces the previous subscription.
func (a *Archiver) Track(ctx context.Context, obj Archivable) error {
	if _, err := a.Save(ctx, obj); err != nil {
		return err
	}

	id := obj.UUID()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if previous, ok := a.tracked[id]; ok {
		previous.sub.Close()
	}
	a.tracked[id] = tracking{
		obj: obj,
		sub: obj.Changes().Subscribe(stream.NewSubscriber(func(change property.Change) {
			a.onChange(obj, change)
		})),
	}
	return nil
}

// Untrack stops saving changes of the object with id
func (a *Archiver) Untrack(id uuid.UUID) {
	a.mu.Lock()
	t, ok := a.tracked[id]
	delete(a.tracked, id)
	a.mu.Unlock()

	if ok {
		t.sub.Close()
	}
}

// untrackObject stops tracking obj's UUID only while obj is the object
// tracked under it. A newer object with the same UUID keeps its tracking.
func (a *Archiver) untrackObject(obj managed.Object) {
	a.mu.Lock()
	t, ok := a.tracked[obj.UUID()]
	if !ok || managed.Object(t.obj) != obj {
		a.mu.Unlock()
		return
	}
	delete(a.tracked, obj.UUID())
	a.mu.Unlock()

	t.sub.Close()
}

// Tracked reports whether id is being tracked
func (a *Archiver) Tracked(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tracked[id]
	return ok
}

// Save writes obj's current state
func (a *Archiver) Save(ctx context.Context, obj Archivable) (Entry, error) {
	entry, err := a.store.Save(ctx, obj.UUID(), obj.WriteToDict())
	a.metrics.RecordArchiveOp("save", err)
	return entry, err
}

// Restore loads the archive for id into obj through ReadFromDict
func (a *Archiver) Restore(ctx context.Context, id uuid.UUID, obj Archivable) error {
	dict, err := a.store.Load(ctx, id)
	a.metrics.RecordArchiveOp("load", err)
	if err != nil {
		return err
	}
	obj.ReadFromDict(dict)
	return nil
}

// Remove stops tracking id and deletes its archive
func (a *Archiver) Remove(ctx context.Context, id uuid.UUID) error {
	a.Untrack(id)
	err := a.store.Delete(ctx, id)
	a.metrics.RecordArchiveOp("delete", err)
	return err
}

// Attach tracks the object registered under id in objects for as long as
// it stays registered, whether it is registered before or after the call.
// Unregistering an object that has since been replaced in the archiver
// leaves the replacement tracked.
// Closing the returned subscription ends the binding but keeps tracking
// an object that is currently registered.
func (a *Archiver) Attach(objects *managed.Context, id uuid.UUID) *managed.Subscription {
	return objects.Subscribe(id,
		func(obj managed.Object) {
			archivable, ok := obj.(Archivable)
			if !ok {
				a.logger.Warn("Registered object is not archivable", zap.String("uuid", id.String()))
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
			defer cancel()
			if err := a.Track(ctx, archivable); err != nil {
				a.logger.Error("Failed to track object", zap.String("uuid", id.String()), zap.Error(err))
			}
		},
		func(obj managed.Object) {
			a.untrackObject(obj)
		},
	)
}

// Close stops tracking every object. Stored archives are kept.
func (a *Archiver) Close() {
	a.mu.Lock()
	tracked := a.tracked
	a.tracked = make(map[uuid.UUID]tracking)
	a.closed = true
	a.mu.Unlock()

	for _, t := range tracked {
		t.sub.Close()
	}
}

func (a *Archiver) onChange(obj Archivable, change property.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
	defer cancel()

	if _, err := a.Save(ctx, obj); err != nil {
		a.logger.Error("Failed to archive change",
			zap.String("uuid", change.Object.String()),
			zap.String("property", change.Name),
			zap.Error(err))
	}
}
