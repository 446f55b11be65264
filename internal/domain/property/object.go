package property

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/GriffinCanCode/observable/internal/domain/stream"
	"github.com/google/uuid"
)

// ErrUnknownProperty is returned when setting a property that was never defined
var ErrUnknownProperty = errors.New("unknown property")

// Dictionary keys used by ReadFromDict and WriteToDict
const (
	KeyUUID       = "uuid"
	KeyProperties = "properties"
)

// Change describes one property value transition
type Change struct {
	Object uuid.UUID `json:"object"`
	Name   string    `json:"name"`
	Old    any       `json:"old"`
	New    any       `json:"new"`
}

// Object is a managed object with named, observable properties.
// Embed it to give a type identity, persistence and change notification.
type Object struct {
	mu       sync.RWMutex
	id       uuid.UUID      // Protected by mu
	names    []string       // Protected by mu, definition order
	values   map[string]any // Protected by mu
	defaults map[string]any // Protected by mu
	changes  *stream.Publisher[Change]
}

// New creates an object with a fresh random identity
func New() *Object {
	return NewWithUUID(uuid.New())
}

// NewWithUUID creates an object with the given identity
func NewWithUUID(id uuid.UUID) *Object {
	return &Object{
		id:       id,
		values:   make(map[string]any),
		defaults: make(map[string]any),
		changes:  stream.NewPublisher[Change](),
	}
}

// UUID returns the object's identity
func (o *Object) UUID() uuid.UUID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

// DefineProperty declares name with a default value. Redefining a
// property resets its default and current value.
func (o *Object) DefineProperty(name string, defaultValue any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.defaults[name]; !ok {
		o.names = append(o.names, name)
	}
	o.defaults[name] = defaultValue
	o.values[name] = defaultValue
}

// HasProperty reports whether name is defined
func (o *Object) HasProperty(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.defaults[name]
	return ok
}

// Get returns the current value of name
func (o *Object) Get(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v, ok := o.values[name]
	return v, ok
}

// Set assigns value to a defined property and publishes a Change when the
// value differs from the current one.
func (o *Object) Set(name string, value any) error {
	o.mu.Lock()
	old, ok := o.values[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	if reflect.DeepEqual(old, value) {
		o.mu.Unlock()
		return nil
	}
	o.values[name] = value
	id := o.id
	o.mu.Unlock()

	o.changes.NotifyNextValue(Change{Object: id, Name: name, Old: old, New: value})
	return nil
}

// PropertyNames lists defined properties in definition order
func (o *Object) PropertyNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.names)
}

// Changes publishes every property value change
func (o *Object) Changes() *stream.Publisher[Change] {
	return o.changes
}

// ReadFromDict restores identity and property values from a dictionary
// produced by WriteToDict. It never fails: missing keys keep the current
// state, unknown properties are ignored and a malformed uuid keeps the
// current identity. No Change is published for restored values.
func (o *Object) ReadFromDict(dict map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if raw, ok := dict[KeyUUID].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			o.id = id
		}
	}

	props, ok := dict[KeyProperties].(map[string]any)
	if !ok {
		return
	}
	for name, value := range props {
		if _, defined := o.defaults[name]; defined {
			o.values[name] = value
		}
	}
}

// WriteToDict returns {"uuid": ..., "properties": {...}}
func (o *Object) WriteToDict() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()

	props := make(map[string]any, len(o.values))
	for _, name := range o.names {
		props[name] = o.values[name]
	}
	return map[string]any{
		KeyUUID:       o.id.String(),
		KeyProperties: props,
	}
}

// FromDict builds an object whose properties are exactly those in dict,
// defined in name order with the stored values as defaults. A missing or
// malformed uuid gets a fresh identity.
func FromDict(dict map[string]any) *Object {
	obj := New()
	if props, ok := dict[KeyProperties].(map[string]any); ok {
		for _, name := range slices.Sorted(maps.Keys(props)) {
			obj.DefineProperty(name, nil)
		}
	}
	obj.ReadFromDict(dict)
	return obj
}
