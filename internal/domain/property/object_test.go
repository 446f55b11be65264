package property

import (
	"testing"

	"github.com/GriffinCanCode/observable/internal/domain/managed"
	"github.com/GriffinCanCode/observable/internal/domain/stream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archivable embeds Object the way domain types are expected to
type archivable struct {
	*Object
}

func newArchivable() *archivable {
	a := &archivable{Object: New()}
	a.DefineProperty("abc", nil)
	return a
}

var _ managed.Object = (*archivable)(nil)

func TestReadFromDictToleratesEmptyDict(t *testing.T) {
	a := newArchivable()
	id := a.UUID()

	assert.NotPanics(t, func() { a.ReadFromDict(map[string]any{}) })
	assert.NotPanics(t, func() { a.ReadFromDict(nil) })

	v, ok := a.Get("abc")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, id, a.UUID())
}

func TestReadFromDict(t *testing.T) {
	want := uuid.New()

	tests := []struct {
		name     string
		dict     map[string]any
		wantUUID func(before uuid.UUID) uuid.UUID
		wantABC  any
	}{
		{
			name:     "full dict",
			dict:     map[string]any{"uuid": want.String(), "properties": map[string]any{"abc": "x"}},
			wantUUID: func(uuid.UUID) uuid.UUID { return want },
			wantABC:  "x",
		},
		{
			name:     "missing properties",
			dict:     map[string]any{"uuid": want.String()},
			wantUUID: func(uuid.UUID) uuid.UUID { return want },
			wantABC:  nil,
		},
		{
			name:     "malformed uuid keeps identity",
			dict:     map[string]any{"uuid": "not-a-uuid", "properties": map[string]any{"abc": 3}},
			wantUUID: func(before uuid.UUID) uuid.UUID { return before },
			wantABC:  3,
		},
		{
			name:     "unknown property ignored",
			dict:     map[string]any{"properties": map[string]any{"zzz": 1}},
			wantUUID: func(before uuid.UUID) uuid.UUID { return before },
			wantABC:  nil,
		},
		{
			name:     "wrong types ignored",
			dict:     map[string]any{"uuid": 42, "properties": []any{"abc"}},
			wantUUID: func(before uuid.UUID) uuid.UUID { return before },
			wantABC:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newArchivable()
			before := a.UUID()

			a.ReadFromDict(tt.dict)

			assert.Equal(t, tt.wantUUID(before), a.UUID())
			v, _ := a.Get("abc")
			assert.Equal(t, tt.wantABC, v)
			assert.False(t, a.HasProperty("zzz"))
		})
	}
}

func TestWriteThenReadRestoresState(t *testing.T) {
	src := newArchivable()
	src.DefineProperty("count", 0)
	require.NoError(t, src.Set("abc", "hello"))
	require.NoError(t, src.Set("count", 7))

	dst := newArchivable()
	dst.DefineProperty("count", 0)
	dst.ReadFromDict(src.WriteToDict())

	assert.Equal(t, src.UUID(), dst.UUID())
	v, _ := dst.Get("abc")
	assert.Equal(t, "hello", v)
	v, _ = dst.Get("count")
	assert.Equal(t, 7, v)
}

func TestWriteToDictShape(t *testing.T) {
	a := newArchivable()
	dict := a.WriteToDict()

	assert.Equal(t, a.UUID().String(), dict[KeyUUID])
	assert.Equal(t, map[string]any{"abc": nil}, dict[KeyProperties])
}

func TestSetUnknownProperty(t *testing.T) {
	a := newArchivable()
	err := a.Set("missing", 1)
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestSetPublishesChanges(t *testing.T) {
	a := newArchivable()
	var changes []Change

	sub := a.Changes().Subscribe(stream.NewSubscriber(func(c Change) {
		changes = append(changes, c)
	}))
	defer sub.Close()

	require.NoError(t, a.Set("abc", 1))
	require.NoError(t, a.Set("abc", 1))
	require.NoError(t, a.Set("abc", 2))

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Object: a.UUID(), Name: "abc", Old: nil, New: 1}, changes[0])
	assert.Equal(t, Change{Object: a.UUID(), Name: "abc", Old: 1, New: 2}, changes[1])
}

func TestReadFromDictPublishesNothing(t *testing.T) {
	a := newArchivable()
	published := 0

	sub := a.Changes().Subscribe(stream.NewSubscriber(func(Change) { published++ }))
	defer sub.Close()

	a.ReadFromDict(map[string]any{"properties": map[string]any{"abc": "restored"}})
	assert.Zero(t, published)
}

func TestDefinePropertyKeepsOrderAndResets(t *testing.T) {
	a := newArchivable()
	a.DefineProperty("b", 1)
	a.DefineProperty("c", 2)
	require.NoError(t, a.Set("b", 10))

	a.DefineProperty("b", 5)

	assert.Equal(t, []string{"abc", "b", "c"}, a.PropertyNames())
	v, _ := a.Get("b")
	assert.Equal(t, 5, v)
}

func TestObjectRegistersInManagedContext(t *testing.T) {
	ctx := managed.NewContext()
	a := newArchivable()

	owner := ctx.Own(a)
	defer owner.Release()

	got, ok := ctx.Lookup(a.UUID())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestFromDict(t *testing.T) {
	id := uuid.New()
	obj := FromDict(map[string]any{
		KeyUUID:       id.String(),
		KeyProperties: map[string]any{"zeta": 1, "alpha": "a"},
	})

	assert.Equal(t, id, obj.UUID())
	assert.Equal(t, []string{"alpha", "zeta"}, obj.PropertyNames())
	v, _ := obj.Get("zeta")
	assert.Equal(t, 1, v)
	assert.Equal(t, 0, obj.Changes().SubscriberCount())

	empty := FromDict(map[string]any{KeyUUID: "garbage"})
	assert.NotEqual(t, uuid.Nil, empty.UUID())
	assert.Empty(t, empty.PropertyNames())
}
