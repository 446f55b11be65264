package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDict() map[string]any {
	return map[string]any{
		"uuid": "f0e1d2c3-b4a5-4697-8879-6a5b4c3d2e1f",
		"properties": map[string]any{
			"title": "kitchen",
			"count": 3,
			"ratio": 1.5,
			"tags":  []any{"a", "b"},
		},
	}
}

func TestCodecsRoundTripProperties(t *testing.T) {
	for _, codec := range Codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(sampleDict())
			require.NoError(t, err)

			var out map[string]any
			require.NoError(t, codec.Unmarshal(data, &out))

			assert.Equal(t, "f0e1d2c3-b4a5-4697-8879-6a5b4c3d2e1f", out["uuid"])

			props, ok := out["properties"].(map[string]any)
			require.True(t, ok, "properties should decode as map[string]any, got %T", out["properties"])

			assert.Equal(t, "kitchen", props["title"])
			assert.Equal(t, int64(3), props["count"])
			assert.Equal(t, 1.5, props["ratio"])
			assert.Equal(t, []any{"a", "b"}, props["tags"])
		})
	}
}

func TestTOMLOmitsNilValues(t *testing.T) {
	dict := map[string]any{"properties": map[string]any{"abc": nil, "def": "x"}}

	data, err := TOML{}.Marshal(dict)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, TOML{}.Unmarshal(data, &out))

	props := out["properties"].(map[string]any)
	assert.NotContains(t, props, "abc")
	assert.Equal(t, "x", props["def"])
}

func TestCBORIsDeterministic(t *testing.T) {
	first, err := CBOR{}.Marshal(sampleDict())
	require.NoError(t, err)
	second, err := CBOR{}.Marshal(sampleDict())
	require.NoError(t, err)

	assert.Equal(t, Checksum(first), Checksum(second))
}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"json", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"toml", "toml", false},
		{"cbor", "cbor", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := CodecFor(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, codec.Name())
		})
	}
}

func TestPayloadCompressionIsSniffed(t *testing.T) {
	for _, compress := range []bool{false, true} {
		data, sum, err := encodePayload(JSON{}, compress, sampleDict())
		require.NoError(t, err)

		assert.Equal(t, compress, IsCompressed(data))
		assert.Equal(t, Checksum(data), sum)
		assert.Len(t, sum, 64)

		dict, err := decodePayload(JSON{}, data)
		require.NoError(t, err)
		assert.Equal(t, "f0e1d2c3-b4a5-4697-8879-6a5b4c3d2e1f", dict["uuid"])
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := decodePayload(JSON{}, []byte("{not json"))
	assert.Error(t, err)
}
