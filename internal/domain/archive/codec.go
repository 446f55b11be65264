package archive

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownCodec is returned by CodecFor for unsupported names
var ErrUnknownCodec = errors.New("unknown codec")

// Codec serializes property dictionaries.
//
// Decoded numbers are normalized so every codec yields the same Go types:
// integers become int64 and floating point values float64.
type Codec interface {
	Name() string
	Extension() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, out *map[string]any) error
}

// CodecFor returns the codec registered under name
func CodecFor(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	case "toml":
		return TOML{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Codecs lists every supported codec
func Codecs() []Codec {
	return []Codec{JSON{}, YAML{}, TOML{}, CBOR{}}
}

// JSON encodes with sonic
type JSON struct{}

var jsonAPI = sonic.Config{
	SortMapKeys: true,
	UseInt64:    true,
}.Froze()

func (JSON) Name() string      { return "json" }
func (JSON) Extension() string { return ".json" }

func (JSON) Marshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (JSON) Unmarshal(data []byte, out *map[string]any) error {
	if err := jsonAPI.Unmarshal(data, out); err != nil {
		return err
	}
	normalizeMap(*out)
	return nil
}

// YAML encodes with goccy/go-yaml
type YAML struct{}

func (YAML) Name() string      { return "yaml" }
func (YAML) Extension() string { return ".yaml" }

func (YAML) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (YAML) Unmarshal(data []byte, out *map[string]any) error {
	if err := yaml.Unmarshal(data, out); err != nil {
		return err
	}
	normalizeMap(*out)
	return nil
}

// TOML encodes with go-toml. TOML has no null, so nil values are omitted
// on write and come back as missing keys.
type TOML struct{}

func (TOML) Name() string      { return "toml" }
func (TOML) Extension() string { return ".toml" }

func (TOML) Marshal(v any) ([]byte, error) {
	return toml.Marshal(withoutNils(v))
}

func (TOML) Unmarshal(data []byte, out *map[string]any) error {
	if err := toml.Unmarshal(data, out); err != nil {
		return err
	}
	normalizeMap(*out)
	return nil
}

// CBOR encodes with fxamacker/cbor in canonical form, so equal
// dictionaries produce identical bytes and checksums.
type CBOR struct{}

var (
	cborEnc, _ = cbor.CanonicalEncOptions().EncMode()
	cborDec, _ = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
)

func (CBOR) Name() string      { return "cbor" }
func (CBOR) Extension() string { return ".cbor" }

func (CBOR) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (CBOR) Unmarshal(data []byte, out *map[string]any) error {
	if err := cborDec.Unmarshal(data, out); err != nil {
		return err
	}
	normalizeMap(*out)
	return nil
}

func normalizeMap(m map[string]any) {
	for k, v := range m {
		m[k] = normalize(v)
	}
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		normalizeMap(t)
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[fmt.Sprint(k)] = normalize(x)
		}
		return m
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return uintToInt(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return uintToInt(t)
	case float32:
		return float64(t)
	}
	return v
}

func uintToInt(u uint64) any {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}

func withoutNils(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			if x == nil {
				continue
			}
			out[k] = withoutNils(x)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			if x != nil {
				out = append(out, withoutNils(x))
			}
		}
		return out
	}
	return v
}
