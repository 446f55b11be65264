package archive

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

const zstdMIME = "application/zstd"

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// encodePayload serializes dict and optionally compresses it. The checksum
// covers the bytes as stored.
func encodePayload(codec Codec, compress bool, dict map[string]any) ([]byte, string, error) {
	data, err := codec.Marshal(dict)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", codec.Name(), err)
	}

	if compress {
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, "", fmt.Errorf("zstd: %w", err)
		}
		data = enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	return data, Checksum(data), nil
}

// decodePayload reverses encodePayload. Compression is detected from the
// content itself, so archives written with either setting stay readable.
func decodePayload(codec Codec, data []byte) (map[string]any, error) {
	if IsCompressed(data) {
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
	}

	dict := map[string]any{}
	if err := codec.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("decode %s: %w", codec.Name(), err)
	}
	if dict == nil {
		dict = map[string]any{}
	}
	return dict, nil
}

// IsCompressed reports whether data is a zstd frame
func IsCompressed(data []byte) bool {
	return mimetype.Detect(data).Is(zstdMIME)
}

// Checksum returns the hex BLAKE2b-256 digest of data
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
