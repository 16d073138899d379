// Package codec decides whether a serialized value is worth compressing and
// performs the compression round trip. Values below the size threshold are
// never compressed; the adoption decision (keep compressed only when the
// ratio clears the configured minimum) belongs to the caller.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultThreshold is the payload size below which compression is skipped.
const DefaultThreshold = 1024

// Codec compresses and decompresses cache payloads with zstd. A single
// encoder/decoder pair is shared across calls; both are safe for concurrent
// use via EncodeAll/DecodeAll.
type Codec struct {
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// New creates a codec with the given size threshold. A threshold of zero or
// below falls back to DefaultThreshold.
func New(threshold int) (*Codec, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Codec{
		threshold: threshold,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// ShouldCompress reports whether the payload is large enough to bother
// compressing.
func (c *Codec) ShouldCompress(data []byte) bool {
	return len(data) > c.threshold
}

// Compress returns the compressed payload and the achieved ratio
// (original size / compressed size). A ratio above 1.0 means the compressed
// form is smaller.
func (c *Codec) Compress(data []byte) ([]byte, float64) {
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	ratio := 0.0
	if len(compressed) > 0 {
		ratio = float64(len(data)) / float64(len(compressed))
	}
	return compressed, ratio
}

// Decompress reverses Compress.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}

// Threshold returns the configured size threshold.
func (c *Codec) Threshold() int {
	return c.threshold
}

// Close releases the encoder and decoder.
func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
