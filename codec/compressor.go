package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor transforms the encoded journal before it hits the disk.
type Compressor interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

// ZstdCompression compresses with zstd.
type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a reusable zstd encoder/decoder pair.
func NewZstdCompressor() (*ZstdCompression, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

// Compress returns val zstd-compressed.
func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

// Decompress reverses Compress. Data that isn't zstd is an error.
func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

// Close releases the encoder and decoder.
func (z *ZstdCompression) Close() {
	z.encoder.Close()
	z.decoder.Close()
}
