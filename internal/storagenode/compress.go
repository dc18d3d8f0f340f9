package storagenode

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Codec is an optional at-rest compression algorithm for a CompressedStore.
type Codec string

const (
	CodecNone   Codec = ""
	CodecZstd   Codec = "zstd"
	CodecBrotli Codec = "brotli"
)

// CompressedStore wraps another Store and transparently compresses blobs
// before Put and decompresses on Open, using the chosen Codec. Chunk bytes
// are already a fixed, known-size unit, so whole-blob compression (rather
// than seekable framing) is sufficient: nothing needs random access inside
// one chunk.
type CompressedStore struct {
	inner Store
	codec Codec

	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressedStore wraps inner with codec. CodecNone returns inner
// unchanged.
func NewCompressedStore(inner Store, codec Codec) (Store, error) {
	switch codec {
	case CodecNone:
		return inner, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("storagenode: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("storagenode: create zstd decoder: %w", err)
		}
		return &CompressedStore{inner: inner, codec: codec, zstdEnc: enc, zstdDec: dec}, nil
	case CodecBrotli:
		return &CompressedStore{inner: inner, codec: codec}, nil
	default:
		return nil, fmt.Errorf("storagenode: unknown compression codec %q", codec)
	}
}

func (c *CompressedStore) Put(ctx context.Context, key string, body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storagenode: buffer chunk body: %w", err)
	}

	var compressed bytes.Buffer
	switch c.codec {
	case CodecZstd:
		compressed.Write(c.zstdEnc.EncodeAll(raw, nil))
	case CodecBrotli:
		bw := brotli.NewWriter(&compressed)
		if _, err := bw.Write(raw); err != nil {
			return fmt.Errorf("storagenode: brotli compress: %w", err)
		}
		if err := bw.Close(); err != nil {
			return fmt.Errorf("storagenode: brotli finalize: %w", err)
		}
	}
	return c.inner.Put(ctx, key, &compressed)
}

func (c *CompressedStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := c.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	compressed, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storagenode: read compressed chunk %s: %w", key, err)
	}

	switch c.codec {
	case CodecZstd:
		raw, err := c.zstdDec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("storagenode: zstd decompress %s: %w", key, err)
		}
		return io.NopCloser(bytes.NewReader(raw)), nil
	case CodecBrotli:
		br := brotli.NewReader(bytes.NewReader(compressed))
		raw, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("storagenode: brotli decompress %s: %w", key, err)
		}
		return io.NopCloser(bytes.NewReader(raw)), nil
	default:
		return io.NopCloser(bytes.NewReader(compressed)), nil
	}
}

func (c *CompressedStore) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}
