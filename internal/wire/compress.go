package wire

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compressor applies symmetric compression to serialized message payloads
// before they cross the websocket transport.
type Compressor interface {
	//1.- Name returns the codec identifier that ByName resolves.
	Name() string
	//2.- Compress encodes the provided payload into a compressed representation.
	Compress(data []byte) ([]byte, error)
	//3.- Decompress restores the original payload from its compressed form.
	Decompress(data []byte) ([]byte, error)
}

// NoneCompressor passes payloads through unmodified, for small control
// messages where the framing overhead isn't worth paying for.
type NoneCompressor struct{}

func (NoneCompressor) Name() string                        { return "none" }
func (NoneCompressor) Compress(data []byte) ([]byte, error) { return data, nil }
func (NoneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// gzipCompressor wraps the standard library gzip implementation.
type gzipCompressor struct{}

// NewGZIPCompressor constructs a Compressor backed by gzip.
func NewGZIPCompressor() Compressor { return gzipCompressor{} }

func (gzipCompressor) Name() string { return "gzip" }

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gzip decompress: empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("gzip copy: %w", err)
	}
	return buf.Bytes(), nil
}

// snappyCompressor wraps github.com/golang/snappy, a low-latency codec.
// The provider and client sessions send their messages uncompressed and
// do not use it.
type snappyCompressor struct{}

// NewSnappyCompressor constructs a Compressor backed by snappy block
// compression.
func NewSnappyCompressor() Compressor { return snappyCompressor{} }

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

// zstdCompressor wraps github.com/klauspost/compress/zstd, a higher-ratio
// codec. The provider and client sessions do not use it.
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor constructs a Compressor backed by zstd. It returns an
// error if the underlying encoder/decoder cannot be constructed.
func NewZstdCompressor() (Compressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: enc, decoder: dec}, nil
}

func (z *zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// ByName resolves a compressor by its wire identifier. No session
// handshake negotiates a codec; nothing in the sessions calls it.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return NoneCompressor{}, nil
	case "gzip":
		return NewGZIPCompressor(), nil
	case "snappy":
		return NewSnappyCompressor(), nil
	case "zstd":
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("wire: unknown compressor %q", name)
	}
}
