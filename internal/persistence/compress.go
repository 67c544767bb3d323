package persistence

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/kozaktomas/facedb/internal/database"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// The encoder and decoder are created on first use and shared by all stores;
// EncodeAll/DecodeAll are safe for concurrent use.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<30))
	})
	if zstdErr != nil {
		return nil, nil, fmt.Errorf("initializing zstd: %w", zstdErr)
	}
	return zstdEncoder, zstdDecoder, nil
}

func compress(data []byte) ([]byte, error) {
	enc, _, err := zstdCodec()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func isCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

func decompress(data []byte) ([]byte, error) {
	_, dec, err := zstdCodec()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", database.ErrDeserialization, err)
	}
	return out, nil
}
