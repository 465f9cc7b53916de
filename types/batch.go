package types

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

// Blob envelope constants
const (
	// BlobHeaderSize is the size of the envelope header: 1 byte flags + 8 bytes payload size
	BlobHeaderSize = 9

	// FlagUncompressed marks a raw payload.
	FlagUncompressed = 0x00
	// FlagZstd marks a zstd compressed payload.
	FlagZstd = 0x01

	// minCompressionSavings is the minimum ratio of saved bytes for the compressed form to be kept.
	minCompressionSavings = 0.1
)

// field numbers of the batch payload
const (
	batchTxField      protowire.Number = 1
	batchChainIDField protowire.Number = 2
)

var (
	// ErrInvalidBlobHeader is returned for blobs shorter than the envelope header.
	ErrInvalidBlobHeader = errors.New("invalid blob header")
	// ErrInvalidCompressionFlag is returned for unknown envelope flags.
	ErrInvalidCompressionFlag = errors.New("invalid compression flag")
	// ErrDecompressionFailed is returned when the zstd payload cannot be decoded.
	ErrDecompressionFailed = errors.New("decompression failed")
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("failed to create zstd encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
		if codecErr != nil {
			codecErr = fmt.Errorf("failed to create zstd decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

// BatchPayload is the content of a single DA blob.
type BatchPayload struct {
	ChainID      string
	Transactions [][]byte
}

// MarshalBatch encodes the payload and wraps it in the blob envelope.
// The payload is compressed with zstd when that saves at least 10% of its size.
func MarshalBatch(p BatchPayload) ([]byte, error) {
	var raw []byte
	if p.ChainID != "" {
		raw = appendBytesField(raw, batchChainIDField, []byte(p.ChainID))
	}
	for _, tx := range p.Transactions {
		raw = appendBytesField(raw, batchTxField, tx)
	}

	if len(raw) == 0 {
		return addBlobHeader(raw, FlagUncompressed, 0), nil
	}

	enc, _, err := codec()
	if err != nil {
		return nil, err
	}

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)))
	if float64(len(compressed))/float64(len(raw)) > 1.0-minCompressionSavings {
		return addBlobHeader(raw, FlagUncompressed, uint64(len(raw))), nil
	}
	return addBlobHeader(compressed, FlagZstd, uint64(len(raw))), nil
}

// UnmarshalBatch decodes a blob produced by MarshalBatch.
func UnmarshalBatch(blob []byte) (BatchPayload, error) {
	if len(blob) < BlobHeaderSize {
		return BatchPayload{}, ErrInvalidBlobHeader
	}

	flag := blob[0]
	size := binary.LittleEndian.Uint64(blob[1:BlobHeaderSize])
	payload := blob[BlobHeaderSize:]

	var raw []byte
	switch flag {
	case FlagUncompressed:
		raw = payload
	case FlagZstd:
		_, dec, err := codec()
		if err != nil {
			return BatchPayload{}, err
		}
		raw, err = dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return BatchPayload{}, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
	default:
		return BatchPayload{}, fmt.Errorf("%w: flag %d", ErrInvalidCompressionFlag, flag)
	}

	if uint64(len(raw)) != size {
		return BatchPayload{}, fmt.Errorf("payload size mismatch: expected %d, got %d", size, len(raw))
	}

	return decodeBatchPayload(raw)
}

func decodeBatchPayload(raw []byte) (BatchPayload, error) {
	var p BatchPayload
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return BatchPayload{}, protowire.ParseError(n)
		}
		raw = raw[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return BatchPayload{}, protowire.ParseError(n)
			}
			raw = raw[n:]
			continue
		}

		value, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return BatchPayload{}, protowire.ParseError(n)
		}
		raw = raw[n:]

		switch num {
		case batchTxField:
			p.Transactions = append(p.Transactions, append([]byte(nil), value...))
		case batchChainIDField:
			p.ChainID = string(value)
		}
	}
	return p, nil
}

func addBlobHeader(payload []byte, flag uint8, size uint64) []byte {
	result := make([]byte, BlobHeaderSize+len(payload))
	result[0] = flag
	binary.LittleEndian.PutUint64(result[1:BlobHeaderSize], size)
	copy(result[BlobHeaderSize:], payload)
	return result
}

func appendBytesField(buf []byte, number protowire.Number, value []byte) []byte {
	buf = protowire.AppendTag(buf, number, protowire.BytesType)
	buf = protowire.AppendVarint(buf, uint64(len(value)))
	buf = append(buf, value...)
	return buf
}

// TxHash returns the SHA256 hash of a raw transaction.
func TxHash(tx []byte) []byte {
	hash := sha256.Sum256(tx)
	return hash[:]
}
