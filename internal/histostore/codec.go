// Package histostore reads and writes the per-sample histogram files a
// processing campaign leaves behind, laid out as
//
//	<input_dir>/<sample>/<analyzer>/<name>.hist
//
// Each file is a small fixed header followed by the histogram encoded as
// deterministic CBOR and compressed with zstd, lz4 or nothing.
package histostore

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/kingrea/histostack/internal/histo"
)

// Compression identifies the payload compression. Values are stored in the
// file header and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the configuration spelling of a compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "", "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("histostore: unknown compression %q", name)
	}
}

var (
	// ErrBadMagic is returned for files that are not histogram files.
	ErrBadMagic = errors.New("histostore: not a histogram file")

	magic = [4]byte{'H', 'S', 'T', 'K'}
)

const (
	formatVersion = 1
	headerSize    = 12
	maxPayload    = 1 << 30
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("histostore: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("histostore: cbor decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("histostore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("histostore: zstd decoder initialization failed: " + err.Error())
	}
}

// Payload returns the deterministic CBOR encoding of h.
func Payload(h *histo.Histogram) ([]byte, error) {
	data, err := encMode.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("histostore: encode %s: %w", h.Title, err)
	}
	return data, nil
}

// Fingerprint is the hex BLAKE3 digest of the CBOR payload. Equal histograms
// always share a fingerprint.
func Fingerprint(h *histo.Histogram) (string, error) {
	payload, err := Payload(h)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Encode produces the full file content for h.
func Encode(h *histo.Histogram, c Compression) ([]byte, error) {
	payload, err := Payload(h)
	if err != nil {
		return nil, err
	}
	body, used, err := compress(payload, c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(body))
	copy(out, magic[:])
	out[4] = formatVersion
	out[5] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(payload)))
	return append(out, body...), nil
}

// Decode parses file content produced by Encode.
func Decode(data []byte) (*histo.Histogram, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	var h histo.Histogram
	if err := decMode.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("histostore: decode payload: %w", err)
	}
	if len(h.Edges) != len(h.Contents)+1 || len(h.SumW2) != len(h.Contents) {
		return nil, fmt.Errorf("histostore: inconsistent histogram %q", h.Title)
	}
	if err := histo.CheckEdges(h.Title, h.Edges); err != nil {
		return nil, fmt.Errorf("histostore: decode %q: %w", h.Title, err)
	}
	return &h, nil
}

// CompressionOf reports the compression recorded in a file header.
func CompressionOf(data []byte) (Compression, error) {
	if len(data) < headerSize || [4]byte(data[:4]) != magic {
		return 0, ErrBadMagic
	}
	return Compression(data[5]), nil
}

// DecodePayload strips the header and decompresses, returning raw CBOR.
func DecodePayload(data []byte) ([]byte, error) {
	if len(data) < headerSize || [4]byte(data[:4]) != magic {
		return nil, ErrBadMagic
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("histostore: unsupported format version %d", data[4])
	}
	size := binary.LittleEndian.Uint32(data[8:12])
	if size > maxPayload {
		return nil, fmt.Errorf("histostore: payload of %d bytes exceeds limit", size)
	}
	return decompress(data[headerSize:], Compression(data[5]), int(size))
}

// compress returns the compressed payload and the compression actually used.
// Payloads that do not shrink are stored uncompressed.
func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return payload, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("histostore: lz4 compress: %w", err)
		}
		if n == 0 || n >= len(payload) {
			return payload, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(payload, nil)
		if len(out) >= len(payload) {
			return payload, CompressionNone, nil
		}
		return out, CompressionZstd, nil
	default:
		return nil, 0, fmt.Errorf("histostore: unsupported compression %s", c)
	}
}

func decompress(body []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("histostore: payload size %d does not match header %d", len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("histostore: lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("histostore: lz4 produced %d bytes, expected %d", n, size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("histostore: zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("histostore: zstd produced %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("histostore: unsupported compression %s", c)
	}
}

// Diagnose renders the CBOR payload of a histogram file in diagnostic
// notation.
func Diagnose(data []byte) (string, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return "", err
	}
	return cbor.Diagnose(payload)
}
