package snapshot

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apperrors "snapshot-restore/internal/errors"
)

// CompressionType identifies a compression algorithm
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// Compressor interface defines compression operations
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
	DefaultLevel() int
	MinLevel() int
	MaxLevel() int
}

// CompressionManager manages compression operations for snapshot envelopes
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a new compression manager
func NewCompressionManager() *CompressionManager {
	cm := &CompressionManager{
		compressors: make(map[CompressionType]Compressor),
	}

	cm.compressors[CompressionTypeGzip] = &GzipCompressor{}
	cm.compressors[CompressionTypeLZ4] = &LZ4Compressor{}
	cm.compressors[CompressionTypeZstd] = &ZstdCompressor{}

	return cm
}

// Compress compresses data using the specified algorithm and level
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, error) {
	if algorithm == CompressionTypeNone {
		return data, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, apperrors.NewEncodingError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	if level < compressor.MinLevel() || level > compressor.MaxLevel() {
		level = compressor.DefaultLevel()
	}

	return compressor.Compress(data, level)
}

// Decompress decompresses data using the specified algorithm
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionTypeNone {
		return data, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, apperrors.NewCorruptSnapshotError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	return compressor.Decompress(data)
}

// ShouldCompress determines if data should be compressed based on size threshold
func (cm *CompressionManager) ShouldCompress(dataSize int64, threshold int64) bool {
	return dataSize >= threshold
}

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

func (gc *GzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, apperrors.NewEncodingError("failed to create gzip writer", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, apperrors.NewEncodingError("failed to write data to gzip writer", err)
	}

	if err := writer.Close(); err != nil {
		return nil, apperrors.NewEncodingError("failed to close gzip writer", err)
	}

	return buf.Bytes(), nil
}

func (gc *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to create gzip reader", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to decompress gzip data", err)
	}

	return decompressed, nil
}

func (gc *GzipCompressor) Algorithm() CompressionType { return CompressionTypeGzip }
func (gc *GzipCompressor) DefaultLevel() int          { return gzip.DefaultCompression }
func (gc *GzipCompressor) MinLevel() int              { return gzip.BestSpeed }
func (gc *GzipCompressor) MaxLevel() int              { return gzip.BestCompression }

// LZ4Compressor implements LZ4 compression
type LZ4Compressor struct{}

func (lc *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer

	writer := lz4.NewWriter(&buf)
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, apperrors.NewEncodingError("failed to set LZ4 high compression", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, apperrors.NewEncodingError("failed to write data to LZ4 writer", err)
	}

	if err := writer.Close(); err != nil {
		return nil, apperrors.NewEncodingError("failed to close LZ4 writer", err)
	}

	return buf.Bytes(), nil
}

func (lc *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to decompress LZ4 data", err)
	}

	return decompressed, nil
}

func (lc *LZ4Compressor) Algorithm() CompressionType { return CompressionTypeLZ4 }
func (lc *LZ4Compressor) DefaultLevel() int          { return 1 }
func (lc *LZ4Compressor) MinLevel() int              { return 1 }
func (lc *LZ4Compressor) MaxLevel() int              { return 12 }

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

func (zc *ZstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	encoderLevel := zstd.SpeedFastest
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, apperrors.NewEncodingError("failed to create zstd encoder", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (zc *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to create zstd decoder", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to decompress zstd data", err)
	}

	return decompressed, nil
}

func (zc *ZstdCompressor) Algorithm() CompressionType { return CompressionTypeZstd }
func (zc *ZstdCompressor) DefaultLevel() int          { return 3 }
func (zc *ZstdCompressor) MinLevel() int              { return 1 }
func (zc *ZstdCompressor) MaxLevel() int              { return 22 }
