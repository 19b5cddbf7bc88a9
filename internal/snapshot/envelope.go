package snapshot

import (
	"encoding/json"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
)

// Envelope is the stored form of a snapshot: canonical JSON, optionally
// compressed and then encrypted, with the checksum of the canonical JSON
// recorded so integrity can be verified after unwrapping.
type Envelope struct {
	FormatVersion int             `json:"format_version"`
	BackupID      string          `json:"backup_id"`
	Compression   CompressionType `json:"compression"`
	Encrypted     bool            `json:"encrypted"`
	Checksum      string          `json:"checksum"`
	Payload       []byte          `json:"payload"`
}

// Sealer wraps snapshots into envelopes and unwraps them again
type Sealer struct {
	codec       *Codec
	compression *CompressionManager
	compCfg     config.CompressionConfig
	encryptor   *Encryptor
}

// NewSealer creates a sealer from the compression and encryption configuration
func NewSealer(compCfg config.CompressionConfig, encCfg config.EncryptionConfig) (*Sealer, error) {
	s := &Sealer{
		codec:       NewCodec(),
		compression: NewCompressionManager(),
		compCfg:     compCfg,
	}

	if encCfg.Enabled {
		key, err := encCfg.Key()
		if err != nil {
			return nil, err
		}
		encryptor, err := NewEncryptor(key)
		if err != nil {
			return nil, err
		}
		s.encryptor = encryptor
	}

	return s, nil
}

// Seal encodes a snapshot into envelope bytes and returns the checksum of
// the canonical JSON alongside.
func (s *Sealer) Seal(snap *Snapshot) ([]byte, string, error) {
	canonical, checksum, err := s.codec.EncodeWithChecksum(snap)
	if err != nil {
		return nil, "", err
	}

	payload := canonical
	compression := CompressionTypeNone

	if s.compCfg.Enabled && s.compression.ShouldCompress(int64(len(canonical)), s.compCfg.Threshold) {
		compression = CompressionType(s.compCfg.Algorithm)
		payload, err = s.compression.Compress(canonical, compression, s.compCfg.Level)
		if err != nil {
			return nil, "", err
		}
	}

	encrypted := false
	if s.encryptor != nil {
		payload, err = s.encryptor.Encrypt(payload)
		if err != nil {
			return nil, "", err
		}
		encrypted = true
	}

	envelope := Envelope{
		FormatVersion: FormatVersion,
		BackupID:      snap.BackupID,
		Compression:   compression,
		Encrypted:     encrypted,
		Checksum:      checksum,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", apperrors.NewEncodingError("failed to encode snapshot envelope", err)
	}

	return data, checksum, nil
}

// Open unwraps envelope bytes back into a snapshot, verifying the checksum
// of the canonical JSON before decoding.
func (s *Sealer) Open(data []byte) (*Snapshot, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperrors.NewCorruptSnapshotError("snapshot envelope is not valid JSON", err)
	}

	payload := envelope.Payload

	if envelope.Encrypted {
		if s.encryptor == nil {
			return nil, apperrors.NewCorruptSnapshotError("snapshot is encrypted but no encryption key is configured", nil)
		}
		decrypted, err := s.encryptor.Decrypt(payload)
		if err != nil {
			return nil, err
		}
		payload = decrypted
	}

	canonical, err := s.compression.Decompress(payload, envelope.Compression)
	if err != nil {
		return nil, err
	}

	if got := s.codec.Checksum(canonical); got != envelope.Checksum {
		return nil, apperrors.NewCorruptSnapshotError("snapshot checksum mismatch", nil).
			WithContext("expected", envelope.Checksum).
			WithContext("actual", got)
	}

	return s.codec.Decode(canonical)
}

// VerifyChecksum unwraps only far enough to confirm the stored checksum
// matches the canonical JSON. Returns the recorded checksum.
func (s *Sealer) VerifyChecksum(data []byte) (string, error) {
	snap, err := s.Open(data)
	if err != nil {
		return "", err
	}

	_, checksum, err := s.codec.EncodeWithChecksum(snap)
	if err != nil {
		return "", err
	}
	return checksum, nil
}
