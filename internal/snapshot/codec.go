package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	apperrors "snapshot-restore/internal/errors"
)

// Codec serializes snapshots to and from their canonical JSON form.
// Encoding is deterministic: model sets keep their insertion order and
// record fields are emitted in sorted key order, so encoding the same
// snapshot twice yields byte-identical output.
type Codec struct{}

// NewCodec creates a new snapshot codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode serializes a snapshot to canonical JSON
func (c *Codec) Encode(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, apperrors.NewValidationError("snapshot cannot be nil", nil)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, c.locateEncodingFailure(s, err)
	}

	return data, nil
}

// Decode deserializes canonical JSON into a snapshot
func (c *Codec) Decode(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, apperrors.NewCorruptSnapshotError("snapshot payload is empty", nil)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.NewCorruptSnapshotError("snapshot payload is not valid JSON", err)
	}

	if s.FormatVersion > FormatVersion {
		return nil, apperrors.NewCorruptSnapshotError(
			fmt.Sprintf("unsupported snapshot format version %d (max supported: %d)",
				s.FormatVersion, FormatVersion), nil)
	}

	if err := s.Validate(); err != nil {
		return nil, apperrors.NewCorruptSnapshotError("snapshot failed structural validation", err)
	}

	return &s, nil
}

// Checksum returns the hex-encoded SHA-256 digest of the encoded snapshot
func (c *Codec) Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeWithChecksum encodes the snapshot and returns its checksum alongside
func (c *Codec) EncodeWithChecksum(s *Snapshot) ([]byte, string, error) {
	data, err := c.Encode(s)
	if err != nil {
		return nil, "", err
	}
	return data, c.Checksum(data), nil
}

// locateEncodingFailure narrows a marshal failure down to the offending
// model and field so the caller gets an actionable error.
func (c *Codec) locateEncodingFailure(s *Snapshot, cause error) error {
	for _, ms := range s.ModelSets {
		for _, rec := range ms.Records {
			for field, value := range rec {
				if _, err := json.Marshal(value); err != nil {
					return apperrors.NewEncodingError(
						fmt.Sprintf("field %q in model %q cannot be encoded", field, ms.Name), err)
				}
			}
		}
	}
	return apperrors.NewEncodingError("snapshot cannot be encoded", cause)
}
