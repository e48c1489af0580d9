package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"event-feature-lab/internal/domain"
)

// ComputeRecordFingerprint computes a deterministic fingerprint of a feature record.
// Formula: SHA256(canonical JSON of record); map keys are serialized sorted.
// Returns hex-encoded hash (64 characters).
func ComputeRecordFingerprint(rec *domain.FeatureRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record %s: %w", rec.EventID, err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
