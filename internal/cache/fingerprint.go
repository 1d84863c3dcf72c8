package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives a deterministic cache key from a model identifier and
// an input payload. The input is canonicalized through JSON (Go marshals map
// keys in sorted order, and struct field order is fixed), so structurally
// equal inputs always hash the same regardless of construction order, and any
// difference in input or model yields a different key.
func Fingerprint(modelID string, input any) (string, error) {
	canonical, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint: canonicalizing input: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
