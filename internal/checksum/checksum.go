// Package checksum fingerprints input files so a run can be traced back to
// the exact uploads it read.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum is the hex SHA-256 of data.
func Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Short is the first 12 hex digits of a sum, enough to tell uploads apart
// in logs.
func Short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
