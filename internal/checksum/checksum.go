// Package checksum fingerprints projected search documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Document fingerprints the indexed fields of a question. Field separators
// keep "ab"+"c" and "a"+"bc" apart.
func Document(title, content string, tags []string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte(0)
	b.WriteString(content)
	b.WriteByte(0)
	b.WriteString(strings.Join(tags, "\x1f"))
	return Sum([]byte(b.String()))
}
