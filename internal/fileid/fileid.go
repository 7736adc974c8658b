// Package fileid provides deterministic document and chunk IDs derived from corpus origins.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strconv"
	"strings"
)

const prefix = "doc:"

// DocumentID returns a stable ID for a corpus-relative origin.
// Same origin always yields the same ID, regardless of separator style or redundant elements.
func DocumentID(origin string) string {
	normalized := path.Clean(strings.ReplaceAll(origin, "\\", "/"))
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:12])
}

// ChunkID returns a stable ID for the seq-th chunk of origin.
func ChunkID(origin string, seq int) string {
	return DocumentID(origin) + "#" + strconv.Itoa(seq)
}
