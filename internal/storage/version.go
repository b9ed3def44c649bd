package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// BlobVersion returns the version token of a content, computed the same way git
// computes blob IDs so local stores hand out the tokens GitHub would.
func BlobVersion(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
