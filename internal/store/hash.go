package store

import (
	"crypto/sha256"
	"fmt"
)

// ComputeFileHash returns the content hash used to skip unchanged files.
func ComputeFileHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}
