// Package hashing computes BLAKE3 content hashes used as image identifiers.
package hashing

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// Size is the digest size in bytes.
const Size = 32

// Sum returns the lowercase hex BLAKE3-256 digest of data.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Reader streams r through BLAKE3 and returns the hex digest.
func Reader(r io.Reader) (string, error) {
	h := blake3.New(Size, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File hashes the file at path without loading it into memory.
func File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: hashing user-selected files is the purpose
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Reader(f)
}
