// Package imghash derives stable content hashes for source images. The
// hash is the dedup key for correction logging: identical image bytes
// always produce the identical key.
package imghash

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Hash returns the hex SHA-256 digest of the image bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBase64 decodes a base64-encoded image and hashes its raw bytes, so
// the key is independent of encoding padding or line breaks.
func HashBase64(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return Hash(data), nil
}
