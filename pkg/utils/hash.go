package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// HashFile returns the hex encoded sha256 of the file content.
// It is used to detect whether a file really changed after a write event.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
