package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the content address of a text: lowercase hex sha256 of its UTF-8 bytes.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// EstimateTokens approximates the token count of n characters (~4 chars per token), minimum 1.
func EstimateTokens(chars int) int {
	if t := chars / 4; t > 1 {
		return t
	}
	return 1
}
