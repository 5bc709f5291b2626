package model

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// shareCodeAlphabet omits 0, O, I and l so codes survive being read aloud
// or retyped.
const shareCodeAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const ShareCodeLength = 12

// NewShareCode returns a random share code drawn from the unambiguous
// 58-symbol alphabet.
func NewShareCode() (string, error) {
	buf := make([]byte, ShareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share code: %w", err)
	}
	var b strings.Builder
	b.Grow(ShareCodeLength)
	for _, c := range buf {
		b.WriteByte(shareCodeAlphabet[int(c)%len(shareCodeAlphabet)])
	}
	return b.String(), nil
}

// ValidShareCode reports whether code has the expected length and alphabet.
func ValidShareCode(code string) bool {
	if len(code) != ShareCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(shareCodeAlphabet, r) {
			return false
		}
	}
	return true
}
