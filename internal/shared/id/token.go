package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// SessionTokenLength is the default length for session tokens. 32 base62
	// characters carry ~190 bits of entropy.
	SessionTokenLength = 32
)

// Generate creates a random string with the specified length using Base62
// encoding. The result is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = SessionTokenLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}
