// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	upperDigits  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func GenerateRandomString(length int) (string, error) {
	return randomFrom(alphanumeric, length)
}

// GenerateOrderNumber returns a human-friendly reference like BB-20260117-7KQ2XM.
func GenerateOrderNumber(now time.Time) (string, error) {
	suffix, err := randomFrom(upperDigits, 6)
	if err != nil {
		return "", err
	}
	return "BB-" + now.UTC().Format("20060102") + "-" + suffix, nil
}

// Slugify lowercases and joins words with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func randomFrom(charset string, length int) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}
