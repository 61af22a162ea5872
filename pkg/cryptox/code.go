package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
)

// Bounds of a six digit one-time code.
const (
	CodeMin = 100000
	CodeMax = 999999
)

// GenerateNumericCode returns a decimal code drawn uniformly from
// [CodeMin, CodeMax] using crypto/rand.
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(CodeMax-CodeMin+1))
	if err != nil {
		return "", fmt.Errorf("cryptox: generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+CodeMin, 10), nil
}

// KeyedFingerprint returns base64url(HMAC-SHA256(key, parts...)). Each part
// is length-prefixed so ("ab","c") and ("a","bc") never collide.
func KeyedFingerprint(key string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(key))
	for _, p := range parts {
		mac.Write([]byte(strconv.Itoa(len(p))))
		mac.Write([]byte{':'})
		mac.Write([]byte(p))
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
