package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

// LoadPepper loads the server pepper from file, generating and persisting a
// new one on first start. An empty path yields an ephemeral pepper, which is
// only suitable for tests since every restart invalidates stored hashes.
func LoadPepper(file string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return newPepper()
	}

	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	b, err := os.ReadFile(file)
	if err == nil {
		pepper := strings.TrimSpace(string(b))
		if pepper == "" {
			return "", errors.New("cryptox: pepper file is empty")
		}
		return pepper, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}

	// Generate a new pepper and save it to the file
	pepper, err := newPepper()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(file, []byte(pepper), 0600); err != nil {
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}

	return pepper, nil
}

func newPepper() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
