package secret

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// AgeFileSource reads the secret from an age-encrypted file, decrypted with
// identities from IdentityPath.
type AgeFileSource struct {
	Path         string
	IdentityPath string
}

func (s AgeFileSource) Secret(ctx context.Context) (string, error) {
	if s.Path == "" {
		return "", errors.New("encrypted secret path is required")
	}
	if s.IdentityPath == "" {
		return "", errors.New("age identity path is required")
	}

	identityFile, err := os.Open(s.IdentityPath)
	if err != nil {
		return "", fmt.Errorf("open age identity: %w", err)
	}
	defer identityFile.Close()

	identities, err := age.ParseIdentities(identityFile)
	if err != nil {
		return "", fmt.Errorf("parse age identity: %w", err)
	}

	payload, err := os.Open(s.Path)
	if err != nil {
		return "", fmt.Errorf("open encrypted secret: %w", err)
	}
	defer payload.Close()

	plaintext, err := age.Decrypt(payload, identities...)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}

	data, err := io.ReadAll(plaintext)
	if err != nil {
		return "", fmt.Errorf("read decrypted secret: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("decrypted secret %s is empty", s.Path)
	}
	return value, nil
}
