// Package secret supplies the sensitive payload of administrative commands
// from out-of-band sources. Values are opaque to the rest of the system and
// must never reach logs, error messages, or report fields.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source yields one secret value.
type Source interface {
	Secret(ctx context.Context) (string, error)
}

// EnvSource reads the secret from an environment variable.
type EnvSource struct {
	Var string
}

func (s EnvSource) Secret(context.Context) (string, error) {
	if s.Var == "" {
		return "", errors.New("environment variable name is required")
	}
	value := os.Getenv(s.Var)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is empty or unset", s.Var)
	}
	return value, nil
}

// FileSource reads the secret from a plain file, trimming surrounding
// whitespace.
type FileSource struct {
	Path string
}

func (s FileSource) Secret(context.Context) (string, error) {
	if s.Path == "" {
		return "", errors.New("secret file path is required")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty", s.Path)
	}
	return value, nil
}
