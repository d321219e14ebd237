package secret

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptSource reads the secret from the terminal without echo. With
// Confirm set the value is read twice and mismatches are rejected.
type PromptSource struct {
	Label   string
	Confirm bool
}

func (s PromptSource) Secret(context.Context) (string, error) {
	label := s.Label
	if label == "" {
		label = "Secret"
	}

	first, err := readPassword(label + ": ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("empty secret")
	}

	if s.Confirm {
		second, err := readPassword("Confirm " + label + ": ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", errors.New("values do not match")
		}
	}

	return first, nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use an environment or file secret source")
	}

	fmt.Fprint(os.Stderr, prompt)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(value), nil
}
