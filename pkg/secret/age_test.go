package secret

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
)

func TestAgeFileSource(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	identityPath := filepath.Join(dir, "identity")
	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var encrypted bytes.Buffer
	w, err := age.Encrypt(&encrypted, identity.Recipient())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hunter2\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	secretPath := filepath.Join(dir, "secret.age")
	if err := os.WriteFile(secretPath, encrypted.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	value, err := AgeFileSource{Path: secretPath, IdentityPath: identityPath}.Secret(context.Background())
	if err != nil {
		t.Fatalf("Secret() error = %v", err)
	}
	if value != "hunter2" {
		t.Errorf("value = %q", value)
	}
}

func TestAgeFileSourceWrongIdentity(t *testing.T) {
	sender, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	identityPath := filepath.Join(dir, "identity")
	if err := os.WriteFile(identityPath, []byte(other.String()+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var encrypted bytes.Buffer
	w, err := age.Encrypt(&encrypted, sender.Recipient())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hunter2")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	secretPath := filepath.Join(dir, "secret.age")
	if err := os.WriteFile(secretPath, encrypted.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := (AgeFileSource{Path: secretPath, IdentityPath: identityPath}).Secret(context.Background()); err == nil {
		t.Fatal("expected decryption failure with wrong identity")
	}
}

func TestAgeFileSourceMissingConfig(t *testing.T) {
	if _, err := (AgeFileSource{IdentityPath: "id"}).Secret(context.Background()); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := (AgeFileSource{Path: "secret.age"}).Secret(context.Background()); err == nil {
		t.Fatal("expected error for missing identity path")
	}
}
