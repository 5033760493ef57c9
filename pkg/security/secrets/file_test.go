package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), perm); err != nil {
		t.Fatal(err)
	}
	// WriteFile honours umask; force the mode under test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "decryption-key", "0123456789abcdef0123456789abcdef\n", 0600)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	defer p.Close()

	got, err := p.GetSecret(context.Background(), "decryption-key")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got != "0123456789abcdef0123456789abcdef" {
		t.Errorf("GetSecret() = %q", got)
	}
}

func TestFileProvider_KeepsInnerWhitespace(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "k", " spaced ", 0400)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	got, err := p.GetSecret(context.Background(), "k")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got != " spaced " {
		t.Errorf("GetSecret() = %q, want value unchanged", got)
	}
}

func TestFileProvider_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "loose", "value", 0644)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name     string
		secret   string
		notFound bool
	}{
		{name: "missing", secret: "absent", notFound: true},
		{name: "insecure permissions", secret: "loose"},
		{name: "traversal", secret: "../etc/passwd"},
		{name: "empty name", secret: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GetSecret(context.Background(), tt.secret)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.notFound != errors.Is(err, ErrSecretNotFound) {
				t.Errorf("errors.Is(ErrSecretNotFound) = %v, want %v (%v)", !tt.notFound, tt.notFound, err)
			}
		})
	}
}

func TestFileProvider_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "file", "x", 0600)

	if _, err := NewFileProvider(filepath.Join(dir, "file"), false); err == nil {
		t.Error("expected error for non-directory base path")
	}
}

func TestFileProvider_SupportsAndList(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "decryption-key", "x", 0600)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0700); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	if !p.Supports("decryption-key") {
		t.Error("Supports(decryption-key) = false")
	}
	if p.Supports("nested") || p.Supports("absent") {
		t.Error("Supports() true for directory or missing file")
	}

	names, err := p.ListSecrets(context.Background())
	if err != nil {
		t.Fatalf("ListSecrets() error = %v", err)
	}
	if len(names) != 1 || names[0] != "decryption-key" {
		t.Errorf("ListSecrets() = %v", names)
	}
}

func TestFileProvider_RefreshRereads(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "k", "one", 0600)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	ctx := context.Background()

	if v, _ := p.GetSecret(ctx, "k"); v != "one" {
		t.Fatalf("GetSecret() = %q", v)
	}
	writeSecret(t, dir, "k", "two", 0600)
	if v, _ := p.GetSecret(ctx, "k"); v != "one" {
		t.Errorf("cached value = %q, want one", v)
	}
	if err := p.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if v, _ := p.GetSecret(ctx, "k"); v != "two" {
		t.Errorf("after Refresh = %q, want two", v)
	}
}

func TestFileProvider_WatchNotifies(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "k", "one", 0600)

	p, err := NewFileProvider(dir, true)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	defer p.Close()

	changed := make(chan struct{}, 8)
	p.OnChange(func() { changed <- struct{}{} })

	if v, _ := p.GetSecret(context.Background(), "k"); v != "one" {
		t.Fatalf("GetSecret() = %q", v)
	}

	writeSecret(t, dir, "k", "two", 0600)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnChange was not called")
	}

	if v, _ := p.GetSecret(context.Background(), "k"); v != "two" {
		t.Errorf("after change = %q, want two", v)
	}
}

func TestFileProvider_CloseIdempotent(t *testing.T) {
	p, err := NewFileProvider(t.TempDir(), true)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
