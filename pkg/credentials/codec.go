// Package credentials encrypts and decrypts the per-request provider API keys
// that callers send to the relay.
//
// A credential has the form <hex-iv>:<hex-ciphertext>, produced by AES-256-CBC
// with PKCS#7 padding and a random 16 byte IV. The key is the process-wide
// Secret. Decrypt is a pure function: it performs no I/O and never retries.
package credentials

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decrypt recovers the plaintext provider key from an encrypted credential.
//
// Errors are *MalformedCredentialError for shape problems and
// *DecryptionError when the bytes do not decrypt cleanly. An uninitialized
// secret yields *ConfigurationError.
func Decrypt(encrypted string, secret Secret) (string, error) {
	if secret.IsZero() {
		return "", &ConfigurationError{Message: "decryption secret is not set"}
	}

	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", &MalformedCredentialError{Reason: ReasonSeparator}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &MalformedCredentialError{Reason: ReasonHex, Cause: err}
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &MalformedCredentialError{Reason: ReasonHex, Cause: err}
	}
	if len(iv) != aes.BlockSize {
		return "", &MalformedCredentialError{
			Reason: ReasonIVLength,
			Cause:  fmt.Errorf("iv is %d bytes, want %d", len(iv), aes.BlockSize),
		}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: ReasonBlockSize}
	}

	block, err := aes.NewCipher(secret.key)
	if err != nil {
		return "", &ConfigurationError{Message: err.Error()}
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, ok := unpad(plain)
	if !ok {
		return "", &DecryptionError{Reason: ReasonPadding}
	}
	if !utf8.Valid(plain) {
		return "", &DecryptionError{Reason: ReasonUTF8}
	}

	return string(plain), nil
}

// Encrypt produces a credential for plaintext under secret using a fresh
// random IV.
func Encrypt(plaintext string, secret Secret) (string, error) {
	if secret.IsZero() {
		return "", &ConfigurationError{Message: "decryption secret is not set"}
	}

	block, err := aes.NewCipher(secret.key)
	if err != nil {
		return "", &ConfigurationError{Message: err.Error()}
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding, reporting false if it is invalid.
func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
