// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package aead provides the authenticated encryption primitives used to wrap
// key material at rest.
//
// All wraps use AES-256-GCM and are represented as an explicit
// (ciphertext, iv, tag) triple so the three parts can be stored as separate
// metadata fields. Decryption authenticates the triple and fails with
// ErrAuthenticationFailed on any mismatch of ciphertext, iv, tag or key;
// it never returns unauthenticated plaintext.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// LegacyKeySize is the AES-128 key size used by v0 master keys.
	LegacyKeySize = 16

	// IVSize is the GCM nonce size in bytes.
	IVSize = 12

	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16

	// SaltSize is the size of salts for password-based key derivation.
	SaltSize = 16
)

// Encrypt encrypts plaintext with AES-256-GCM under key, generating a fresh
// random IV. The returned ciphertext does not include the IV or the tag;
// all three parts must be stored and presented together to Decrypt.
func Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("aead: failed to generate iv: %w", err)
	}

	// Seal appends ciphertext||tag; split the tag off so it can be stored
	// as a separate metadata field.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]
	return ciphertext, iv, tag, nil
}

// Decrypt authenticates and decrypts a (ciphertext, iv, tag) triple produced
// by Encrypt. Returns ErrAuthenticationFailed if the triple does not
// authenticate under key.
func Decrypt(ciphertext, iv, tag, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv length %d", ErrInvalidIV, len(iv))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("%w: tag length %d", ErrInvalidTag, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("aead: failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt returns a fresh random salt for password-based derivation.
// A new salt must be generated for every new wrap; salts are never reused.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("aead: failed to generate salt: %w", err)
	}
	return salt, nil
}

// HasAESNI reports whether the CPU provides hardware AES instructions.
// Surfaced through the health endpoint for capacity planning; the cipher
// choice itself is fixed so that stored wraps need no algorithm metadata.
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	switch len(key) {
	case LegacyKeySize, 24, KeySize:
	default:
		return nil, fmt.Errorf("%w: key length %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: failed to create GCM: %w", err)
	}
	return aead, nil
}
