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

package kdf

import (
	"bytes"
	"crypto"
	_ "crypto/sha256" // Link in SHA256
	"testing"
)

var (
	testSecret = []byte("lock screen secret")
	testSalt   = []byte("saltsaltsaltsalt") // 16 bytes
)

func TestDefaultParams(t *testing.T) {
	tests := []struct {
		name      string
		algorithm KDFAlgorithm
		validate  func(*testing.T, *KDFParams)
	}{
		{
			name:      "PBKDF2 defaults",
			algorithm: AlgorithmPBKDF2,
			validate: func(t *testing.T, p *KDFParams) {
				if p == nil {
					t.Fatal("DefaultParams returned nil")
				}
				if p.Iterations != 600000 {
					t.Errorf("Iterations = %v, want 600000", p.Iterations)
				}
				if p.KeyLength != 32 {
					t.Errorf("KeyLength = %v, want 32", p.KeyLength)
				}
				if p.Hash != crypto.SHA256 {
					t.Errorf("Hash = %v, want %v", p.Hash, crypto.SHA256)
				}
			},
		},
		{
			name:      "Argon2id defaults",
			algorithm: AlgorithmArgon2id,
			validate: func(t *testing.T, p *KDFParams) {
				if p == nil {
					t.Fatal("DefaultParams returned nil")
				}
				if p.Memory != 64*1024 {
					t.Errorf("Memory = %v, want %v", p.Memory, 64*1024)
				}
				if p.Time != 3 {
					t.Errorf("Time = %v, want 3", p.Time)
				}
				if p.KeyLength != 32 {
					t.Errorf("KeyLength = %v, want 32", p.KeyLength)
				}
			},
		},
		{
			name:      "unknown algorithm",
			algorithm: KDFAlgorithm("bogus"),
			validate: func(t *testing.T, p *KDFParams) {
				if p != nil {
					t.Errorf("DefaultParams = %v, want nil", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, DefaultParams(tt.algorithm))
		})
	}
}

func TestForAlgorithm(t *testing.T) {
	if a := ForAlgorithm(AlgorithmPBKDF2); a == nil || a.Algorithm() != AlgorithmPBKDF2 {
		t.Errorf("ForAlgorithm(PBKDF2) = %v", a)
	}
	if a := ForAlgorithm(AlgorithmArgon2id); a == nil || a.Algorithm() != AlgorithmArgon2id {
		t.Errorf("ForAlgorithm(Argon2id) = %v", a)
	}
	if a := ForAlgorithm(KDFAlgorithm("bogus")); a != nil {
		t.Errorf("ForAlgorithm(bogus) = %v, want nil", a)
	}
}

func TestPBKDF2Deterministic(t *testing.T) {
	adapter := NewPBKDF2Adapter()
	params := DefaultParams(AlgorithmPBKDF2)
	params.Salt = testSalt
	params.Iterations = MinPBKDF2Iterations // keep the test fast

	k1, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("same (secret, salt) produced different keys")
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d, want 32", len(k1))
	}
}

func TestPBKDF2SaltChangesKey(t *testing.T) {
	adapter := NewPBKDF2Adapter()
	params := DefaultParams(AlgorithmPBKDF2)
	params.Salt = testSalt
	params.Iterations = MinPBKDF2Iterations

	k1, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	params.Salt = []byte("tlastlastlastlas")
	k2, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Error("different salts produced the same key")
	}
}

func TestPBKDF2ValidateParams(t *testing.T) {
	adapter := NewPBKDF2Adapter()

	tests := []struct {
		name    string
		mutate  func(*KDFParams)
		wantErr error
	}{
		{"short salt", func(p *KDFParams) { p.Salt = []byte("short") }, ErrInvalidSalt},
		{"low iterations", func(p *KDFParams) { p.Iterations = 10 }, ErrInvalidIterations},
		{"zero key length", func(p *KDFParams) { p.KeyLength = 0 }, ErrInvalidKeyLength},
		{"missing hash", func(p *KDFParams) { p.Hash = 0 }, ErrInvalidHash},
		{"wrong algorithm", func(p *KDFParams) { p.Algorithm = AlgorithmArgon2id }, ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams(AlgorithmPBKDF2)
			params.Salt = testSalt
			tt.mutate(params)
			if err := adapter.ValidateParams(params); err != tt.wantErr {
				t.Errorf("ValidateParams = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestArgon2idDeriveKey(t *testing.T) {
	adapter := NewArgon2idAdapter()
	params := DefaultParams(AlgorithmArgon2id)
	params.Salt = testSalt
	params.Memory = MinArgon2Memory // keep the test fast
	params.Time = MinArgon2Time

	k1, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := adapter.DeriveKey(testSecret, params)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("same (secret, salt) produced different keys")
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d, want 32", len(k1))
	}
}

func TestArgon2idValidateParams(t *testing.T) {
	adapter := NewArgon2idAdapter()

	tests := []struct {
		name    string
		mutate  func(*KDFParams)
		wantErr error
	}{
		{"short salt", func(p *KDFParams) { p.Salt = []byte("short") }, ErrInvalidSalt},
		{"low memory", func(p *KDFParams) { p.Memory = 1024 }, ErrInvalidMemory},
		{"zero time", func(p *KDFParams) { p.Time = 0 }, ErrInvalidTime},
		{"zero threads", func(p *KDFParams) { p.Threads = 0 }, ErrInvalidThreads},
		{"wrong algorithm", func(p *KDFParams) { p.Algorithm = AlgorithmPBKDF2 }, ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams(AlgorithmArgon2id)
			params.Salt = testSalt
			tt.mutate(params)
			if err := adapter.ValidateParams(params); err != tt.wantErr {
				t.Errorf("ValidateParams = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmptySecretRejected(t *testing.T) {
	adapter := NewPBKDF2Adapter()
	params := DefaultParams(AlgorithmPBKDF2)
	params.Salt = testSalt

	if _, err := adapter.DeriveKey(nil, params); err != ErrInvalidIKM {
		t.Errorf("DeriveKey(nil) = %v, want ErrInvalidIKM", err)
	}
}
