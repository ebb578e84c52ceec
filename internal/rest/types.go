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

package rest

// User lock states as reported by the API.
const (
	StateUnlocked      = "unlocked"
	StateLocked        = "locked"
	StateUninitialized = "uninitialized"
)

// StateResponse reports a user's lock state.
type StateResponse struct {
	State string `json:"state"`
}

// UnlockRequest carries the lock-screen secret for an unlock attempt.
type UnlockRequest struct {
	Password string `json:"password"`
}

// PasswordChangeRequest carries the new lock-screen secret. A JSON null
// password means the secret was removed and the user's master key must be
// destroyed.
type PasswordChangeRequest struct {
	Password *string `json:"password"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	AESNI  bool   `json:"aesni"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
