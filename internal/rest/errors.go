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

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jeremyhahn/go-credstore/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credstore/pkg/keystore"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidUserID  = errors.New("invalid user id")
	ErrInternalError  = errors.New("internal server error")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// mapErrorToStatusCode maps the manager's error taxonomy to HTTP status
// codes. A locked user is routine contention, not a server fault.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, superkey.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, superkey.ErrUninitialized):
		return http.StatusConflict
	case errors.Is(err, aead.ErrAuthenticationFailed):
		return http.StatusForbidden
	case errors.Is(err, superkey.ErrValueCorrupted):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, keystore.ErrInvalidAlias):
		return http.StatusBadRequest
	case errors.Is(err, keystore.ErrKeyNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// handleError is a convenience function that maps the error to a status code
// and writes the error response.
func handleError(w http.ResponseWriter, err error) {
	statusCode := mapErrorToStatusCode(err)
	writeError(w, err, statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
