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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-credstore/internal/password"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

// HandlerContext holds dependencies shared by all HTTP handlers.
type HandlerContext struct {
	manager *superkey.Manager
	version string
	logger  logger.Logger
}

// NewHandlerContext creates a handler context over the given manager.
func NewHandlerContext(manager *superkey.Manager, version string, log logger.Logger) *HandlerContext {
	return &HandlerContext{
		manager: manager,
		version: version,
		logger:  log,
	}
}

// userIDParam parses the {id} route parameter into a user ID.
func userIDParam(r *http.Request) (types.UserID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	return types.UserID(id), nil
}

// stateName maps a UserState variant to its wire name and releases any
// retained handle the variant carries.
func stateName(st superkey.UserState) string {
	switch s := st.(type) {
	case *superkey.LskfUnlocked:
		s.SuperKey.Release()
		return StateUnlocked
	case *superkey.LskfLocked:
		return StateLocked
	default:
		return StateUninitialized
	}
}

// UserStateHandler handles GET /v1/users/{id}/state.
func (h *HandlerContext) UserStateHandler(w http.ResponseWriter, r *http.Request) {
	user, err := userIDParam(r)
	if err != nil {
		handleError(w, err)
		return
	}

	start := time.Now()
	st, err := h.manager.GetUserState(user)
	if err != nil {
		metrics.RecordOperation(metrics.OpStateQuery, "error", time.Since(start).Seconds())
		handleError(w, err)
		return
	}
	metrics.RecordOperation(metrics.OpStateQuery, "success", time.Since(start).Seconds())

	writeJSON(w, StateResponse{State: stateName(st)}, http.StatusOK)
}

// UnlockHandler handles POST /v1/users/{id}/unlock. A wrong secret is 403,
// an uninitialized user is 409.
func (h *HandlerContext) UnlockHandler(w http.ResponseWriter, r *http.Request) {
	user, err := userIDParam(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "password is required", http.StatusBadRequest)
		return
	}

	pwd, err := password.NewFromString(req.Password)
	if err != nil {
		handleError(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	defer pwd.Clear()

	start := time.Now()
	st, err := h.manager.GetWithPasswordUnlock(user, pwd)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := metrics.UnlockError
		if mapErrorToStatusCode(err) == http.StatusForbidden {
			outcome = metrics.UnlockWrongPassword
			h.logger.Warn("unlock failed: wrong password", logger.Uint32("user", uint32(user)))
		}
		metrics.RecordUnlockAttempt(outcome)
		metrics.RecordOperation(metrics.OpUnlock, outcome, elapsed)
		handleError(w, err)
		return
	}

	if _, ok := st.(*superkey.Uninitialized); ok {
		metrics.RecordUnlockAttempt(metrics.UnlockUninitialized)
		metrics.RecordOperation(metrics.OpUnlock, metrics.UnlockUninitialized, elapsed)
		handleError(w, superkey.ErrUninitialized)
		return
	}

	metrics.RecordUnlockAttempt(metrics.UnlockSuccess)
	metrics.RecordOperation(metrics.OpUnlock, metrics.UnlockSuccess, elapsed)
	writeJSON(w, StateResponse{State: stateName(st)}, http.StatusOK)
}

// PasswordChangeHandler handles POST /v1/users/{id}/password. A null
// password destroys the user's master key and everything it wraps.
func (h *HandlerContext) PasswordChangeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := userIDParam(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	var pwd types.Password
	if req.Password != nil {
		if *req.Password == "" {
			writeErrorWithMessage(w, ErrInvalidRequest, "password must be non-empty or null", http.StatusBadRequest)
			return
		}
		p, err := password.NewFromString(*req.Password)
		if err != nil {
			handleError(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}
		defer p.Clear()
		pwd = p
	}

	start := time.Now()
	st, err := h.manager.GetWithPasswordChanged(user, pwd)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordOperation(metrics.OpPasswordChange, "error", elapsed)
		handleError(w, err)
		return
	}
	metrics.RecordOperation(metrics.OpPasswordChange, "success", elapsed)

	writeJSON(w, StateResponse{State: stateName(st)}, http.StatusOK)
}

// ResetUserHandler handles DELETE /v1/users/{id}. The optional
// keep_non_super_encrypted query parameter preserves keys that were never
// bound to the lock-screen secret.
func (h *HandlerContext) ResetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := userIDParam(r)
	if err != nil {
		handleError(w, err)
		return
	}

	keep := false
	if raw := r.URL.Query().Get("keep_non_super_encrypted"); raw != "" {
		keep, err = strconv.ParseBool(raw)
		if err != nil {
			writeErrorWithMessage(w, ErrInvalidRequest, "keep_non_super_encrypted must be a boolean", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	if err := h.manager.ResetUser(user, keep); err != nil {
		metrics.RecordOperation(metrics.OpReset, "error", time.Since(start).Seconds())
		handleError(w, err)
		return
	}
	metrics.RecordOperation(metrics.OpReset, "success", time.Since(start).Seconds())

	w.WriteHeader(http.StatusNoContent)
}

// LockUserHandler handles POST /v1/users/{id}/lock. Only the screen-lock
// key is evicted; the per-boot key survives until reboot.
func (h *HandlerContext) LockUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := userIDParam(r)
	if err != nil {
		handleError(w, err)
		return
	}

	h.manager.ForgetScreenLockKey(user)
	w.WriteHeader(http.StatusNoContent)
}

// LockAllHandler handles POST /v1/lock.
func (h *HandlerContext) LockAllHandler(w http.ResponseWriter, r *http.Request) {
	h.manager.ForgetScreenLockKeys()
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles GET /healthz.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		Status: "ok",
		AESNI:  aead.HasAESNI(),
	}, http.StatusOK)
}
