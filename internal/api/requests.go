// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// requestValidator validates decoded request bodies. validator.Validate is
// safe for concurrent use and caches struct metadata, so one instance serves
// the whole package.
var requestValidator = validator.New()

const maxRequestBody = 1 << 20 // 1 MiB

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAccountRequest provisions a new VPN account. Traffic is in bytes;
// zero means unlimited. ExpireDays of zero means the account never expires.
type CreateAccountRequest struct {
	Username        string `json:"username" validate:"required,min=1,max=64,alphanum"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	MaxTraffic      int64  `json:"max_traffic" validate:"min=0"`
	ResetPeriodDays int    `json:"reset_period_days" validate:"min=0,max=365"`
	ExpireDays      int    `json:"expire_days" validate:"min=0"`
	MaxConnections  int    `json:"max_connections" validate:"required,min=1,max=64"`
	Note            string `json:"note" validate:"max=512"`
}

// UpdateAccountRequest modifies account policy. Pointer fields distinguish
// "leave unchanged" from an explicit zero.
type UpdateAccountRequest struct {
	MaxTraffic      *int64     `json:"max_traffic" validate:"omitempty,min=0"`
	ResetPeriodDays *int       `json:"reset_period_days" validate:"omitempty,min=0,max=365"`
	ExpireAt        *time.Time `json:"expire_at"`
	MaxConnections  *int       `json:"max_connections" validate:"omitempty,min=1,max=64"`
	IsActive        *bool      `json:"is_active"`
	Note            *string    `json:"note" validate:"omitempty,max=512"`
}

// ResetQuotaRequest optionally replaces the traffic cap while resetting.
type ResetQuotaRequest struct {
	NewLimit int64 `json:"new_limit" validate:"min=0"`
}

// ExtendExpiryRequest changes the expiry: either forward by whole days or
// to an absolute date. Exactly one of the two must be set.
type ExtendExpiryRequest struct {
	Days     int        `json:"days" validate:"omitempty,min=1,max=3650"`
	ExpireAt *time.Time `json:"expire_at"`
}

// SetPasswordRequest replaces the account's VPN password.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// decodeAndValidate decodes the JSON body into dst and runs validation.
// It writes the error response itself and reports whether the caller should
// proceed.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(rw.w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return false
	}

	if err := requestValidator.Struct(dst); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
		}
		rw.ValidationError("request validation failed", details)
		return false
	}
	return true
}
