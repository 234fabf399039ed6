// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package middleware provides the HTTP middleware shared by all API routes:
// request ID propagation and Prometheus instrumentation. CORS and rate
// limiting come from the chi ecosystem and are wired in the router.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/ocwarden/internal/logging"
)

// RequestID tags each request with a unique ID, propagated through the
// response header, the request context, and every log line emitted while
// handling it. An ID supplied by an upstream proxy is kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
