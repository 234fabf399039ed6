// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package services

import (
	"context"
)

// EventHub matches the websocket hub's run loop. The hub already
// follows the suture pattern, so the wrapper only contributes a name.
type EventHub interface {
	Run(ctx context.Context) error
}

// HubService supervises the websocket event hub.
type HubService struct {
	hub EventHub
}

// NewHubService wraps the event hub for supervision.
func NewHubService(hub EventHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service. The hub drains its broadcast queue
// and closes every client before returning.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *HubService) String() string {
	return "event-hub"
}
