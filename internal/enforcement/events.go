// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package enforcement

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the engine.
const (
	EventSessionDisconnected = "session_disconnected"
	EventAccountLocked       = "account_locked"
	EventAccountUnlocked     = "account_unlocked"
	EventQuotaReset          = "quota_reset"
	EventAddressBanned       = "address_banned"
)

// Event is one enforcement action, published to the dashboard event feed.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Username  string    `json:"username,omitempty"`
	SessionID int       `json:"session_id,omitempty"`
	Address   string    `json:"address,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// EventSink receives enforcement events. Publish must not block: the engine
// calls it inline during ticks.
type EventSink interface {
	Publish(event Event)
}

// NopSink discards events.
type NopSink struct{}

// Publish implements EventSink.
func (NopSink) Publish(Event) {}

func newEvent(eventType string, at time.Time) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: eventType,
		Time: at,
	}
}
