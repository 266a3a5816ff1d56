// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// AuthEventsQueue is the durable queue carrying authentication events.
const AuthEventsQueue = "auth.events"

// Auth event types.
const (
	EventLoginSucceeded = "login.succeeded"
	EventLoginRejected  = "login.rejected"
	EventTokenRotated   = "token.rotated"
	EventTokenRejected  = "token.rejected"
	EventLogout         = "logout"
)

// AuthEvent is published whenever the token service moves a session from
// one state to another.  It never carries token material.
type AuthEvent struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Email      string `json:"email"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewAuthEvent stamps an event with a fresh ID and the given time.
func NewAuthEvent(eventType, email, from, to string, at time.Time) AuthEvent {
	return AuthEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Email:      email,
		From:       from,
		To:         to,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
