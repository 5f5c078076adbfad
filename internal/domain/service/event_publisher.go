package service

import (
	"context"
	"time"
)

// SecurityEventType names a security-relevant occurrence.
type SecurityEventType string

const (
	// SecurityEventRefreshTokenReuse fires when an already-rotated refresh token is presented again.
	SecurityEventRefreshTokenReuse SecurityEventType = "refresh_token.reuse_detected"
)

// SecurityEvent is published for out-of-band handling (alerting, auditing).
// It never carries token secrets or hashes.
type SecurityEvent struct {
	RequestID     string            `json:"request_id,omitempty"`
	Type          SecurityEventType `json:"type"`
	UserID        string            `json:"user_id"`
	JTI           string            `json:"jti"`
	LineageRevoke bool              `json:"lineage_revoked"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishSecurityEvent publishes a security event.
	PublishSecurityEvent(ctx context.Context, event *SecurityEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
