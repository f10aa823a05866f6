package scylla

import (
	"context"
	"fmt"

	"login-service/internal/models"
	"login-service/internal/util"
)

// SecurityEventRepository writes audit events into security_events, partitioned by day
// and event bucket.
type SecurityEventRepository struct {
	client *ScyllaClient
}

func NewSecurityEventRepository(client *ScyllaClient) *SecurityEventRepository {
	return &SecurityEventRepository{client: client}
}

func (r *SecurityEventRepository) Name() string { return "scylla" }

func (r *SecurityEventRepository) Write(ctx context.Context, events []models.SecurityEvent) error {
	for _, e := range events {
		query := r.client.Query(insertSecurityEvent,
			e.EventDate, e.EventBucket, e.EventTime, e.EventID, string(e.EventType), e.AccountID,
			e.SessionRef, e.Success, e.Reason, e.IPAddress, e.UserAgent, e.RequestID)

		if err := r.client.ExecuteWithRetry(ctx, query, 2); err != nil {
			util.Error("Failed to insert security event",
				util.String("event_id", e.EventID),
				util.String("event_type", string(e.EventType)),
				util.ErrorField(err))
			return fmt.Errorf("failed to insert security event: %w", err)
		}
	}
	return nil
}
