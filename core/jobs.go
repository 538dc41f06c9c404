package core

import (
	"context"
	"fmt"
	"strconv"
)

const (
	RefreshJobID = "auth.refresh"

	refreshJobOrganizationParam = "organization_id"
)

// BuildRefreshJobMessage describes one organization's scheduled token
// refresh. The idempotency key collapses duplicate enqueues for the
// same organization.
func BuildRefreshJobMessage(organizationID int64) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: RefreshJobID,
		Parameters: map[string]any{
			refreshJobOrganizationParam: organizationID,
		},
		IdempotencyKey: RefreshJobID + ":" + strconv.FormatInt(organizationID, 10),
	}
}

// EnqueueRefreshJobs schedules one refresh job per configured
// organization. Meant to be driven by a cron tick.
func (s *Service) EnqueueRefreshJobs(ctx context.Context, enqueuer JobEnqueuer) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	records, err := s.registry.ListActive(ctx)
	if err != nil {
		return s.mapError(err)
	}
	for _, record := range records {
		if err := enqueuer.Enqueue(ctx, BuildRefreshJobMessage(record.OrganizationID)); err != nil {
			return s.mapError(fmt.Errorf("core: enqueue refresh for organization %d: %w", record.OrganizationID, err))
		}
	}
	return nil
}

// ProcessRefreshDelivery consumes one refresh job. Unrecoverable
// failures ack the delivery because the registry record is already
// parked; transient failures nack with requeue.
func (s *Service) ProcessRefreshDelivery(ctx context.Context, delivery JobDelivery) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("core: job delivery is required")
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != RefreshJobID {
		return delivery.Nack(ctx, JobNackOptions{
			DeadLetter: true,
			Reason:     "unexpected job payload",
		})
	}
	organizationID, ok := refreshJobOrganization(msg)
	if !ok {
		return delivery.Nack(ctx, JobNackOptions{
			DeadLetter: true,
			Reason:     "missing organization id",
		})
	}

	if err := s.RefreshOrganization(ctx, organizationID); err != nil {
		configured, checkErr := s.registry.IsConfigured(ctx, organizationID)
		if checkErr == nil && !configured {
			// Parked or removed; retrying cannot help.
			return delivery.Ack(ctx)
		}
		return delivery.Nack(ctx, JobNackOptions{
			Requeue: true,
			Reason:  err.Error(),
		})
	}
	return delivery.Ack(ctx)
}

func refreshJobOrganization(msg *JobExecutionMessage) (int64, bool) {
	raw, ok := msg.Parameters[refreshJobOrganizationParam]
	if !ok {
		return 0, false
	}
	switch typed := raw.(type) {
	case int64:
		return typed, typed != 0
	case int:
		return int64(typed), typed != 0
	case float64:
		return int64(typed), typed != 0
	case string:
		parsed, err := strconv.ParseInt(typed, 10, 64)
		return parsed, err == nil && parsed != 0
	default:
		return 0, false
	}
}
