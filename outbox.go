/*
Copyright 2024 RPA Technologies Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package studycafe

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/internal/notification"
	"github.com/rpatechnologies/study-cafe-api/model"
)

// DispatchPendingEvents drains one batch of pending outbox events, oldest
// first, and delivers each entitlement to the auth service. Every event is
// terminated exactly once: processed on successful delivery, failed on a
// delivery error. A failed event is not retried; the failure is logged and
// pushed to the ops channel so a stranded paid order is visible.
//
// A failure to mark one event never aborts the rest of the batch.
func (s *StudyCafe) DispatchPendingEvents(ctx context.Context) (delivered, failed int, err error) {
	ctx, span := tracer.Start(ctx, "Dispatching outbox events")
	defer span.End()

	batch := s.outboxBatch
	if batch <= 0 {
		batch = config.DEFAULT_OUTBOX_BATCH
	}

	events, err := s.datasource.GetPendingOutboxEvents(ctx, batch)
	if err != nil {
		return 0, 0, logAndRecordError(span, "ERROR fetching outbox events. ", err)
	}

	for _, event := range events {
		if dispatchErr := s.dispatchEvent(ctx, event); dispatchErr != nil {
			failed++
			logrus.Errorf("outbox event %d (%s, order %s) failed: %v", event.ID, event.EventType, event.AggregateID, dispatchErr)
			notification.NotifyError(errors.Wrapf(dispatchErr, "entitlement delivery failed for order %s (event %d)", event.AggregateID, event.ID))
			if markErr := s.datasource.MarkOutboxEventFailed(ctx, event.ID); markErr != nil {
				logrus.Errorf("failed to mark outbox event %d failed: %v", event.ID, markErr)
			}
			continue
		}
		if markErr := s.datasource.MarkOutboxEventProcessed(ctx, event.ID); markErr != nil {
			logrus.Errorf("failed to mark outbox event %d processed: %v", event.ID, markErr)
			continue
		}
		delivered++
	}

	if len(events) > 0 {
		logrus.Infof("outbox batch done: %d delivered, %d failed", delivered, failed)
	}
	return delivered, failed, nil
}

// dispatchEvent delivers a single entitlement according to its payload type.
func (s *StudyCafe) dispatchEvent(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := event.DecodePayload()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case model.CoursePurchased:
		return s.entitlements.GrantCourse(ctx, p.BuyerID, p.CourseID, p.OrderRef)
	case model.MembershipActivated:
		return s.entitlements.GrantMembership(ctx, p.BuyerID, p.MembershipType, p.OrderRef, p.StartsAt, p.ExpiresAt)
	default:
		return errors.Errorf("no dispatcher for event type %q", event.EventType)
	}
}
