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

package database

import (
	"context"

	"github.com/rpatechnologies/study-cafe-api/internal/apierror"
	"github.com/rpatechnologies/study-cafe-api/model"
)

// GetPendingOutboxEvents retrieves up to limit pending events, oldest first,
// so entitlements are delivered in the order they were earned.
func (d Datasource) GetPendingOutboxEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, created_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, model.OutboxStatusPending, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve outbox events", err)
	}
	defer rows.Close()

	events := []*model.OutboxEvent{}

	for rows.Next() {
		event := model.OutboxEvent{}
		var payload []byte
		err = rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType, &payload, &event.Status, &event.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan outbox event", err)
		}
		event.Payload = payload
		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over outbox events", err)
	}

	return events, nil
}

// MarkOutboxEventProcessed terminates an event as delivered and stamps the
// delivery time.
func (d Datasource) MarkOutboxEventProcessed(ctx context.Context, id int64) error {
	return d.markOutboxEvent(ctx, id, model.OutboxStatusProcessed)
}

// MarkOutboxEventFailed terminates an event as failed. Failed events are not
// retried automatically; they stay queryable for operators.
func (d Datasource) MarkOutboxEventFailed(ctx context.Context, id int64) error {
	return d.markOutboxEvent(ctx, id, model.OutboxStatusFailed)
}

func (d Datasource) markOutboxEvent(ctx context.Context, id int64, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, status, model.OutboxStatusPending)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update outbox event", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update outbox event", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Outbox event not found or already terminated", nil)
	}
	return nil
}
