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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/rpatechnologies/study-cafe-api/internal/apierror"
	"github.com/rpatechnologies/study-cafe-api/model"
)

func TestGetPendingOutboxEvents_OldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM outbox_events").
		WithArgs(model.OutboxStatusPending, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at"}).
			AddRow(int64(1), model.AggregateOrder, "ORD_1_abc", model.EventCoursePurchased, []byte(`{"userId":"42","orderId":"ORD_1_abc","courseId":"77"}`), model.OutboxStatusPending, now.Add(-time.Minute)).
			AddRow(int64(2), model.AggregateOrder, "ORD_2_def", model.EventMembershipActivated, []byte(`{"userId":"42","orderId":"ORD_2_def","membershipType":"annual"}`), model.OutboxStatusPending, now))

	events, err := ds.GetPendingOutboxEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].ID)

	payload, err := events[0].DecodePayload()
	assert.NoError(t, err)
	course, ok := payload.(model.CoursePurchased)
	assert.True(t, ok)
	assert.Equal(t, "77", course.CourseID)
}

func TestGetPendingOutboxEvents_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT .* FROM outbox_events").
		WithArgs(model.OutboxStatusPending, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	events, err := ds.GetPendingOutboxEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestMarkOutboxEventProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(int64(1), model.OutboxStatusProcessed, model.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.MarkOutboxEventProcessed(context.Background(), 1))
}

func TestMarkOutboxEventFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(int64(1), model.OutboxStatusFailed, model.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.MarkOutboxEventFailed(context.Background(), 1))
}

func TestMarkOutboxEvent_AlreadyTerminated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(int64(1), model.OutboxStatusProcessed, model.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.MarkOutboxEventProcessed(context.Background(), 1)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
