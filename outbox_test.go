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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rpatechnologies/study-cafe-api/model"
)

func pendingEvent(t *testing.T, id int64, payload model.EventPayload) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent("ORD_1_abc", payload)
	assert.NoError(t, err)
	event.ID = id
	event.CreatedAt = time.Now()
	return event
}

func TestDispatchPendingEvents_DeliversBatch(t *testing.T) {
	service, ds, _, granter, _ := newTestService(t)

	startsAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	events := []*model.OutboxEvent{
		pendingEvent(t, 1, model.CoursePurchased{BuyerID: "42", OrderRef: "ORD_1_abc", CourseID: "77"}),
		pendingEvent(t, 2, model.MembershipActivated{
			BuyerID:        "42",
			OrderRef:       "ORD_2_def",
			MembershipType: model.MembershipTypeAnnual,
			StartsAt:       startsAt,
			ExpiresAt:      startsAt.AddDate(1, 0, 0),
		}),
	}

	ds.On("GetPendingOutboxEvents", mock.Anything, 10).Return(events, nil)
	granter.On("GrantCourse", mock.Anything, "42", "77", "ORD_1_abc").Return(nil)
	granter.On("GrantMembership", mock.Anything, "42", model.MembershipTypeAnnual, "ORD_2_def", startsAt, startsAt.AddDate(1, 0, 0)).Return(nil)
	ds.On("MarkOutboxEventProcessed", mock.Anything, int64(1)).Return(nil)
	ds.On("MarkOutboxEventProcessed", mock.Anything, int64(2)).Return(nil)

	delivered, failed, err := service.DispatchPendingEvents(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, failed)
	ds.AssertExpectations(t)
	granter.AssertExpectations(t)
}

func TestDispatchPendingEvents_FailureIsTerminal(t *testing.T) {
	service, ds, _, granter, _ := newTestService(t)

	events := []*model.OutboxEvent{
		pendingEvent(t, 1, model.CoursePurchased{BuyerID: "42", OrderRef: "ORD_1_abc", CourseID: "77"}),
		pendingEvent(t, 2, model.CoursePurchased{BuyerID: "43", OrderRef: "ORD_2_def", CourseID: "78"}),
	}
	events[1].AggregateID = "ORD_2_def"

	ds.On("GetPendingOutboxEvents", mock.Anything, 10).Return(events, nil)
	granter.On("GrantCourse", mock.Anything, "42", "77", "ORD_1_abc").Return(errors.New("auth service down"))
	granter.On("GrantCourse", mock.Anything, "43", "78", "ORD_2_def").Return(nil)
	ds.On("MarkOutboxEventFailed", mock.Anything, int64(1)).Return(nil)
	ds.On("MarkOutboxEventProcessed", mock.Anything, int64(2)).Return(nil)

	delivered, failed, err := service.DispatchPendingEvents(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, failed)
	ds.AssertExpectations(t)
	granter.AssertExpectations(t)
}

func TestDispatchPendingEvents_MarkingErrorDoesNotAbortBatch(t *testing.T) {
	service, ds, _, granter, _ := newTestService(t)

	events := []*model.OutboxEvent{
		pendingEvent(t, 1, model.CoursePurchased{BuyerID: "42", OrderRef: "ORD_1_abc", CourseID: "77"}),
		pendingEvent(t, 2, model.CoursePurchased{BuyerID: "43", OrderRef: "ORD_2_def", CourseID: "78"}),
	}

	ds.On("GetPendingOutboxEvents", mock.Anything, 10).Return(events, nil)
	granter.On("GrantCourse", mock.Anything, "42", "77", "ORD_1_abc").Return(nil)
	granter.On("GrantCourse", mock.Anything, "43", "78", "ORD_2_def").Return(nil)
	ds.On("MarkOutboxEventProcessed", mock.Anything, int64(1)).Return(errors.New("connection reset"))
	ds.On("MarkOutboxEventProcessed", mock.Anything, int64(2)).Return(nil)

	delivered, failed, err := service.DispatchPendingEvents(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, failed)
	ds.AssertExpectations(t)
}

func TestDispatchPendingEvents_EmptyBatch(t *testing.T) {
	service, ds, _, granter, _ := newTestService(t)

	ds.On("GetPendingOutboxEvents", mock.Anything, 10).Return([]*model.OutboxEvent{}, nil)

	delivered, failed, err := service.DispatchPendingEvents(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, failed)
	granter.AssertNotCalled(t, "GrantCourse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchPendingEvents_UnknownEventTypeFails(t *testing.T) {
	service, ds, _, _, _ := newTestService(t)

	event := pendingEvent(t, 1, model.CoursePurchased{BuyerID: "42", OrderRef: "ORD_1_abc", CourseID: "77"})
	event.EventType = "LEGACY_EVENT"

	ds.On("GetPendingOutboxEvents", mock.Anything, 10).Return([]*model.OutboxEvent{event}, nil)
	ds.On("MarkOutboxEventFailed", mock.Anything, int64(1)).Return(nil)

	delivered, failed, err := service.DispatchPendingEvents(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, failed)
	ds.AssertExpectations(t)
}
