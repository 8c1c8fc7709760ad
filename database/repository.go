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

	"github.com/rpatechnologies/study-cafe-api/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	order  // Interface for order and payment operations
	outbox // Interface for outbox event operations
}

// order defines methods for handling orders and their payments.
type order interface {
	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)                                             // Records a new pending order
	SetRemoteOrderID(ctx context.Context, orderRef string, remoteOrderID string) error                                     // Attaches the gateway order id, set-once
	GetOrderByRef(ctx context.Context, orderRef string, buyerID string) (*model.Order, error)                              // Retrieves a buyer's order by reference
	GetAllOrders(ctx context.Context, buyerID string, limit, offset int) ([]model.Order, error)                            // Retrieves a buyer's orders, newest first
	GetInvoice(ctx context.Context, orderRef string, buyerID string) (*model.Invoice, error)                               // Retrieves the invoice projection for a paid order
	MarkOrderPaid(ctx context.Context, order *model.Order, payment *model.Payment, event *model.OutboxEvent) (bool, error) // Atomically records the paid transition; true when already recorded
}

// outbox defines methods for handling outbox events.
type outbox interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) // Retrieves pending events, oldest first
	MarkOutboxEventProcessed(ctx context.Context, id int64) error                        // Terminates an event as delivered
	MarkOutboxEventFailed(ctx context.Context, id int64) error                           // Terminates an event as failed
}
