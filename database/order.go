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
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/rpatechnologies/study-cafe-api/internal/apierror"
	"github.com/rpatechnologies/study-cafe-api/model"
)

// CreateOrder records a new pending order and returns it with its reference
// and timestamps populated.
func (d Datasource) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	order.OrderRef = model.GenerateOrderRef()
	order.Status = model.StatusPending
	order.CreatedAt = time.Now()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO orders (order_ref, buyer_id, kind, entity_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, order.OrderRef, order.BuyerID, order.Kind, order.EntityID, order.Amount, order.Currency, order.Status, order.CreatedAt).Scan(&order.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Order with this reference already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create order", err)
	}

	return order, nil
}

// SetRemoteOrderID attaches the gateway order id to an order. It only writes
// when the column is still empty so a stale retry can never overwrite the id
// a verification may already be in flight against.
func (d Datasource) SetRemoteOrderID(ctx context.Context, orderRef string, remoteOrderID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET remote_order_id = $2
		WHERE order_ref = $1 AND remote_order_id IS NULL
	`, orderRef, remoteOrderID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "Order already has a gateway order id", nil)
	}
	return nil
}

// GetOrderByRef retrieves an order by its reference, scoped to the buyer so
// one user can never read another user's order.
func (d Datasource) GetOrderByRef(ctx context.Context, orderRef string, buyerID string) (*model.Order, error) {
	order := model.Order{}
	var remoteOrderID sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, order_ref, buyer_id, kind, entity_id, amount, currency, remote_order_id, status, created_at
		FROM orders
		WHERE order_ref = $1 AND buyer_id = $2
	`, orderRef, buyerID)

	err := row.Scan(&order.ID, &order.OrderRef, &order.BuyerID, &order.Kind, &order.EntityID, &order.Amount, &order.Currency, &remoteOrderID, &order.Status, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Order not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}
	order.RemoteOrderID = remoteOrderID.String

	return &order, nil
}

// GetAllOrders retrieves a buyer's orders, newest first.
func (d Datasource) GetAllOrders(ctx context.Context, buyerID string, limit, offset int) ([]model.Order, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, order_ref, buyer_id, kind, entity_id, amount, currency, remote_order_id, status, created_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, buyerID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve orders", err)
	}
	defer rows.Close()

	orders := []model.Order{}

	for rows.Next() {
		order := model.Order{}
		var remoteOrderID sql.NullString
		err = rows.Scan(&order.ID, &order.OrderRef, &order.BuyerID, &order.Kind, &order.EntityID, &order.Amount, &order.Currency, &remoteOrderID, &order.Status, &order.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
		}
		order.RemoteOrderID = remoteOrderID.String
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over orders", err)
	}

	return orders, nil
}

// GetInvoice retrieves the invoice projection for a paid order, joining the
// captured payment.
func (d Datasource) GetInvoice(ctx context.Context, orderRef string, buyerID string) (*model.Invoice, error) {
	invoice := model.Invoice{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT o.order_ref, o.kind, o.entity_id, o.amount, o.currency, o.status, p.remote_payment_id, p.created_at
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		WHERE o.order_ref = $1 AND o.buyer_id = $2 AND o.status = 'paid'
	`, orderRef, buyerID)

	err := row.Scan(&invoice.OrderRef, &invoice.Kind, &invoice.EntityID, &invoice.Amount, &invoice.Currency, &invoice.Status, &invoice.RemotePaymentID, &invoice.PaidAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Invoice not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve invoice", err)
	}

	return &invoice, nil
}

// MarkOrderPaid records a verified payment in a single transaction: the order
// flips to paid, the payment row is inserted, and the entitlement outbox
// event is written. Either all three land or none do.
//
// It returns true (with no error) when the transition was already recorded by
// a concurrent attempt: the status guard matches no rows, or the payment
// insert hits a unique violation. Verification is idempotent at this layer.
func (d Datasource) MarkOrderPaid(ctx context.Context, order *model.Order, payment *model.Payment, event *model.OutboxEvent) (bool, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2
		WHERE id = $1 AND status = $3
	`, order.ID, model.StatusPaid, model.StatusPending)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order status", err)
	}
	if rows == 0 {
		// Another verification already won; nothing left to record.
		return true, nil
	}

	payment.OrderID = order.ID
	payment.Status = model.PaymentStatusCaptured
	payment.CreatedAt = time.Now()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, remote_payment_id, signature, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, payment.OrderID, payment.RemotePaymentID, payment.Signature, payment.Amount, payment.Status, payment.CreatedAt).Scan(&payment.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record payment", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, event.AggregateType, event.AggregateID, event.EventType, []byte(event.Payload), model.OutboxStatusPending)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record outbox event", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit payment transaction", err)
	}

	order.Status = model.StatusPaid
	return false, nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code.Name() == "unique_violation"
}
