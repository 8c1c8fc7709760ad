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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rpatechnologies/study-cafe-api/internal/apierror"
	"github.com/rpatechnologies/study-cafe-api/internal/gateway"
	redlock "github.com/rpatechnologies/study-cafe-api/internal/lock"
	"github.com/rpatechnologies/study-cafe-api/model"
)

var (
	tracer = otel.Tracer("studycafe.orders")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// OrderIntent is what a client needs to complete checkout against the
// gateway: the local reference, the gateway order id, the charge amount in
// minor units, and the merchant public key.
type OrderIntent struct {
	OrderRef      string `json:"order_id"`
	RemoteOrderID string `json:"remote_order_id"`
	AmountMinor   int64  `json:"amount"`
	Currency      string `json:"currency"`
	PublicKey     string `json:"key"`
}

func (s *StudyCafe) acquireOrderLock(ctx context.Context, buyerID, kind, entityID string) (*redlock.Locker, bool, error) {
	key := fmt.Sprintf("order:lock:%s:%s:%s", buyerID, kind, entityID)
	locker := redlock.NewLocker(s.redis, key, uuid.New().String())
	acquired, err := locker.Acquire(ctx, s.lockTTL)
	if err != nil {
		return nil, false, err
	}
	return locker, acquired, nil
}

// CreateOrder records a pending purchase intent and opens a matching order at
// the payment gateway. A per-(buyer, kind, entity) redis lock rejects
// concurrent attempts for the same purchase instead of queuing them.
//
// If the gateway call fails after the local insert, the pending order is left
// behind; it is inert and a fresh attempt gets a fresh reference.
func (s *StudyCafe) CreateOrder(ctx context.Context, buyerID, kind, entityID string, amount decimal.Decimal, currency string) (*OrderIntent, error) {
	ctx, span := tracer.Start(ctx, "Creating order")
	defer span.End()

	if buyerID == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Buyer is required", nil)
	}
	if !model.IsValidKind(kind) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid purchase type %q", kind), nil)
	}
	if entityID == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Entity id is required", nil)
	}
	if !amount.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Amount must be greater than zero", nil)
	}
	if currency == "" {
		currency = "INR"
	}

	locker, acquired, err := s.acquireOrderLock(ctx, buyerID, kind, entityID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire order lock", logAndRecordError(span, "lock error ", err))
	}
	if !acquired {
		return nil, apierror.NewAPIError(apierror.ErrTooManyRequests, "A purchase for this item is already in progress", nil)
	}
	defer func() {
		if err := locker.Release(context.Background()); err != nil {
			logrus.Errorf("failed to release order lock: %v", err)
		}
	}()

	order := &model.Order{
		BuyerID:  buyerID,
		Kind:     kind,
		EntityID: entityID,
		Amount:   amount,
		Currency: currency,
	}
	order, err = s.datasource.CreateOrder(ctx, order)
	if err != nil {
		return nil, logAndRecordError(span, "ERROR saving order to db. ", err)
	}

	remote, err := s.gateway.CreateRemoteOrder(ctx, order.OrderRef, order.MinorUnits(), order.Currency, map[string]string{
		"orderId": order.OrderRef,
		"userId":  buyerID,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			return nil, apierror.NewAPIError(apierror.ErrServiceUnavailable, "Payments are not configured", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create gateway order", logAndRecordError(span, "gateway order error ", err))
	}

	if err := s.datasource.SetRemoteOrderID(ctx, order.OrderRef, remote.ID); err != nil {
		return nil, logAndRecordError(span, "ERROR saving gateway order id. ", err)
	}

	merchant, err := s.gateway.ResolveMerchantConfig(ctx)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrServiceUnavailable, "Payments are not configured", err)
	}

	return &OrderIntent{
		OrderRef:      order.OrderRef,
		RemoteOrderID: remote.ID,
		AmountMinor:   order.MinorUnits(),
		Currency:      order.Currency,
		PublicKey:     merchant.KeyID,
	}, nil
}

// VerifyOrder validates a gateway payment confirmation and reconciles the
// order. The signature check happens before any database read or write;
// nothing mutates on a bad signature. The paid transition itself is a single
// transaction and replays report success without writing twice.
func (s *StudyCafe) VerifyOrder(ctx context.Context, buyerID, orderRef, remoteOrderID, remotePaymentID, signature string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "Verifying payment")
	defer span.End()

	if buyerID == "" || orderRef == "" || remoteOrderID == "" || remotePaymentID == "" || signature == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Missing payment verification fields", nil)
	}

	merchant, err := s.gateway.ResolveMerchantConfig(ctx)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Payment verification is not configured", err)
	}

	if !model.VerifySignature(remoteOrderID, remotePaymentID, merchant.KeySecret, signature) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid payment signature", nil)
	}

	order, err := s.datasource.GetOrderByRef(ctx, orderRef, buyerID)
	if err != nil {
		return nil, err
	}

	if order.Status == model.StatusPaid {
		// Verified twice; the first attempt already recorded everything.
		return order, nil
	}

	payload, err := s.entitlementPayload(order)
	if err != nil {
		return nil, logAndRecordError(span, "payload error ", err)
	}
	event, err := model.NewOutboxEvent(order.OrderRef, payload)
	if err != nil {
		return nil, logAndRecordError(span, "outbox event error ", err)
	}

	payment := &model.Payment{
		RemotePaymentID: remotePaymentID,
		Signature:       signature,
		Amount:          order.Amount,
	}

	alreadyProcessed, err := s.datasource.MarkOrderPaid(ctx, order, payment, event)
	if err != nil {
		return nil, logAndRecordError(span, "ERROR recording payment. ", err)
	}
	if alreadyProcessed {
		logrus.Infof("order %s already reconciled, treating verification as replay", order.OrderRef)
	}
	order.Status = model.StatusPaid
	return order, nil
}

// entitlementPayload builds the outbox payload for an order. Membership
// purchases activate a one-year window starting at verification time.
func (s *StudyCafe) entitlementPayload(order *model.Order) (model.EventPayload, error) {
	switch order.Kind {
	case model.KindCourse:
		return model.CoursePurchased{
			BuyerID:  order.BuyerID,
			OrderRef: order.OrderRef,
			CourseID: order.EntityID,
		}, nil
	case model.KindMembership:
		startsAt := time.Now().UTC()
		return model.MembershipActivated{
			BuyerID:        order.BuyerID,
			OrderRef:       order.OrderRef,
			MembershipType: model.MembershipTypeAnnual,
			StartsAt:       startsAt,
			ExpiresAt:      startsAt.AddDate(1, 0, 0),
		}, nil
	default:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid purchase type %q", order.Kind), nil)
	}
}

// GetAllOrders retrieves a buyer's orders, newest first.
func (s *StudyCafe) GetAllOrders(ctx context.Context, buyerID string, limit, offset int) ([]model.Order, error) {
	return s.datasource.GetAllOrders(ctx, buyerID, limit, offset)
}

// GetInvoice retrieves the invoice for a paid order.
func (s *StudyCafe) GetInvoice(ctx context.Context, buyerID, orderRef string) (*model.Invoice, error) {
	return s.datasource.GetInvoice(ctx, orderRef, buyerID)
}
