package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Purchase kinds supported by the order service.
	KindCourse     = "course"
	KindMembership = "membership"

	// Order lifecycle statuses. An order only moves forward: pending -> paid.
	StatusPending = "pending"
	StatusPaid    = "paid"

	// Payment status written alongside a paid order.
	PaymentStatusCaptured = "captured"
)

// Order is a single purchase intent for a course or a membership.
type Order struct {
	ID            int64           `json:"-"`
	OrderRef      string          `json:"order_id"`
	BuyerID       string          `json:"user_id"`
	Kind          string          `json:"type"`
	EntityID      string          `json:"entity_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	RemoteOrderID string          `json:"remote_order_id,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Payment is the captured, signature-verified confirmation of an order.
type Payment struct {
	ID              int64           `json:"-"`
	OrderID         int64           `json:"-"`
	RemotePaymentID string          `json:"remote_payment_id"`
	Signature       string          `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Invoice is the read projection returned by the invoice endpoint.
type Invoice struct {
	OrderRef        string          `json:"order_id"`
	Kind            string          `json:"type"`
	EntityID        string          `json:"entity_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaidAt          time.Time       `json:"paid_at"`
	RemotePaymentID string          `json:"remote_payment_id,omitempty"`
}

// GenerateOrderRef generates an opaque order reference with a time-based
// prefix and a random suffix, e.g. ORD_1704067200000_9f86d081.
// References are never reused across retries.
func GenerateOrderRef() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("ORD_%d_%s", time.Now().UnixMilli(), suffix)
}

// IsValidKind reports whether kind is one of the supported purchase kinds.
func IsValidKind(kind string) bool {
	return kind == KindCourse || kind == KindMembership
}

// MinorUnits converts the order amount to integer minor currency units
// (e.g. paise for INR), which is what the payment gateway expects.
func (o *Order) MinorUnits() int64 {
	return o.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
