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
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/rpatechnologies/study-cafe-api/model"
)

// CreateOrder is the request body for opening a purchase order.
type CreateOrder struct {
	Kind     string          `json:"type"`
	EntityID string          `json:"entity_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// VerifyOrder is the request body for confirming a gateway payment.
type VerifyOrder struct {
	OrderRef        string `json:"order_id"`
	RemoteOrderID   string `json:"remote_order_id"`
	RemotePaymentID string `json:"remote_payment_id"`
	Signature       string `json:"signature"`
}

func (o *CreateOrder) ValidateCreateOrder() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Kind, validation.Required, validation.In(model.KindCourse, model.KindMembership)),
		validation.Field(&o.EntityID, validation.Required),
		validation.Field(&o.Amount, validation.Required, validation.By(positiveAmount)),
	)
}

func (v *VerifyOrder) ValidateVerifyOrder() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.OrderRef, validation.Required),
		validation.Field(&v.RemoteOrderID, validation.Required),
		validation.Field(&v.RemotePaymentID, validation.Required),
		validation.Field(&v.Signature, validation.Required),
	)
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok || !amount.IsPositive() {
		return validation.NewError("validation_amount", "amount must be greater than zero")
	}
	return nil
}
