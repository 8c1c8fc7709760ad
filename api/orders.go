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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/rpatechnologies/study-cafe-api/api/model"
	"github.com/rpatechnologies/study-cafe-api/internal/apierror"
)

// UserIDHeader carries the authenticated buyer id. The API gateway strips it
// from inbound traffic and sets it after validating the session, so its
// presence is trusted here.
const UserIDHeader = "X-User-Id"

func (a Api) buyerID(c *gin.Context) (string, bool) {
	buyerID := c.GetHeader(UserIDHeader)
	if buyerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return "", false
	}
	return buyerID, true
}

// CreateOrder handles the creation of a new purchase order.
// It binds the incoming JSON request to a CreateOrder object, validates it,
// and opens the order locally and at the payment gateway.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the order.
// - 401 Unauthorized: If the user identity header is missing.
// - 429 Too Many Requests: If the same purchase is already in progress.
// - 503 Service Unavailable: If payments are not configured.
// - 201 Created: If the order is successfully created.
func (a Api) CreateOrder(c *gin.Context) {
	buyerID, ok := a.buyerID(c)
	if !ok {
		return
	}

	var newOrder model2.CreateOrder
	if err := c.ShouldBindJSON(&newOrder); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newOrder.ValidateCreateOrder(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.service.CreateOrder(c.Request.Context(), buyerID, newOrder.Kind, newOrder.EntityID, newOrder.Amount, newOrder.Currency)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyOrder handles a gateway payment confirmation for an order.
//
// Responses:
// - 400 Bad Request: If the payload is invalid or the signature does not match.
// - 401 Unauthorized: If the user identity header is missing.
// - 404 Not Found: If the order does not exist for this buyer.
// - 200 OK: If the payment is verified (including replays of paid orders).
func (a Api) VerifyOrder(c *gin.Context) {
	buyerID, ok := a.buyerID(c)
	if !ok {
		return
	}

	var verification model2.VerifyOrder
	if err := c.ShouldBindJSON(&verification); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := verification.ValidateVerifyOrder(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.service.VerifyOrder(c.Request.Context(), buyerID, verification.OrderRef, verification.RemoteOrderID, verification.RemotePaymentID, verification.Signature)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": resp})
}

// GetAllOrders retrieves the calling buyer's orders, newest first.
//
// Responses:
// - 401 Unauthorized: If the user identity header is missing.
// - 200 OK: The order list (possibly empty).
func (a Api) GetAllOrders(c *gin.Context) {
	buyerID, ok := a.buyerID(c)
	if !ok {
		return
	}

	resp, err := a.service.GetAllOrders(c.Request.Context(), buyerID, 20, 0)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetInvoice retrieves the invoice for one of the buyer's paid orders.
//
// Responses:
// - 401 Unauthorized: If the user identity header is missing.
// - 404 Not Found: If the order is missing or not paid.
// - 200 OK: The invoice.
func (a Api) GetInvoice(c *gin.Context) {
	buyerID, ok := a.buyerID(c)
	if !ok {
		return
	}

	orderRef, passed := c.Params.Get("order_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required. pass id in the route /:order_id"})
		return
	}

	resp, err := a.service.GetInvoice(c.Request.Context(), buyerID, orderRef)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
