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

// Package gateway talks to the payment gateway on behalf of the order
// service: it resolves the merchant credentials (static config first, then
// the admin service with a cached copy) and creates remote payment intents.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/internal/cache"
	"github.com/rpatechnologies/study-cafe-api/internal/request"
)

// ErrNotConfigured is returned when no merchant credentials can be resolved.
// Callers surface it as a service-unavailable condition, not a client error.
var ErrNotConfigured = errors.New("payment gateway not configured")

const (
	merchantConfigKey = "gateway:merchant-config"
	merchantConfigTTL = 10 * time.Minute
)

// MerchantConfig holds the gateway credentials. KeyID doubles as the public
// key handed to clients to complete checkout; KeySecret signs callbacks.
type MerchantConfig struct {
	KeyID     string `json:"key_id"`
	KeySecret string `json:"key_secret"`
}

// RemoteOrder is the gateway's record of a created payment intent.
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Gateway is the payment gateway adapter.
type Gateway struct {
	endpoint string
	timeout  time.Duration
	cache    cache.Cache
}

// NewGateway builds a Gateway from the loaded configuration. The cache keeps
// admin-service credential lookups warm so the credentials are effectively
// fetched once and reused.
func NewGateway(ca cache.Cache) (*Gateway, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Gateway{
		endpoint: cnf.Gateway.Endpoint,
		timeout:  time.Duration(cnf.Gateway.TimeoutSec) * time.Second,
		cache:    ca,
	}, nil
}

// ResolveMerchantConfig returns the merchant credentials. Static credentials
// from the service config win; otherwise the cached admin-service copy is
// used, and only on a cache miss is the admin service actually called.
func (g *Gateway) ResolveMerchantConfig(ctx context.Context) (*MerchantConfig, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if cnf.Gateway.KeyID != "" && cnf.Gateway.KeySecret != "" {
		return &MerchantConfig{KeyID: cnf.Gateway.KeyID, KeySecret: cnf.Gateway.KeySecret}, nil
	}

	if cnf.AdminService.Url == "" {
		return nil, ErrNotConfigured
	}

	if g.cache != nil {
		var cached MerchantConfig
		if err := g.cache.Get(ctx, merchantConfigKey, &cached); err == nil && cached.KeyID != "" && cached.KeySecret != "" {
			return &cached, nil
		}
	}

	fetched, err := g.fetchMerchantConfig(ctx, cnf)
	if err != nil {
		logrus.Errorf("failed to fetch merchant config from admin service: %v", err)
		return nil, ErrNotConfigured
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, merchantConfigKey, fetched, merchantConfigTTL); err != nil {
			logrus.Warnf("failed to cache merchant config: %v", err)
		}
	}
	return fetched, nil
}

// fetchMerchantConfig calls the admin service's internal payment-config
// endpoint, retrying transient failures with exponential backoff.
func (g *Gateway) fetchMerchantConfig(ctx context.Context, cnf *config.Configuration) (*MerchantConfig, error) {
	timeout := time.Duration(cnf.AdminService.TimeoutSec) * time.Second
	url := fmt.Sprintf("%s/internal/payment-config", cnf.AdminService.Url)

	var merchant MerchantConfig
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Internal-API-Key", cnf.InternalAPIKey)

		resp, err := request.Call(req, timeout, &merchant)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("admin service returned status %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	if merchant.KeyID == "" || merchant.KeySecret == "" {
		return nil, errors.New("admin service returned empty merchant credentials")
	}
	return &merchant, nil
}

// CreateRemoteOrder creates a payment intent at the gateway for the given
// amount in minor currency units. The order reference travels as the receipt
// so gateway dashboards can be reconciled against local orders.
func (g *Gateway) CreateRemoteOrder(ctx context.Context, orderRef string, amountMinor int64, currency string, notes map[string]string) (*RemoteOrder, error) {
	merchant, err := g.ResolveMerchantConfig(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := request.ToJsonReq(&createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  orderRef,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/orders", g.endpoint), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(merchant.KeyID, merchant.KeySecret))

	var remote RemoteOrder
	resp, err := request.Call(req, g.timeout, &remote)
	if err != nil {
		return nil, errors.Wrap(err, "gateway order creation failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("gateway order creation returned status %d", resp.StatusCode)
	}
	if remote.ID == "" {
		return nil, errors.New("gateway returned an order without an id")
	}
	return &remote, nil
}
