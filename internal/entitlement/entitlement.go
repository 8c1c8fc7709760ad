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

// Package entitlement calls the auth service to grant course access and
// activate memberships after a payment is verified. Grants are idempotent on
// the auth-service side, so redelivering the same event is harmless.
package entitlement

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/internal/request"
)

type grantCourseRequest struct {
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
	OrderID  string `json:"orderId"`
}

type grantMembershipRequest struct {
	UserID         string `json:"userId"`
	MembershipType string `json:"membershipType"`
	OrderID        string `json:"orderId"`
	StartsAt       string `json:"startsAt"`
	ExpiresAt      string `json:"expiresAt"`
}

// Client talks to the auth service over the internal trusted channel.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewClient builds a Client from the loaded configuration.
func NewClient() (*Client, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if cnf.AuthService.Url == "" {
		return nil, errors.New("auth service URL is not configured")
	}
	return &Client{
		baseURL: cnf.AuthService.Url,
		apiKey:  cnf.InternalAPIKey,
		timeout: time.Duration(cnf.AuthService.TimeoutSec) * time.Second,
	}, nil
}

// GrantCourse gives the buyer access to the purchased course.
func (c *Client) GrantCourse(ctx context.Context, buyerID, courseID, orderRef string) error {
	return c.post(ctx, "/access/grant-course", grantCourseRequest{
		UserID:   buyerID,
		CourseID: courseID,
		OrderID:  orderRef,
	})
}

// GrantMembership activates the buyer's membership for the given window.
func (c *Client) GrantMembership(ctx context.Context, buyerID, membershipType, orderRef string, startsAt, expiresAt time.Time) error {
	return c.post(ctx, "/access/grant-membership", grantMembershipRequest{
		UserID:         buyerID,
		MembershipType: membershipType,
		OrderID:        orderRef,
		StartsAt:       startsAt.UTC().Format(time.RFC3339),
		ExpiresAt:      expiresAt.UTC().Format(time.RFC3339),
	})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := request.ToJsonReq(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, path), payload)
	if err != nil {
		return err
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	var response map[string]interface{}
	resp, err := request.Call(req, c.timeout, &response)
	if err != nil {
		return errors.Wrapf(err, "auth service call %s failed", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("auth service call %s returned status %d", path, resp.StatusCode)
	}
	return nil
}
