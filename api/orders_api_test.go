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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	model2 "github.com/rpatechnologies/study-cafe-api/api/model"
	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/internal/request"
	"github.com/rpatechnologies/study-cafe-api/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return resp, nil
}

func setupRouter(cnf *config.Configuration) *gin.Engine {
	config.MockConfig(cnf)
	return NewAPI(nil).Router()
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(&config.Configuration{})

	var response string
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/",
		Router:   router,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "server running...", response)
}

func TestCreateOrder_MissingUserHeader(t *testing.T) {
	router := setupRouter(&config.Configuration{})

	payload, err := request.ToJsonReq(&model2.CreateOrder{
		Kind:     model.KindCourse,
		EntityID: "77",
		Amount:   decimal.NewFromFloat(499.00),
	})
	assert.NoError(t, err)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/orders/create",
		Router:   router,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	router := setupRouter(&config.Configuration{})

	tests := []struct {
		name    string
		payload model2.CreateOrder
	}{
		{
			name: "unsupported kind",
			payload: model2.CreateOrder{
				Kind:     "subscription",
				EntityID: "77",
				Amount:   decimal.NewFromFloat(499.00),
			},
		},
		{
			name: "missing entity",
			payload: model2.CreateOrder{
				Kind:   model.KindCourse,
				Amount: decimal.NewFromFloat(499.00),
			},
		},
		{
			name: "zero amount",
			payload: model2.CreateOrder{
				Kind:     model.KindCourse,
				EntityID: "77",
				Amount:   decimal.Zero,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := request.ToJsonReq(&tt.payload)
			assert.NoError(t, err)

			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Payload:  payload,
				Response: &response,
				Method:   "POST",
				Route:    "/orders/create",
				Router:   router,
				Header:   map[string]string{UserIDHeader: "42"},
			})
			assert.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestVerifyOrder_MissingFields(t *testing.T) {
	router := setupRouter(&config.Configuration{})

	payload, err := request.ToJsonReq(&model2.VerifyOrder{
		OrderRef: "ORD_1_abc",
		// no payment id or signature
	})
	assert.NoError(t, err)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/orders/verify",
		Router:   router,
		Header:   map[string]string{UserIDHeader: "42"},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetAllOrders_MissingUserHeader(t *testing.T) {
	router := setupRouter(&config.Configuration{})

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/orders",
		Router:   router,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSecretKeyAuth(t *testing.T) {
	router := setupRouter(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "service-secret"},
	})

	var response map[string]interface{}

	// Missing key is rejected.
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/orders",
		Router:   router,
		Header:   map[string]string{UserIDHeader: "42"},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// Wrong key is rejected.
	resp, err = SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/orders",
		Router:   router,
		Header:   map[string]string{UserIDHeader: "42", "X-Study-Cafe-Key": "wrong"},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// The health endpoint stays open for probes.
	var banner string
	resp, err = SetUpTestRequest(TestRequest{
		Response: &banner,
		Method:   "GET",
		Route:    "/",
		Router:   router,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
}
