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
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/database"
	"github.com/rpatechnologies/study-cafe-api/internal/cache"
	"github.com/rpatechnologies/study-cafe-api/internal/entitlement"
	"github.com/rpatechnologies/study-cafe-api/internal/gateway"
	redis_db "github.com/rpatechnologies/study-cafe-api/internal/redis-db"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// paymentGateway is the slice of the gateway adapter the order flow needs.
type paymentGateway interface {
	ResolveMerchantConfig(ctx context.Context) (*gateway.MerchantConfig, error)
	CreateRemoteOrder(ctx context.Context, orderRef string, amountMinor int64, currency string, notes map[string]string) (*gateway.RemoteOrder, error)
}

// entitlementGranter is the slice of the auth-service client the outbox
// dispatcher needs.
type entitlementGranter interface {
	GrantCourse(ctx context.Context, buyerID, courseID, orderRef string) error
	GrantMembership(ctx context.Context, buyerID, membershipType, orderRef string, startsAt, expiresAt time.Time) error
}

// StudyCafe represents the main struct for the order service. It owns the
// datasource, the redis client used for order locks, the payment gateway
// adapter, and the entitlement client, and is constructed once at startup.
type StudyCafe struct {
	redis        redis.UniversalClient
	datasource   database.IDataSource
	gateway      paymentGateway
	entitlements entitlementGranter
	lockTTL      time.Duration
	outboxBatch  int
}

// NewStudyCafe initializes a new instance of StudyCafe with the provided
// database datasource. It fetches the configuration and initializes the redis
// client, the credential cache, the gateway adapter, and the entitlement
// client.
func NewStudyCafe(db database.IDataSource) (*StudyCafe, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	credentialCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	gatewayAdapter, err := gateway.NewGateway(credentialCache)
	if err != nil {
		return nil, err
	}
	granter, err := entitlement.NewClient()
	if err != nil {
		return nil, err
	}
	newStudyCafe := &StudyCafe{
		datasource:   db,
		redis:        redisClient.Client(),
		gateway:      gatewayAdapter,
		entitlements: granter,
		lockTTL:      time.Duration(configuration.Order.LockTTLSec) * time.Second,
		outboxBatch:  configuration.Outbox.BatchSize,
	}
	return newStudyCafe, nil
}
