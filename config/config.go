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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5004"

	// Lock TTL for duplicate order suppression, in seconds. Short on purpose:
	// a crashed holder self-heals without manual intervention.
	DEFAULT_LOCK_TTL_SEC = 30

	DEFAULT_OUTBOX_POLL_SEC  = 5
	DEFAULT_OUTBOX_BATCH     = 10
	DEFAULT_MONITORING_PORT  = "5550"
	DEFAULT_GATEWAY_TIMEOUT  = 15
	DEFAULT_INTERNAL_TIMEOUT = 10
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"STUDYCAFE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"STUDYCAFE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"STUDYCAFE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"STUDYCAFE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"STUDYCAFE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"STUDYCAFE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"STUDYCAFE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"STUDYCAFE_REDIS_DNS"`
}

// GatewayConfig holds the payment gateway merchant credentials. When KeyID
// and KeySecret are set they win; otherwise credentials are fetched from the
// admin service and cached.
type GatewayConfig struct {
	KeyID      string `json:"key_id" envconfig:"STUDYCAFE_GATEWAY_KEY_ID"`
	KeySecret  string `json:"key_secret" envconfig:"STUDYCAFE_GATEWAY_KEY_SECRET"`
	Endpoint   string `json:"endpoint" envconfig:"STUDYCAFE_GATEWAY_ENDPOINT"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"STUDYCAFE_GATEWAY_TIMEOUT_SEC"`
}

// AdminServiceConfig points at the internal admin service that owns the
// merchant credential records.
type AdminServiceConfig struct {
	Url        string `json:"url" envconfig:"STUDYCAFE_ADMIN_SERVICE_URL"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"STUDYCAFE_ADMIN_SERVICE_TIMEOUT_SEC"`
}

// AuthServiceConfig points at the internal auth service that grants course
// access and activates memberships.
type AuthServiceConfig struct {
	Url        string `json:"url" envconfig:"STUDYCAFE_AUTH_SERVICE_URL"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"STUDYCAFE_AUTH_SERVICE_TIMEOUT_SEC"`
}

// OutboxConfig controls the dispatcher poll loop.
type OutboxConfig struct {
	PollIntervalSec int    `json:"poll_interval_sec" envconfig:"STUDYCAFE_OUTBOX_POLL_INTERVAL_SEC"`
	BatchSize       int    `json:"batch_size" envconfig:"STUDYCAFE_OUTBOX_BATCH_SIZE"`
	Queue           string `json:"queue" envconfig:"STUDYCAFE_OUTBOX_QUEUE"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"STUDYCAFE_OUTBOX_MONITORING_PORT"`
}

type OrderConfig struct {
	LockTTLSec int `json:"lock_ttl_sec" envconfig:"STUDYCAFE_ORDER_LOCK_TTL_SEC"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"STUDYCAFE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"STUDYCAFE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"STUDYCAFE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName    string             `json:"project_name" envconfig:"STUDYCAFE_PROJECT_NAME"`
	InternalAPIKey string             `json:"internal_api_key" envconfig:"STUDYCAFE_INTERNAL_API_KEY"`
	Server         ServerConfig       `json:"server"`
	DataSource     DataSourceConfig   `json:"data_source"`
	Redis          RedisConfig        `json:"redis"`
	Gateway        GatewayConfig      `json:"gateway"`
	AdminService   AdminServiceConfig `json:"admin_service"`
	AuthService    AuthServiceConfig  `json:"auth_service"`
	Outbox         OutboxConfig       `json:"outbox"`
	Order          OrderConfig        `json:"order"`
	Notification   Notification       `json:"notification"`
	RateLimit      RateLimitConfig    `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("studycafe", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called study-cafe.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Study Cafe Orders"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.AdminService.Url = strings.TrimSuffix(strings.TrimSpace(cnf.AdminService.Url), "/")
	cnf.AuthService.Url = strings.TrimSuffix(strings.TrimSpace(cnf.AuthService.Url), "/")

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Gateway.Endpoint == "" {
		cnf.Gateway.Endpoint = "https://api.razorpay.com/v1"
	}
	if cnf.Gateway.TimeoutSec <= 0 {
		cnf.Gateway.TimeoutSec = DEFAULT_GATEWAY_TIMEOUT
	}
	if cnf.AdminService.TimeoutSec <= 0 {
		cnf.AdminService.TimeoutSec = 5
	}
	if cnf.AuthService.TimeoutSec <= 0 {
		cnf.AuthService.TimeoutSec = DEFAULT_INTERNAL_TIMEOUT
	}

	if cnf.Order.LockTTLSec <= 0 {
		cnf.Order.LockTTLSec = DEFAULT_LOCK_TTL_SEC
	}

	if cnf.Outbox.PollIntervalSec <= 0 {
		cnf.Outbox.PollIntervalSec = DEFAULT_OUTBOX_POLL_SEC
	}
	if cnf.Outbox.BatchSize <= 0 {
		cnf.Outbox.BatchSize = DEFAULT_OUTBOX_BATCH
	}
	if cnf.Outbox.Queue == "" {
		cnf.Outbox.Queue = "outbox"
	}
	if cnf.Outbox.MonitoringPort == "" {
		cnf.Outbox.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyTestDefaults()
	ConfigStore.Store(mockConfig)
}

func (cnf *Configuration) applyTestDefaults() {
	if cnf.Order.LockTTLSec <= 0 {
		cnf.Order.LockTTLSec = DEFAULT_LOCK_TTL_SEC
	}
	if cnf.Outbox.BatchSize <= 0 {
		cnf.Outbox.BatchSize = DEFAULT_OUTBOX_BATCH
	}
	if cnf.Outbox.PollIntervalSec <= 0 {
		cnf.Outbox.PollIntervalSec = DEFAULT_OUTBOX_POLL_SEC
	}
	if cnf.Gateway.Endpoint == "" {
		cnf.Gateway.Endpoint = "https://api.razorpay.com/v1"
	}
	if cnf.Gateway.TimeoutSec <= 0 {
		cnf.Gateway.TimeoutSec = DEFAULT_GATEWAY_TIMEOUT
	}
	if cnf.AuthService.TimeoutSec <= 0 {
		cnf.AuthService.TimeoutSec = DEFAULT_INTERNAL_TIMEOUT
	}
	if cnf.AdminService.TimeoutSec <= 0 {
		cnf.AdminService.TimeoutSec = 5
	}
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
