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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/internal/notification"
	redis_db "github.com/rpatechnologies/study-cafe-api/internal/redis-db"
)

// pollOutbox drains one batch of pending entitlement events. It is invoked by
// the scheduler on a fixed interval; returning an error pushes the task back
// for asynq's retry handling.
func (b *serviceInstance) pollOutbox(ctx context.Context, t *asynq.Task) error {
	delivered, failed, err := b.service.DispatchPendingEvents(ctx)
	if err != nil {
		logrus.Errorf("outbox poll failed: %v", err)
		return err
	}
	if delivered > 0 || failed > 0 {
		log.Printf(" [*] Outbox poll done: %d delivered, %d failed", delivered, failed)
	}
	return nil
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{conf.Outbox.Queue: 1},
		},
	), nil
}

// initializeScheduler registers the periodic outbox poll. Events are drained
// on a fixed interval; the enqueued task carries no payload.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		&asynq.SchedulerOpts{},
	)

	interval := time.Duration(conf.Outbox.PollIntervalSec) * time.Second
	_, err = scheduler.Register(
		fmt.Sprintf("@every %s", interval),
		asynq.NewTask(conf.Outbox.Queue, nil),
		asynq.Queue(conf.Outbox.Queue),
	)
	if err != nil {
		return nil, fmt.Errorf("error registering outbox poll: %v", err)
	}
	return scheduler, nil
}

// workerCommands defines the "workers" command that runs the outbox
// dispatcher: an immediate poll at startup, then scheduled polls on the
// configured interval, with asynqmon exposed for monitoring.
func workerCommands(b *serviceInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start the outbox dispatcher",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// Load configuration
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			// Initialize worker server
			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(conf.Outbox.Queue, b.pollOutbox)

			// Initialize the periodic poll scheduler
			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			// Start asynqmon HTTP server in a new goroutine
			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Outbox.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			// Immediate poll so paid orders are not stuck waiting for the
			// first scheduled tick after a restart.
			go func() {
				if _, _, err := b.service.DispatchPendingEvents(ctx); err != nil {
					notification.NotifyError(err)
				}
			}()

			// Start the scheduler in a new goroutine
			go func() {
				if err := scheduler.Run(); err != nil {
					log.Fatalf("could not run scheduler: %v", err)
				}
			}()

			// Start worker server
			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
