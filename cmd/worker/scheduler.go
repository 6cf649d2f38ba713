package main

import (
	"github.com/rs/zerolog/log"

	"payment-reconciler/internal/infrastructure/queue"
	"payment-reconciler/pkg/container"
)

// asynqScheduler wraps queue.Scheduler with logging
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler creates the scheduler and registers the periodic sweep
func setupScheduler(c *container.Container) *asynqScheduler {
	scheduler := queue.NewScheduler(c.RedisClientOpt(), c.Config.Jobs)

	if err := scheduler.RegisterJobs(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed to register")
	}

	go func() {
		log.Info().Msg("[Scheduler] Starting...")
		if err := scheduler.Start(); err != nil {
			log.Error().Err(err).Msg("[Scheduler] Failed")
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	log.Info().Msg("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Info().Msg("[Scheduler] ✓ Stopped")
}
