package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/shared"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/logger"
)

// Registrar is the part of asynq.Scheduler used to register periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisOpt asynq.RedisClientOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterJobs() error {
	return RegisterStaleSweep(s.scheduler, s.jobConfig)
}

// ================================================
// JOB: Reconcile stale PENDING orders
// ================================================
// Webhooks get lost or deferred; the sweep asks the gateway directly.
func RegisterStaleSweep(r Registrar, jobConfig config.JobConfig) error {
	task, err := utils.MarshalTask(shared.TypePaymentReconcileStale, shared.ReconcileStalePayload{
		OlderThan: jobConfig.StalePendingAge,
		Limit:     jobConfig.StaleSweepBatch,
	})
	if err != nil {
		return err
	}

	_, err = r.Register(
		jobConfig.StaleSweepCron,
		task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(0), // next tick retries anyway
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register ReconcileStale job", err)
		return fmt.Errorf("register stale sweep: %w", err)
	}

	logger.Info("✓ Registered ReconcileStale", map[string]interface{}{
		"cron":       jobConfig.StaleSweepCron,
		"older_than": jobConfig.StalePendingAge.String(),
		"batch":      jobConfig.StaleSweepBatch,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
