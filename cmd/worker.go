package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"imgtasks/internal/app"
	"imgtasks/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the Asynq worker process that consumes resize jobs and reconciles task state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return runWorker(appInstance)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	srv := asynq.NewServer(
		appInstance.AsynqRedisOpt(),
		asynq.Config{
			Concurrency:    cfg.Worker.Concurrency,
			Queues:         cfg.Worker.Queues,
			RetryDelayFunc: exponentialBackoff(cfg.Queue.BackoffBase, cfg.Queue.BackoffCap),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				log.WithError(err).WithFields(log.Fields{
					"type":    task.Type(),
					"payload": string(task.Payload()),
					"retried": retried,
				}).Error("job failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.ResizeDeps{
		Service:     appInstance.TaskService,
		Transformer: appInstance.Transformer,
		Artifacts:   appInstance.Artifacts,
		WorkerID:    app.WorkerID(),
	})

	log.WithFields(log.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queues":      cfg.Worker.Queues,
	}).Info("starting worker server")
	if err := srv.Start(mux); err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutdown signal received, stopping worker")
	srv.Stop()
	srv.Shutdown()
	log.Info("worker shutdown complete")
	return nil
}

// exponentialBackoff doubles the delay on every attempt, starting at base
// and never exceeding cap.
func exponentialBackoff(base, cap time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		delay := base
		for i := 0; i < n && delay < cap; i++ {
			delay *= 2
		}
		if delay > cap {
			delay = cap
		}
		return delay
	}
}
