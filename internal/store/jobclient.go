package store

// AsynqJobClient is the concrete JobClient producing resize jobs with
// at-least-once delivery. Bounded attempts come from asynq.MaxRetry; the
// backoff curve between attempts is configured on the worker server side.
// Jobs that exhaust their attempts land in Asynq's archive rather than being
// dropped, so an operator can inspect and requeue them.

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"imgtasks/internal/tasks"
)

var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client   *asynq.Client
	maxRetry int
}

func NewAsynqJobClient(redisOpt asynq.RedisClientOpt, maxRetry int) *AsynqJobClient {
	return &AsynqJobClient{
		client:   asynq.NewClient(redisOpt),
		maxRetry: maxRetry,
	}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// EnqueueResizeJob produces one job referencing a task.
func (jc *AsynqJobClient) EnqueueResizeJob(ctx context.Context, taskID, sourceLocation string) error {
	task, err := tasks.NewResizeTask(taskID, sourceLocation)
	if err != nil {
		return err
	}
	info, err := jc.client.EnqueueContext(ctx, task,
		asynq.Queue(tasks.QueueResize),
		asynq.MaxRetry(jc.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue resize job for task %s: %w", taskID, err)
	}
	log.WithFields(log.Fields{
		"task_id": taskID,
		"job_id":  info.ID,
		"queue":   info.Queue,
	}).Debug("enqueued resize job")
	return nil
}
