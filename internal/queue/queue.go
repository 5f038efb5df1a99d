package queue

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueuePost schedules a publish task for when the post's scheduled time
// arrives. Enqueueing the same post again is harmless; the worker re-checks
// the row before publishing.
func EnqueuePost(asynqClient *asynq.Client, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if delay < 0 {
		delay = 0
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)
	if _, err := asynqClient.Enqueue(task, asynq.ProcessIn(delay)); err != nil {
		return err
	}

	slog.Info("publish task scheduled", "post_id", payload.PostID, "delay", delay.String())
	return nil
}
