package queue

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/service"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}

type Queue struct {
	pr      repository.PostRepository
	ps      service.PostService
	as      service.AccountService
	pub     service.Publisher
	enqueue func(payload PublishPostPayload, delay time.Duration) error
}

func NewQueue(
	asynqClient *asynq.Client,
	pr repository.PostRepository,
	ps service.PostService,
	as service.AccountService,
	pub service.Publisher) *Queue {
	return &Queue{
		pr:  pr,
		ps:  ps,
		as:  as,
		pub: pub,
		enqueue: func(payload PublishPostPayload, delay time.Duration) error {
			return EnqueuePost(asynqClient, payload, delay)
		},
	}
}
