package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/postpilothq/postpilot/internal/models"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.publishPost(ctx, payload.PostID)
}

func (q *Queue) publishPost(ctx context.Context, postID string) error {
	post, err := q.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("publish task dropped: post is gone", "post_id", postID)
		return nil
	}
	if post.Status != models.PostStatusScheduled || !post.IsApproved {
		// Edited, unapproved, or already handled since this task was queued.
		slog.Info("publish task dropped: post is not publishable", "post_id", postID, "status", post.Status)
		return nil
	}
	if delay := time.Until(post.ScheduledAt); delay > 0 {
		// An edit moved the post later after this task was queued.
		slog.Info("publish task re-queued: scheduled time moved", "post_id", postID, "delay", delay.String())
		return q.enqueue(PublishPostPayload{PostID: postID}, delay)
	}

	accessToken, err := q.as.AccessToken(ctx, post.UserID)
	if err != nil {
		return q.reportFailure(ctx, postID, "no usable credential: "+err.Error())
	}

	externalPostID, err := q.pub.Publish(ctx, accessToken, post.Content)
	if err != nil {
		return q.reportFailure(ctx, postID, err.Error())
	}

	if _, err := q.ps.ReportPublishSuccess(ctx, postID, externalPostID); err != nil {
		slog.Info("publish outcome not recorded", "post_id", postID, "error", err.Error())
	}
	return nil
}

func (q *Queue) reportFailure(ctx context.Context, postID, message string) error {
	if _, err := q.ps.ReportPublishFailure(ctx, postID, message); err != nil {
		slog.Info("publish failure not recorded", "post_id", postID, "error", err.Error())
	}
	return nil
}
