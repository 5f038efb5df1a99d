package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The stubs embed their interface so only the methods the worker touches
// need an implementation; anything else panics loudly.

type stubPostRepo struct {
	repository.PostRepository
	post *models.Post
}

func (r *stubPostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if r.post == nil || r.post.ID != id {
		return nil, nil
	}
	cp := *r.post
	return &cp, nil
}

type outcome struct {
	postID  string
	detail  string
	success bool
}

type stubPostService struct {
	service.PostService
	outcomes  []outcome
	reportErr error
}

func (s *stubPostService) ReportPublishSuccess(ctx context.Context, postID, externalPostID string) (*models.Post, error) {
	s.outcomes = append(s.outcomes, outcome{postID: postID, detail: externalPostID, success: true})
	return nil, s.reportErr
}

func (s *stubPostService) ReportPublishFailure(ctx context.Context, postID, message string) (*models.Post, error) {
	s.outcomes = append(s.outcomes, outcome{postID: postID, detail: message})
	return nil, s.reportErr
}

type stubAccountService struct {
	service.AccountService
	token string
	err   error
}

func (s *stubAccountService) AccessToken(ctx context.Context, userID int64) (string, error) {
	return s.token, s.err
}

type stubPublisher struct {
	externalPostID string
	err            error
	calls          int
	lastToken      string
	lastContent    string
}

func (p *stubPublisher) Publish(ctx context.Context, accessToken, content string) (string, error) {
	p.calls++
	p.lastToken = accessToken
	p.lastContent = content
	if p.err != nil {
		return "", p.err
	}
	return p.externalPostID, nil
}

func scheduledPost() *models.Post {
	return &models.Post{
		ID:          "post-1",
		UserID:      7,
		Content:     "ship it",
		ScheduledAt: time.Now().Add(-time.Minute),
		IsApproved:  true,
		Status:      models.PostStatusScheduled,
	}
}

func newTestQueue(post *models.Post, as *stubAccountService, pub *stubPublisher) (*Queue, *stubPostService, *[]time.Duration) {
	ps := &stubPostService{}
	q := NewQueue(nil, &stubPostRepo{post: post}, ps, as, pub)

	requeues := &[]time.Duration{}
	q.enqueue = func(payload PublishPostPayload, delay time.Duration) error {
		*requeues = append(*requeues, delay)
		return nil
	}
	return q, ps, requeues
}

func TestPublishPostSuccess(t *testing.T) {
	pub := &stubPublisher{externalPostID: "1234567890"}
	q, ps, _ := newTestQueue(scheduledPost(), &stubAccountService{token: "access-1"}, pub)

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "access-1", pub.lastToken)
	assert.Equal(t, "ship it", pub.lastContent)
	require.Len(t, ps.outcomes, 1)
	assert.True(t, ps.outcomes[0].success)
	assert.Equal(t, "1234567890", ps.outcomes[0].detail)
}

func TestPublishPostGoneIsDropped(t *testing.T) {
	pub := &stubPublisher{}
	q, ps, _ := newTestQueue(nil, &stubAccountService{token: "access-1"}, pub)

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err)
	assert.Zero(t, pub.calls)
	assert.Empty(t, ps.outcomes)
}

func TestPublishPostNotPublishableIsDropped(t *testing.T) {
	for _, status := range []string{models.PostStatusUnapproved, models.PostStatusPosted, models.PostStatusFailed} {
		t.Run(status, func(t *testing.T) {
			post := scheduledPost()
			post.Status = status
			post.IsApproved = status != models.PostStatusUnapproved

			pub := &stubPublisher{}
			q, ps, _ := newTestQueue(post, &stubAccountService{token: "access-1"}, pub)

			err := q.publishPost(context.Background(), "post-1")

			require.NoError(t, err)
			assert.Zero(t, pub.calls)
			assert.Empty(t, ps.outcomes)
		})
	}
}

func TestPublishPostRescheduledIsRequeued(t *testing.T) {
	post := scheduledPost()
	post.ScheduledAt = time.Now().Add(time.Hour)

	pub := &stubPublisher{}
	q, ps, requeues := newTestQueue(post, &stubAccountService{token: "access-1"}, pub)

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err)
	assert.Zero(t, pub.calls, "a post moved later must not publish at the old time")
	assert.Empty(t, ps.outcomes)
	require.Len(t, *requeues, 1)
	assert.Greater(t, (*requeues)[0], 50*time.Minute)
}

func TestPublishPostNoCredentialMarksFailed(t *testing.T) {
	pub := &stubPublisher{}
	as := &stubAccountService{err: apperr.NotFound("no connected account")}
	q, ps, _ := newTestQueue(scheduledPost(), as, pub)

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err)
	assert.Zero(t, pub.calls)
	require.Len(t, ps.outcomes, 1)
	assert.False(t, ps.outcomes[0].success)
	assert.Contains(t, ps.outcomes[0].detail, "no usable credential")
}

func TestPublishPostPublisherErrorMarksFailed(t *testing.T) {
	pub := &stubPublisher{err: errors.New("duplicate content")}
	q, ps, _ := newTestQueue(scheduledPost(), &stubAccountService{token: "access-1"}, pub)

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err)
	require.Len(t, ps.outcomes, 1)
	assert.False(t, ps.outcomes[0].success)
	assert.Equal(t, "duplicate content", ps.outcomes[0].detail)
}

func TestPublishPostOutcomeConflictIsSwallowed(t *testing.T) {
	pub := &stubPublisher{externalPostID: "999"}
	q, ps, _ := newTestQueue(scheduledPost(), &stubAccountService{token: "access-1"}, pub)
	ps.reportErr = apperr.Conflict("post is not scheduled")

	err := q.publishPost(context.Background(), "post-1")

	require.NoError(t, err, "a lost outcome race must not requeue the task")
}

func TestHandlePublishPostTask(t *testing.T) {
	pub := &stubPublisher{externalPostID: "1234567890"}
	q, ps, _ := newTestQueue(scheduledPost(), &stubAccountService{token: "access-1"}, pub)

	payload, err := json.Marshal(PublishPostPayload{PostID: "post-1"})
	require.NoError(t, err)

	err = q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, payload))
	require.NoError(t, err)
	require.Len(t, ps.outcomes, 1)
}

func TestHandlePublishPostTaskBadPayload(t *testing.T) {
	q, _, _ := newTestQueue(nil, &stubAccountService{}, &stubPublisher{})

	err := q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	require.Error(t, err)
}
