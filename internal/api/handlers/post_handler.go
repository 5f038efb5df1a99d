package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/queue"
	"github.com/postpilothq/postpilot/internal/service"
	"github.com/postpilothq/postpilot/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	AsynqClient *asynq.Client
}

func NewPostHandler(service service.PostService, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: service, AsynqClient: asynqClient}
}

// schedule queues the publish task for a post that is ready to go out.
func (h *PostHandler) schedule(post *models.Post) {
	if post.Status != models.PostStatusScheduled {
		return
	}
	payload := queue.PublishPostPayload{PostID: post.ID}
	_ = queue.EnqueuePost(h.AsynqClient, payload, time.Until(post.ScheduledAt))
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	var req transfer.ManualPostCreation
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	post, err := h.s.CreateManualPost(c.Context(), userID, &req)
	if err != nil {
		return fail(c, err)
	}

	h.schedule(post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) GeneratePosts(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	var req transfer.GenerationRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	posts, err := h.s.CreateGeneratedPosts(c.Context(), userID, &req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(posts)
}

func (h *PostHandler) Approve(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	post, err := h.s.Approve(c.Context(), userID, postID)
	if err != nil {
		return fail(c, err)
	}

	h.schedule(post)
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Retry(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	post, err := h.s.Retry(c.Context(), userID, postID)
	if err != nil {
		return fail(c, err)
	}

	h.schedule(post)
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Regenerate(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	post, err := h.s.Regenerate(c.Context(), userID, postID)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Edit(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	var edit transfer.PostEdit
	if err := parseBody(c, &edit); err != nil {
		return fail(c, err)
	}

	post, err := h.s.Edit(c.Context(), userID, postID, &edit)
	if err != nil {
		return fail(c, err)
	}

	if post.IsApproved {
		h.schedule(post)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) PostInfo(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	post, err := h.s.PostInfo(c.Context(), userID, postID)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}
	postID := c.Params("id")

	if err := h.s.Remove(c.Context(), userID, postID); err != nil {
		return fail(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
