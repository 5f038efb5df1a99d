package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/service"
)

const (
	stateCookie    = "x_oauth_state"
	verifierCookie = "x_oauth_verifier"

	// The state/verifier pair is bound to one authorization attempt and
	// expires with it.
	authAttemptTTL = 10 * time.Minute
)

type AccountHandler struct {
	s   service.AccountService
	cfg config.Config
}

func NewAccountHandler(cfg config.Config, service service.AccountService) *AccountHandler {
	return &AccountHandler{s: service, cfg: cfg}
}

func (h *AccountHandler) Connect(c *fiber.Ctx) error {
	start, err := h.s.BeginAuthorization(c.Context())
	if err != nil {
		return fail(c, err)
	}

	h.setAttemptCookie(c, stateCookie, start.State)
	h.setAttemptCookie(c, verifierCookie, start.Verifier)

	return c.Redirect(start.AuthorizationURL)
}

func (h *AccountHandler) Callback(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || state != c.Cookies(stateCookie) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "state mismatch",
		})
	}

	verifier := c.Cookies(verifierCookie)
	if err := h.s.CompleteAuthorization(c.Context(), userID, code, verifier); err != nil {
		return fail(c, err)
	}

	h.clearAttemptCookie(c, stateCookie)
	h.clearAttemptCookie(c, verifierCookie)

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AccountHandler) AccountInfo(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	info, err := h.s.AccountInfo(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(info)
}

func (h *AccountHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.s.Disconnect(c.Context(), userID); err != nil {
		return fail(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *AccountHandler) setAttemptCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(authAttemptTTL),
	})
}

func (h *AccountHandler) clearAttemptCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
