package handlers

import (
	"encoding/base64"
	"log/slog"

	"relaychat/server/internal/auth"
	"relaychat/server/internal/errors"
	"relaychat/server/internal/models"
	"relaychat/server/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler serves the auth HTTP gateway's routes: signup, login, token
// verification, logout, search, and public-key storage/fetch. It is a thin
// collaborator over internal/auth.Service.
type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// HandleSignup handles POST /signup.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var body models.UserCredentials
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}

	body.Username = validation.SanitizeString(body.Username)
	if err := validation.ValidateUsername(body.Username); err != nil {
		return err
	}
	if err := validation.ValidatePassword(body.Password); err != nil {
		return err
	}

	user, err := h.service.Signup(body.Username, body.Password)
	if err != nil {
		return err
	}

	slog.Info("user signed up", "username", user.Username)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username": user.Username,
		"message":  "signup successful",
	})
}

// HandleLogin handles POST /login.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var body models.UserCredentials
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}

	body.Username = validation.SanitizeString(body.Username)
	if err := validation.ValidateUsername(body.Username); err != nil {
		return err
	}
	if err := validation.ValidatePassword(body.Password); err != nil {
		return err
	}

	token, err := h.service.Login(body.Username, body.Password)
	if err != nil {
		return err
	}

	slog.Info("user logged in", "username", body.Username)

	return c.JSON(models.AuthResponse{
		Message:  "login successful",
		Token:    token,
		Username: body.Username,
	})
}

// HandleVerifyToken handles POST /verify-token.
func (h *AuthHandler) HandleVerifyToken(c *fiber.Ctx) error {
	token, err := auth.ExtractBearerToken(c.Get("Authorization"))
	if err != nil {
		return err
	}

	username, err := h.service.VerifyToken(token)
	if err != nil {
		return err
	}

	return c.JSON(models.TokenVerifyResponse{
		Valid:    true,
		Username: username,
		Message:  "token is valid",
	})
}

// HandleLogout handles POST /logout. Tokens aren't server-tracked, so this
// is a stateless acknowledgment; a token stays valid until it expires.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "logged out"})
}

// HandleSearch handles GET /search?q=.
func (h *AuthHandler) HandleSearch(c *fiber.Ctx) error {
	query := validation.SanitizeString(c.Query("q"))
	if err := validation.ValidateSearchQuery(query); err != nil {
		return err
	}

	usernames, err := h.service.Search(query)
	if err != nil {
		return err
	}

	return c.JSON(usernames)
}

// HandleStorePublicKey handles POST /store_public_key.
func (h *AuthHandler) HandleStorePublicKey(c *fiber.Ctx) error {
	var body models.StorePublicKeyRequest
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := validation.ValidateUsername(body.Username); err != nil {
		return err
	}

	key, err := base64.StdEncoding.DecodeString(body.PublicKey)
	if err != nil {
		return errors.New(errors.ErrBadRequest, "public_key must be base64-encoded")
	}

	if err := h.service.StorePublicKey(body.Username, key); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "public key stored"})
}

// HandleGetPublicKey handles POST /get_public_key.
func (h *AuthHandler) HandleGetPublicKey(c *fiber.Ctx) error {
	var body models.GetPublicKeyRequest
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrBadRequest, "invalid request body")
	}
	if err := validation.ValidateUsername(body.Recipient); err != nil {
		return err
	}

	key, err := h.service.FetchPublicKey(body.Recipient)
	if err != nil {
		return err
	}

	// The key goes back raw, not wrapped in a JSON envelope: clients feed
	// the response body straight into their crypto layer.
	return c.Send(key)
}
