package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/ticketd/internal/api/dto"
	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/service"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	auth    *service.AuthService
	tickets *service.TicketService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, ticketService *service.TicketService) *UsersHandler {
	return &UsersHandler{auth: authService, tickets: ticketService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	user, token, exp, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Deactivate handles POST /users/:id/deactivate. Admin only.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tickets.DeactivateUser(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "deactivated"}})
}
