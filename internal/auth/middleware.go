package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

const principalKey = "auth_principal"

// Middleware validates bearer tokens and resolves Principals. Downstream of
// here the system only deals in (user_id, role).
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.SubjectID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewUnauthorized("account not found")
		}
		return err
	}
	if user.Status != domain.UserStatusActive {
		return apperrors.NewUnauthorized("account deactivated")
	}

	c.Locals(principalKey, domain.Principal{UserID: user.ID, Role: user.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// RequireRole ensures the principal carries one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewPermissionDenied("insufficient role")
		}
		return c.Next()
	}
}
