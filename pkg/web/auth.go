package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/pkg/auth"
	"github.com/latchwork/gatekeeper/pkg/store"
)

// LoginRequest authenticates a user with their enrolled PIN.
type LoginRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	u, err := s.store.GetUserByEmail(req.Email)
	if err != nil || u.PINHash == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(req.PIN)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	token, err := s.signer.Issue(auth.Identity{
		UserID:  u.ID,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not issue token"})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  publicUser(u),
	})
}

// RequireUser verifies the bearer token and stashes the caller's
// identity in the request context.
func (s *Server) RequireUser(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	id, err := s.signer.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	c.Locals("identity", id)
	return c.Next()
}

// RequireAdmin must run after RequireUser.
func (s *Server) RequireAdmin(c *fiber.Ctx) error {
	if !identityFrom(c).IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin only"})
	}
	return c.Next()
}

func identityFrom(c *fiber.Ctx) auth.Identity {
	id, _ := c.Locals("identity").(auth.Identity)
	return id
}

// publicUser strips credential material from API responses.
func publicUser(u *store.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"is_admin":   u.IsAdmin,
		"created_at": u.CreatedAt,
	}
}
