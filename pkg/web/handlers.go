package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/latchwork/gatekeeper/pkg/store"
)

// CreateUserRequest registers a new operator. Credentials are enrolled
// separately through the setup endpoints.
type CreateUserRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	users := s.store.ListUsers()
	out := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		view := publicUser(u)
		view["enrolled"] = u.Enrolled(s.store.HasFaceTemplate(u.ID))
		out = append(out, view)
	}
	return c.JSON(out)
}

func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and email are required"})
	}

	u, err := s.store.CreateUser(store.User{
		Name:    req.Name,
		Email:   req.Email,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(publicUser(u))
}

func (s *Server) handleGetUser(c *fiber.Ctx) error {
	u, err := s.store.GetUser(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	view := publicUser(u)
	view["enrolled"] = u.Enrolled(s.store.HasFaceTemplate(u.ID))
	return c.JSON(view)
}

// UpdateUserRequest changes a user's profile. Nil fields are left
// untouched.
type UpdateUserRequest struct {
	Name    *string `json:"name"`
	IsAdmin *bool   `json:"is_admin"`
}

func (s *Server) handleUpdateUser(c *fiber.Ctx) error {
	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	u, err := s.store.UpdateUser(c.Params("id"), func(u *store.User) {
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.IsAdmin != nil {
			u.IsAdmin = *req.IsAdmin
		}
	})
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(publicUser(u))
}

func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteUser(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	// Face templates live in their own table; drop them with the user.
	s.store.DeleteFaceTemplate(id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	return c.JSON(s.store.ListEvents(limit))
}

func (s *Server) handleRecentSamples(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"observers": s.hub.ObserverCount(),
		"samples":   s.hub.Recent(),
	})
}
