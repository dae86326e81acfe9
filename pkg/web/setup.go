package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/latchwork/gatekeeper/pkg/unlock"
)

// EnrollFaceRequest registers a face template for a user. UserID may be
// empty on the first step, in which case a new record is minted.
type EnrollFaceRequest struct {
	UserID    string    `json:"user_id"`
	Embedding []float64 `json:"embedding"`
}

// EnrollPINRequest sets a user's PIN.
type EnrollPINRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

// EnrollPhraseRequest records a user's spoken phrase. Samples prove the
// phrase was actually spoken during enrollment.
type EnrollPhraseRequest struct {
	UserID  string    `json:"user_id"`
	Phrase  string    `json:"phrase"`
	Samples []float64 `json:"samples"`
}

func (s *Server) handleEnrollFace(c *fiber.Ctx) error {
	var req EnrollFaceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !s.authorizeEnroll(c, &req.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot enroll another user"})
	}

	userID, err := s.machine.EnrollFace(c.Context(), req.UserID, req.Embedding)
	if err != nil {
		return enrollError(c, err)
	}
	return s.enrollResponse(c, userID)
}

func (s *Server) handleEnrollPIN(c *fiber.Ctx) error {
	var req EnrollPINRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !s.authorizeEnroll(c, &req.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot enroll another user"})
	}

	userID, err := s.machine.EnrollPIN(c.Context(), req.UserID, req.PIN)
	if err != nil {
		return enrollError(c, err)
	}
	return s.enrollResponse(c, userID)
}

func (s *Server) handleEnrollPhrase(c *fiber.Ctx) error {
	var req EnrollPhraseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !s.authorizeEnroll(c, &req.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot enroll another user"})
	}

	userID, err := s.machine.EnrollPhrase(c.Context(), req.UserID, req.Phrase, req.Samples)
	if err != nil {
		return enrollError(c, err)
	}
	return s.enrollResponse(c, userID)
}

// authorizeEnroll reports whether the caller may enroll targetID.
// Admins may enroll anyone; everyone else only themselves. A blank
// target means the caller.
func (s *Server) authorizeEnroll(c *fiber.Ctx, targetID *string) bool {
	id := identityFrom(c)
	if *targetID == "" {
		*targetID = id.UserID
	}
	return id.IsAdmin || *targetID == id.UserID
}

func (s *Server) enrollResponse(c *fiber.Ctx, userID string) error {
	return c.JSON(fiber.Map{
		"user_id":  userID,
		"enrolled": s.machine.Enrolled(userID),
	})
}

func enrollError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, unlock.ErrEmptyEmbedding),
		errors.Is(err, unlock.ErrEmptyPhrase),
		errors.Is(err, unlock.ErrPINTooShort):
		status = fiber.StatusBadRequest
	case errors.Is(err, unlock.ErrNoSpeechDetected):
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
