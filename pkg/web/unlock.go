package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/latchwork/gatekeeper/pkg/unlock"
)

// ScanRequest carries one face embedding from the panel camera.
type ScanRequest struct {
	Embedding []float64 `json:"embedding"`
}

// PINRequest carries the PIN typed on the panel keypad.
type PINRequest struct {
	PIN string `json:"pin"`
}

// VoiceRequest carries normalized audio samples in [-1, 1].
type VoiceRequest struct {
	Samples []float64 `json:"samples"`
}

func (s *Server) handleScanFace(c *fiber.Ctx) error {
	var req ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	state, err := s.machine.ScanFace(c.Context(), req.Embedding)
	if err != nil {
		return unlockError(c, state, err)
	}
	return c.JSON(fiber.Map{"state": state})
}

func (s *Server) handleSubmitPIN(c *fiber.Ctx) error {
	var req PINRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	state, err := s.machine.SubmitPIN(c.Context(), req.PIN)
	if err != nil {
		return unlockError(c, state, err)
	}
	return c.JSON(fiber.Map{"state": state})
}

func (s *Server) handleSubmitVoice(c *fiber.Ctx) error {
	var req VoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	state, err := s.machine.SubmitVoice(c.Context(), req.Samples)
	if err != nil {
		return unlockError(c, state, err)
	}
	return c.JSON(fiber.Map{"state": state})
}

func (s *Server) handleUnlockState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": s.machine.State()})
}

func (s *Server) handleLock(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": s.machine.Lock(c.Context())})
}

// unlockError maps machine failures onto HTTP statuses. The body never
// says more than the machine's own error text, so a remote caller
// learns nothing a panel user would not see.
func unlockError(c *fiber.Ctx, state unlock.State, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, unlock.ErrWrongStage):
		status = fiber.StatusConflict
	case errors.Is(err, unlock.ErrSessionExpired):
		status = fiber.StatusGone
	case errors.Is(err, unlock.ErrFaceNotMatched),
		errors.Is(err, unlock.ErrInvalidPIN),
		errors.Is(err, unlock.ErrPINNotEnrolled),
		errors.Is(err, unlock.ErrNoSpeechDetected):
		status = fiber.StatusUnauthorized
	case errors.Is(err, unlock.ErrPINTooShort):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "state": state})
}
